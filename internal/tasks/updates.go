package tasks

import (
	"fmt"

	"github.com/desertthunder/notedesk/internal/listsync"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Prepare Phase = iota
	Perform
	Failed
	Stopped
	Complete
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case Perform:
		return "perform"
	case Failed:
		return "failed"
	case Stopped:
		return "stopped"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func prepareUpdate(action listsync.Action, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prepare,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Preparing to %s %d record(s)...", action, total),
	}
}

func performUpdate(action listsync.Action, step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Perform,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Running %s on %s...", action, id),
		Data:    id,
	}
}

func failedUpdate(step, total int, f Failure) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed on %s: %v", f.ID, f.Err),
		Data:    f,
	}
}

func stoppedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Stopped,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Stopped after %d of %d: %v", step, total, err),
	}
}

func completeUpdate(r *BulkResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    r.Total,
		Total:   r.Total,
		Message: fmt.Sprintf("%s complete: %d succeeded, %d failed", r.Action, r.Succeeded, len(r.Failed)),
		Data:    r,
	}
}
