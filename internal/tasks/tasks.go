package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/shared"
	"golang.org/x/time/rate"
)

// Performer runs one action against one record.
//
// [listsync.Dispatcher] and screen instances implement it.
type Performer interface {
	Perform(ctx context.Context, action listsync.Action, id string, p listsync.Payload) error
}

// Failure is one record the action could not be applied to.
type Failure struct {
	ID  string
	Err error
}

// BulkResult summarizes a bulk run.
type BulkResult struct {
	Action    listsync.Action
	Total     int       // distinct ids requested
	Succeeded int       // ids the action was applied to
	Failed    []Failure // per-id failures, in order
	Skipped   []string  // ids not attempted because the run stopped
}

// Err joins the per-id failures, or returns nil when every id succeeded.
func (r *BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = fmt.Errorf("%s: %w", f.ID, f.Err)
	}
	return errors.Join(errs...)
}

// BulkEngine applies one action to many records.
type BulkEngine struct {
	target    Performer
	logger    *log.Logger
	rateLimit float64
}

// BulkOption configures a [BulkEngine].
type BulkOption func(*BulkEngine)

// WithRateLimit caps the engine at perSecond requests; zero or less means no limit.
func WithRateLimit(perSecond float64) BulkOption {
	return func(e *BulkEngine) { e.rateLimit = perSecond }
}

// NewBulkEngine creates a [BulkEngine] performing actions through target.
func NewBulkEngine(target Performer, logger *log.Logger, opts ...BulkOption) *BulkEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	e := &BulkEngine{target: target, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *BulkEngine) limiter() *rate.Limiter {
	if e.rateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(e.rateLimit), 1)
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *BulkEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs action once per distinct id, in order.
//
// The returned error is non-nil only when the run stopped early; per-id failures are reported in
// the result. The result is returned in both cases.
func (e *BulkEngine) Run(ctx context.Context, action listsync.Action, ids []string, p listsync.Payload, progress chan<- ProgressUpdate) (*BulkResult, error) {
	if e.target == nil {
		return nil, fmt.Errorf("%w: no action target", shared.ErrServiceUnavailable)
	}

	ids = distinct(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one id", shared.ErrMissingArgument)
	}

	result := &BulkResult{Action: action, Total: len(ids)}
	total := len(ids)
	limiter := e.limiter()
	e.sendProgress(progress, prepareUpdate(action, total))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return e.stop(progress, result, ids[i:], i, err)
		}
		if err := limiter.Wait(ctx); err != nil {
			return e.stop(progress, result, ids[i:], i, err)
		}

		e.sendProgress(progress, performUpdate(action, i+1, total, id))

		err := e.target.Perform(ctx, action, id, p)
		if err == nil {
			result.Succeeded++
			continue
		}

		f := Failure{ID: id, Err: err}
		result.Failed = append(result.Failed, f)
		e.sendProgress(progress, failedUpdate(i+1, total, f))
		e.logger.Warn("bulk action failed", "action", action, "id", id, "error", err)

		if fatal(err) {
			return e.stop(progress, result, ids[i+1:], i+1, err)
		}
	}

	e.sendProgress(progress, completeUpdate(result))
	return result, nil
}

func (e *BulkEngine) stop(progress chan<- ProgressUpdate, result *BulkResult, rest []string, step int, err error) (*BulkResult, error) {
	result.Skipped = append(result.Skipped, rest...)
	e.sendProgress(progress, stoppedUpdate(step, result.Total, err))
	return result, fmt.Errorf("bulk %s stopped after %d of %d: %w", result.Action, step, result.Total, err)
}

// fatal reports whether err would repeat for every remaining id.
func fatal(err error) bool {
	return shared.IsLocal(err) || errors.Is(err, shared.ErrUnknownAction)
}

// distinct trims ids and drops blanks and repeats, keeping first occurrences.
func distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
