package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/notedesk/internal/formatter"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/desertthunder/notedesk/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Create performs the create action once with the --set payload.
func (r *Runner) Create(s screens.Screen) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		payload, err := parsePayload(cmd.StringSlice("set"))
		if err != nil {
			return err
		}

		inst, err := r.open(ctx, s, nil, false)
		if err != nil {
			return err
		}
		defer inst.Unmount()

		if err := inst.Perform(ctx, listsync.ActionCreate, "", payload); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.Resource(), err)
		}

		if cmd.Bool("json") {
			return r.writeJSON(map[string]any{"resource": s.Resource(), "action": listsync.ActionCreate, "created": true}, false)
		}
		return r.writePlain("Created %s record\n", s.Resource())
	}
}

// Bulk applies action to every id given as an argument or with --id.
//
// Per-id failures are printed with the summary and make the command fail once all ids were
// attempted.
func (r *Runner) Bulk(s screens.Screen, action listsync.Action) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		payload, err := parsePayload(cmd.StringSlice("set"))
		if err != nil {
			return err
		}
		ids := splitIDs(append(cmd.StringSlice("id"), cmd.Args().Slice()...))

		inst, err := r.open(ctx, s, nil, false)
		if err != nil {
			return err
		}
		defer inst.Unmount()

		asJSON := cmd.Bool("json")
		progressCh := make(chan tasks.ProgressUpdate, 50)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for update := range progressCh {
				if asJSON {
					continue
				}
				switch update.Phase {
				case tasks.Perform:
					r.logger.Debug(update.Message, "step", update.Step, "total", update.Total)
				case tasks.Failed, tasks.Stopped:
					r.writePlain("✗ %s\n", update.Message)
				}
			}
		}()

		result, runErr := tasks.NewBulkEngine(inst, r.logger, tasks.WithRateLimit(r.config.Lists.BulkRateLimit)).Run(ctx, action, ids, payload, progressCh)
		close(progressCh)
		wg.Wait()

		if result == nil {
			return runErr
		}
		if asJSON {
			if err := r.writeJSON(bulkJSON(result), true); err != nil {
				return err
			}
		} else if err := r.writePlain("%s\n", formatter.BulkSummary(result)); err != nil {
			return err
		}

		if runErr != nil {
			return runErr
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%s failed for %d of %d %s", action, len(result.Failed), result.Total, s.Resource())
		}
		return nil
	}
}

type bulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func bulkJSON(r *tasks.BulkResult) map[string]any {
	failed := make([]bulkFailure, 0, len(r.Failed))
	for _, f := range r.Failed {
		failed = append(failed, bulkFailure{ID: f.ID, Error: f.Err.Error()})
	}
	skipped := r.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	return map[string]any{
		"action":    r.Action,
		"total":     r.Total,
		"succeeded": r.Succeeded,
		"failed":    failed,
		"skipped":   skipped,
	}
}

// parsePayload reads key=value pairs as strings and key:=value pairs as JSON.
func parsePayload(pairs []string) (listsync.Payload, error) {
	p := listsync.Payload{}
	for _, pair := range pairs {
		if key, raw, ok := strings.Cut(pair, ":="); ok && !strings.Contains(key, "=") {
			var v any
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, fmt.Errorf("%w: --set %s: %v", shared.ErrInvalidArgument, pair, err)
			}
			p[strings.TrimSpace(key)] = v
			continue
		}

		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: --set %q, want key=value", shared.ErrInvalidArgument, pair)
		}
		p[key] = value
	}
	return p, nil
}

// splitIDs flattens comma separated ids.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		ids = append(ids, strings.Split(v, ",")...)
	}
	return ids
}
