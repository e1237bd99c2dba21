package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/desertthunder/notedesk/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive list for one screen.
func (r *Runner) TUI(s screens.Screen) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		// Redirect logs to file to avoid interfering with TUI rendering
		fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.SetLogger(fileLogger)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		inst, err := r.open(ctx, s, filterQuery(cmd, s.Fields()), true)
		if err != nil {
			return err
		}

		if err := ui.Run(ctx, inst); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	}
}
