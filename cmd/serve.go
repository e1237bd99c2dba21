package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/notedesk/internal/events"
	"github.com/desertthunder/notedesk/internal/server"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the development admin API until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	logger := shared.WithLogger(r.logger, "component", "server")
	srv := server.New(db, events.NewBus(logger), r.config.Session.Secret, logger)
	if r.config.Session.Secret == "" {
		logger.Warn("session.secret is empty, requests are not authenticated")
	}
	return srv.ListenAndServe(ctx, addr)
}

// Health pings the configured admin API.
func (r *Runner) Health(ctx context.Context, cmd *cli.Command) error {
	api := r.client(ctx)
	if err := api.Health(ctx); err != nil {
		return fmt.Errorf("%s is unavailable: %w", api.BaseURL(), err)
	}
	return r.writePlain("✓ %s is healthy\n", api.BaseURL())
}
