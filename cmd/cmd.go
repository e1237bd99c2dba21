// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/urfave/cli/v3"
)

// screenCommand builds the command tree for one list screen: list, watch, tui and one subcommand
// per declared action.
func screenCommand(r *Runner, s screens.Screen) *cli.Command {
	name := string(s.Resource())
	cmd := &cli.Command{
		Name:  name,
		Usage: fmt.Sprintf("Browse and manage %s", strings.ToLower(s.Title())),
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   fmt.Sprintf("Fetch one page of %s", name),
				Description: heredoc.Docf(`
					Fetches a single page with the given filters and prints it.

					Filters are validated before anything is sent: an unknown --sort or
					--status value, or a date that cannot be parsed, fails immediately.

					Example:
					  notedesk %s list --search draft --page 2 --format csv
				`, name),
				Flags: append(filterFlags(s.Fields()),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, json)",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file instead of stdout",
					},
				),
				Action: r.List(s),
			},
			{
				Name:  "watch",
				Usage: fmt.Sprintf("Print %s again whenever they change", name),
				Description: heredoc.Doc(`
					Mounts the list, subscribes to push events and reprints the page
					after every settled fetch until interrupted.

					Push events need realtime.url in the config file; without it only
					the first page is printed.
				`),
				Flags: append(filterFlags(s.Fields()),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, csv, json)",
						Value:   "text",
					},
				),
				Action: r.Watch(s),
			},
			{
				Name:  "tui",
				Usage: fmt.Sprintf("Browse %s interactively", name),
				Flags: append(filterFlags(s.Fields()),
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Log destination while the UI owns the terminal",
						Value: "./tmp/notedesk-tui.log",
					},
				),
				Action: r.TUI(s),
			},
		},
	}

	if alias := strings.ReplaceAll(name, "-", "_"); alias != name {
		cmd.Aliases = []string{alias}
	}
	for _, a := range s.Actions() {
		cmd.Commands = append(cmd.Commands, actionCommand(r, s, a))
	}
	return cmd
}

func actionCommand(r *Runner, s screens.Screen, a listsync.Action) *cli.Command {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "set",
			Usage: "Payload field as key=value (repeatable)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the result as JSON",
		},
	}
	if a == listsync.ActionCreate {
		return &cli.Command{
			Name:   string(a),
			Usage:  fmt.Sprintf("Create one %s record", s.Resource()),
			Flags:  flags,
			Action: r.Create(s),
		}
	}

	return &cli.Command{
		Name:      string(a),
		Usage:     fmt.Sprintf("Apply %s to one or more %s", a, s.Resource()),
		ArgsUsage: "[id...]",
		Description: heredoc.Docf(`
			Applies %s to every id given as an argument or with --id, in order.

			Ids the action fails for are reported and the run continues. A
			permission or validation error stops the run, since it would fail
			the same way for every remaining id.
		`, a),
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Target id (repeatable)",
			},
		}, flags...),
		Action: r.Bulk(s, a),
	}
}

// filterFlags declares one string flag per filter field plus the pagination flags.
func filterFlags(fields []listsync.FieldSpec) []cli.Flag {
	flags := make([]cli.Flag, 0, len(fields)+2)
	for _, f := range fields {
		flags = append(flags, &cli.StringFlag{Name: f.Name, Usage: fieldUsage(f)})
	}
	return append(flags,
		&cli.IntFlag{Name: "page", Usage: "Page number"},
		&cli.IntFlag{Name: "page-size", Usage: "Items per page"},
	)
}

func fieldUsage(f listsync.FieldSpec) string {
	var usage string
	switch f.Kind {
	case listsync.KindEnum:
		usage = "One of " + strings.Join(f.Options, ", ")
	case listsync.KindDate:
		usage = "Date, e.g. 2024-03-01"
	default:
		usage = "Filter by " + strings.ReplaceAll(f.Name, "_", " ")
	}
	if f.Default != "" {
		usage += fmt.Sprintf(" (default %q)", f.Default)
	}
	return usage
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the development admin API and event stream",
		Description: heredoc.Doc(`
			Serves the admin API backed by the sqlite database from the config file,
			with push events on GET /api/events.

			Migrations are applied on startup. When session.secret is set every
			request needs a bearer token signed with it; mutations additionally
			need the matching capability.
		`),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

func healthCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Check that the admin API is reachable",
		Action: r.Health,
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "status",
				Usage: "Show applied and pending migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the latest migration",
				Action: r.SetupRollback,
			},
		},
	}
}
