package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/notedesk/internal/listsync"
	"github.com/desertthunder/notedesk/internal/screens"
	"github.com/desertthunder/notedesk/internal/services"
	"github.com/desertthunder/notedesk/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.AdminAPI
	realtime   listsync.PushSource
	gate       listsync.Gate
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// API, Realtime and Gate are built from Config when left nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.AdminAPI
	Realtime   listsync.PushSource
	Gate       listsync.Gate
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		realtime:   opts.Realtime,
		gate:       opts.Gate,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, s := range screens.All() {
		commands = append(commands, screenCommand(r, s))
	}
	for _, fn := range [](func(*Runner) *cli.Command){serveCommand, healthCommand, setupCommand} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Configure is the root Before hook: it loads the config file named by --config and applies the
// log level.
//
// A missing file keeps the current config so that "setup config" can create it. A file that exists
// but does not load is an error.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// client returns the admin API client, building it from config when none was injected.
func (r *Runner) client(ctx context.Context) *services.AdminAPI {
	if r.api != nil {
		return r.api
	}
	return services.NewAdminAPI(r.config.API.BaseURL,
		services.NewHTTPClient(ctx, r.config.Session.Token, r.config.API.Timeout()))
}

func (r *Runner) session() (listsync.Gate, error) {
	if r.gate != nil {
		return r.gate, nil
	}
	s, err := services.NewSession(r.config.Session)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("session loaded", "subject", s.Subject, "capabilities", len(s.Capabilities))
	return s.Gate(), nil
}

// pushSource returns the injected push source or starts a websocket client bound to ctx.
//
// It returns nil when no realtime URL is configured, which leaves lists without push invalidation.
func (r *Runner) pushSource(ctx context.Context) listsync.PushSource {
	if r.realtime != nil {
		return r.realtime
	}
	if r.config.Realtime.URL == "" {
		return nil
	}

	push := services.NewPushClient(r.config.Realtime.URL, r.config.Session.Token, r.config.Realtime.ReconnectDelay(), r.logger)
	go func() {
		if err := push.Run(ctx); err != nil {
			r.logger.Warn("event stream stopped", "error", err)
		}
	}()
	return push
}

// open builds the screen's dependencies and opens it with the initial filters in query.
//
// When live is set the screen subscribes to push events for as long as ctx lives.
func (r *Runner) open(ctx context.Context, s screens.Screen, query url.Values, live bool) (screens.Instance, error) {
	gate, err := r.session()
	if err != nil {
		return nil, err
	}

	deps := screens.Deps{
		API:      r.client(ctx),
		Gate:     gate,
		PageSize: r.config.Lists.PageSize,
		Logger:   r.logger,
	}
	if live {
		deps.Realtime = listsync.NewMultiplexer(r.pushSource(ctx),
			listsync.WithCoalesceWindow(r.config.Realtime.CoalesceWindow()),
			listsync.WithMultiplexerLogger(r.logger))
	}

	inst, err := s.Open(deps, query)
	if err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return nil, fmt.Errorf("invalid %s filters: %w", s.Resource(), err)
		}
		return nil, err
	}
	return inst, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
