// Package app wires configuration, graph building, scheduling, and
// reporting into the two entry points the CLI exposes: a single build cycle
// and the watch loop.
package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/scbrown/pixelsrc/internal/config"
	"github.com/scbrown/pixelsrc/internal/ctxlog"
	"github.com/scbrown/pixelsrc/internal/graph"
	"github.com/scbrown/pixelsrc/internal/manifest"
	"github.com/scbrown/pixelsrc/internal/progress"
	"github.com/scbrown/pixelsrc/internal/render"
	"github.com/scbrown/pixelsrc/internal/scheduler"
	"github.com/scbrown/pixelsrc/internal/target"
)

// Options carries everything the CLI resolved from flags.
type Options struct {
	Root       string
	ConfigPath string
	// Filters restricts a cycle to matching targets and their dependencies.
	Filters    []string
	Verbose    bool
	JSONOutput bool
	Force      bool
	Jobs       int
	LogLevel   string
	LogFormat  string
}

// App holds the loaded project configuration and the pieces every build
// cycle reuses. Events go to outW; logs go to errW so the JSON event stream
// stays machine-readable.
type App struct {
	opts     Options
	outW     io.Writer
	logger   *slog.Logger
	cfg      *config.Config
	reporter progress.Reporter
	caps     map[target.Kind]scheduler.Capability
}

// New loads the project configuration and prepares an App. Configuration
// failures surface as *config.Error so the CLI can map them to their own
// exit code.
func New(outW, errW io.Writer, opts Options) (*App, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = filepath.Join(opts.Root, config.DefaultFilename)
	}

	logger := newLogger(opts.LogLevel, opts.LogFormat, errW)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	cfg, err := config.Load(ctx, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded.", "path", opts.ConfigPath, "project", cfg.Project.Name)

	var reporter progress.Reporter
	if opts.JSONOutput {
		reporter = progress.NewJSON(outW)
	} else {
		reporter = progress.NewConsole(outW, opts.Verbose)
	}

	return &App{
		opts:     opts,
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		reporter: reporter,
		caps: map[target.Kind]scheduler.Capability{
			target.SpriteRender:     render.SpriteRenderer{},
			target.AtlasPack:        render.AtlasPacker{},
			target.AnimationPreview: render.PreviewRenderer{},
			target.EngineExport:     render.Exporter{},
		},
	}, nil
}

// Config exposes the loaded project configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger exposes the app's logger for the CLI and the watch loop.
func (a *App) Logger() *slog.Logger { return a.logger }

// Run executes one build cycle: rebuild the target graph from the current
// source tree, consult the manifest, schedule stale targets, persist the
// manifest. The graph is rebuilt every cycle because watch-triggered cycles
// may see files appear or disappear.
func (a *App) Run(ctx context.Context) (*target.CycleResult, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	g, err := graph.Build(ctx, a.cfg, a.opts.Root)
	if err != nil {
		return nil, err
	}
	if len(a.opts.Filters) > 0 {
		if g, err = g.Subset(a.opts.Filters); err != nil {
			return nil, err
		}
	}

	man := manifest.Load(ctx, a.manifestPath())
	sched, err := scheduler.New(g, man, a.caps, a.reporter, scheduler.Options{
		Workers: a.opts.Jobs,
		Force:   a.opts.Force,
	})
	if err != nil {
		return nil, err
	}
	return sched.Run(ctx), nil
}

func (a *App) manifestPath() string {
	return filepath.Join(a.opts.Root, a.cfg.Project.Out, manifest.Filename)
}

func (a *App) srcDir() string {
	return filepath.Join(a.opts.Root, a.cfg.Project.Src)
}
