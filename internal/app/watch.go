package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
	"github.com/scbrown/pixelsrc/internal/watch"
)

// Watch runs an initial build cycle and then rebuilds whenever source files
// change, debounced per the project configuration. Build failures are
// reported and the loop keeps watching; only context cancellation or a
// watcher setup failure ends it.
//
// The watcher subscribes before the initial cycle runs: a file saved while
// that cycle is in flight lands in the event buffer and triggers a rebuild
// once the controller starts, instead of being lost.
func (a *App) Watch(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	source, err := watch.NewSource(a.srcDir())
	if err != nil {
		return fmt.Errorf("starting watcher on %s: %w", a.srcDir(), err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return source.Run(ctx) })

	build := func(ctx context.Context) error {
		if a.cfg.Watch.ClearScreen && !a.opts.JSONOutput {
			fmt.Fprint(a.outW, "\033[2J\033[H")
		}
		cycle, err := a.Run(ctx)
		if err != nil {
			return err
		}
		if !cycle.OK() {
			a.logger.Warn("Build cycle finished with failures.", "failed", cycle.Failed())
		}
		return nil
	}

	if err := build(ctx); err != nil {
		cancel()
		group.Wait()
		return err
	}

	a.logger.Info("Watching for changes.",
		"dir", a.srcDir(),
		"debounce", a.cfg.Watch.Debounce(),
	)

	ctrl := watch.NewController(a.cfg.Watch.Debounce(), nil, build)
	group.Go(func() error { return ctrl.Run(ctx, source.Events()) })
	return group.Wait()
}
