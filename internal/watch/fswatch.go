package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
	"github.com/scbrown/pixelsrc/internal/fsutil"
)

// Source adapts fsnotify into the controller's event channel. It watches the
// source tree recursively, forwards only events for pixel-art source files,
// and picks up directories created while watching.
//
// Watcher errors are logged and tolerated: a single missed or malformed
// filesystem event must not stop the watch loop.
type Source struct {
	watcher *fsnotify.Watcher
	root    string
	events  chan Event
}

// NewSource starts watching root and all of its subdirectories.
func NewSource(root string) (*Source, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	s := &Source{watcher: w, root: root, events: make(chan Event, 64)}
	if err := s.addRecursive(root); err != nil {
		w.Close()
		return nil, err
	}
	return s, nil
}

// Events is the channel consumed by the controller.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Run pumps fsnotify notifications into the event channel until the context
// is cancelled. It always returns nil: watch I/O problems are logged, never
// fatal.
func (s *Source) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer s.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Filesystem watch error; continuing.", "error", err)
		}
	}
}

func (s *Source) handle(ctx context.Context, ev fsnotify.Event) {
	logger := ctxlog.FromContext(ctx)

	// New directories need their own watch to see files created inside.
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.addRecursive(ev.Name); err != nil {
				logger.Warn("Could not watch new directory.", "path", ev.Name, "error", err)
			}
			return
		}
	}

	if !fsutil.IsSourceFile(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	select {
	case s.events <- Event{Path: ev.Name}:
	default:
		// The controller is already going to rebuild; dropping a burst
		// event here loses nothing.
	}
}

func (s *Source) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}
