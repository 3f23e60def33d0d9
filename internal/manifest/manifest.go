// Package manifest is the durable cache of last-known-good build state.
//
// One entry per target records the combined input hash, the produced output
// paths, and the output hash used for transitive invalidation of dependents.
// An entry is written only after a target's build succeeds, so a failure can
// never masquerade as "up to date". A missing or corrupt manifest file
// degrades to an empty manifest (full rebuild), never to a fatal error.
package manifest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/scbrown/pixelsrc/internal/ctxlog"
)

// Filename is the manifest file kept alongside the build output directory.
const Filename = ".pxl-manifest.json"

// CurrentVersion is bumped when the on-disk format changes incompatibly.
// A version mismatch degrades to an empty manifest.
const CurrentVersion = 1

// Entry is the recorded state of one target's last successful build.
type Entry struct {
	InputHash  string    `json:"input_hash"`
	Outputs    []string  `json:"outputs"`
	OutputHash string    `json:"output_hash"`
	BuiltAt    time.Time `json:"built_at"`
}

type fileFormat struct {
	Version int              `json:"version"`
	Targets map[string]Entry `json:"targets"`
}

// Manifest is the in-memory view of the cache file. It is safe for
// concurrent use; the scheduler's workers read staleness while earlier
// completions record entries.
type Manifest struct {
	mu      sync.Mutex
	path    string
	targets map[string]Entry
}

// Load reads the manifest at path. Any failure - missing file, unreadable
// file, malformed JSON, version mismatch - is logged as a warning and
// degrades to an empty manifest, which simply forces a full rebuild.
func Load(ctx context.Context, path string) *Manifest {
	logger := ctxlog.FromContext(ctx)
	m := &Manifest{path: path, targets: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Manifest unreadable, rebuilding from scratch.", "path", path, "error", err)
		}
		return m
	}

	var file fileFormat
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warn("Manifest corrupt, rebuilding from scratch.", "path", path, "error", err)
		return m
	}
	if file.Version != CurrentVersion {
		logger.Warn("Manifest version mismatch, rebuilding from scratch.",
			"path", path, "found", file.Version, "expected", CurrentVersion)
		return m
	}
	if file.Targets != nil {
		m.targets = file.Targets
	}
	return m
}

// Entry returns the recorded state for a target id.
func (m *Manifest) Entry(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.targets[id]
	return e, ok
}

// Len returns the number of recorded targets.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.targets)
}

// Record stores the state of a successful build. Callers must invoke this
// only after the target's build action completed and its outputs are on disk.
func (m *Manifest) Record(id string, e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[id] = e
}

// UpToDate reports whether the recorded entry for id matches the given input
// hash and all recorded outputs still exist on disk. Entries for targets that
// vanished from configuration are left untouched; they are unreferenced and
// harmless.
func (m *Manifest) UpToDate(id, inputHash string) bool {
	e, ok := m.Entry(id)
	if !ok || e.InputHash != inputHash {
		return false
	}
	for _, out := range e.Outputs {
		if _, err := os.Stat(out); err != nil {
			return false
		}
	}
	return true
}

// Save writes the manifest atomically: the JSON is written to a temp file in
// the same directory and then renamed over the target path, so a crash
// mid-write cannot corrupt the cache.
func (m *Manifest) Save(ctx context.Context) error {
	m.mu.Lock()
	file := fileFormat{Version: CurrentVersion, Targets: make(map[string]Entry, len(m.targets))}
	for id, e := range m.targets {
		file.Targets[id] = e
	}
	path := m.path
	m.mu.Unlock()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pxl-manifest-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	ctxlog.FromContext(ctx).Debug("Manifest saved.", "path", path, "targets", len(file.Targets))
	return nil
}
