// Package config defines the project configuration model for the pxl build
// orchestrator and its HCL loader. The model is the single source of truth
// for the graph builder: source globs, the fields that feed each target's
// fingerprint, and the watch settings.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Error is a configuration error detected before any target runs. The CLI
// maps it to exit code 2.
type Error struct {
	msg string
}

// Errorf creates a configuration error.
func Errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.msg }

// Config is the decoded pixel.hcl project file, with defaults applied.
type Config struct {
	Project    Project      `hcl:"project,block"`
	Defaults   *Defaults    `hcl:"defaults,block"`
	Atlases    []Atlas      `hcl:"atlas,block"`
	Animations *Animations  `hcl:"animations,block"`
	Exports    []Export     `hcl:"export,block"`
	Watch      *WatchConfig `hcl:"watch,block"`
	Validate   *Validate    `hcl:"validate,block"`
}

// Project names the project and its source/output directories.
type Project struct {
	Name string `hcl:"name"`
	Src  string `hcl:"src,optional"`
	Out  string `hcl:"out,optional"`
}

// Defaults are project-wide render settings, overridable per atlas.
type Defaults struct {
	Scale   int `hcl:"scale,optional"`
	Padding int `hcl:"padding,optional"`
}

// Atlas declares one named texture atlas assembled from glob-matched sources.
type Atlas struct {
	Name       string   `hcl:"name,label"`
	Sources    []string `hcl:"sources"`
	MaxSize    []int    `hcl:"max_size,optional"`
	Padding    *int     `hcl:"padding,optional"`
	PowerOfTwo bool     `hcl:"power_of_two,optional"`
}

// Animations declares animation sources and preview rendering.
type Animations struct {
	Sources      []string `hcl:"sources,optional"`
	Preview      bool     `hcl:"preview,optional"`
	PreviewScale int      `hcl:"preview_scale,optional"`
}

// Export declares one engine export consuming a named atlas.
type Export struct {
	Engine        string `hcl:"engine,label"`
	Enabled       *bool  `hcl:"enabled,optional"`
	Atlas         string `hcl:"atlas"`
	ResourcePath  string `hcl:"resource_path,optional"`
	PixelsPerUnit int    `hcl:"pixels_per_unit,optional"`
}

// IsEnabled reports whether this export block should produce a target.
// Exports default to enabled when declared.
func (e *Export) IsEnabled() bool { return e.Enabled == nil || *e.Enabled }

// WatchConfig controls the reactive rebuild loop.
type WatchConfig struct {
	DebounceMS  int  `hcl:"debounce_ms,optional"`
	ClearScreen bool `hcl:"clear_screen,optional"`
}

// Debounce returns the configured debounce window.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Validate controls source validation strictness.
type Validate struct {
	Strict bool `hcl:"strict,optional"`
}

// DefaultWorkers is the worker pool size when none is configured.
func DefaultWorkers() int {
	if n := runtime.NumCPU(); n > 1 {
		return n
	}
	return 1
}

// applyDefaults fills unset optional blocks and fields in place.
func (c *Config) applyDefaults() {
	if c.Project.Src == "" {
		c.Project.Src = "src/pxl"
	}
	if c.Project.Out == "" {
		c.Project.Out = "build"
	}
	if c.Defaults == nil {
		c.Defaults = &Defaults{}
	}
	if c.Defaults.Scale <= 0 {
		c.Defaults.Scale = 1
	}
	if c.Animations == nil {
		c.Animations = &Animations{}
	}
	if c.Animations.PreviewScale <= 0 {
		c.Animations.PreviewScale = 2
	}
	if c.Watch == nil {
		c.Watch = &WatchConfig{}
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = 300
	}
	if c.Validate == nil {
		c.Validate = &Validate{}
	}
	for i := range c.Atlases {
		a := &c.Atlases[i]
		if len(a.MaxSize) == 0 {
			a.MaxSize = []int{2048, 2048}
		}
		if a.Padding == nil {
			p := c.Defaults.Padding
			a.Padding = &p
		}
	}
}

// validate checks structural invariants that gohcl decoding cannot express.
func (c *Config) validate() error {
	if c.Project.Name == "" {
		return Errorf("project name must not be empty")
	}
	atlasNames := make(map[string]struct{}, len(c.Atlases))
	for _, a := range c.Atlases {
		if a.Name == "" {
			return Errorf("atlas block requires a name label")
		}
		if _, dup := atlasNames[a.Name]; dup {
			return Errorf("duplicate atlas declaration %q", a.Name)
		}
		atlasNames[a.Name] = struct{}{}
		if len(a.Sources) == 0 {
			return Errorf("atlas %q declares no source patterns", a.Name)
		}
		if len(a.MaxSize) != 2 || a.MaxSize[0] <= 0 || a.MaxSize[1] <= 0 {
			return Errorf("atlas %q: max_size must be [width, height] with positive values", a.Name)
		}
	}
	for _, e := range c.Exports {
		if e.Engine == "" {
			return Errorf("export block requires an engine label")
		}
		if e.Atlas == "" {
			return Errorf("export %q must name an atlas", e.Engine)
		}
	}
	return nil
}
