package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
project {
  name = "dungeon"
  src  = "art"
  out  = "dist"
}

defaults {
  scale   = 4
  padding = 2
}

atlas "main" {
  sources      = ["characters/**/*.pxl", "tiles/*.pxl"]
  max_size     = [1024, 1024]
  power_of_two = true
}

atlas "ui" {
  sources = ["ui/**/*.pxl"]
  padding = 0
}

animations {
  sources       = ["characters/**/*.pxl"]
  preview       = true
  preview_scale = 3
}

export "godot" {
  atlas         = "main"
  resource_path = "res://assets/main.png"
}

export "unity" {
  enabled         = false
  atlas           = "main"
  pixels_per_unit = 16
}

watch {
  debounce_ms  = 150
  clear_screen = true
}
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "dungeon", cfg.Project.Name)
	assert.Equal(t, "art", cfg.Project.Src)
	assert.Equal(t, "dist", cfg.Project.Out)
	assert.Equal(t, 4, cfg.Defaults.Scale)

	require.Len(t, cfg.Atlases, 2)
	assert.Equal(t, "main", cfg.Atlases[0].Name)
	assert.Equal(t, []int{1024, 1024}, cfg.Atlases[0].MaxSize)
	assert.True(t, cfg.Atlases[0].PowerOfTwo)
	// Unset atlas padding inherits the project default.
	assert.Equal(t, 2, *cfg.Atlases[0].Padding)
	assert.Equal(t, 0, *cfg.Atlases[1].Padding)

	assert.True(t, cfg.Animations.Preview)
	assert.Equal(t, 3, cfg.Animations.PreviewScale)

	require.Len(t, cfg.Exports, 2)
	assert.True(t, cfg.Exports[0].IsEnabled())
	assert.False(t, cfg.Exports[1].IsEnabled())

	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce())
	assert.True(t, cfg.Watch.ClearScreen)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
project {
  name = "minimal"
}
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "src/pxl", cfg.Project.Src)
	assert.Equal(t, "build", cfg.Project.Out)
	assert.Equal(t, 1, cfg.Defaults.Scale)
	assert.Equal(t, 2, cfg.Animations.PreviewScale)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.Debounce())
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "missing project name",
			content: `project { name = "" }`,
		},
		{
			name: "duplicate atlas",
			content: `
project { name = "p" }
atlas "main" { sources = ["*.pxl"] }
atlas "main" { sources = ["*.pxl"] }
`,
		},
		{
			name: "atlas without sources",
			content: `
project { name = "p" }
atlas "main" { sources = [] }
`,
		},
		{
			name: "bad max_size",
			content: `
project { name = "p" }
atlas "main" {
  sources  = ["*.pxl"]
  max_size = [512]
}
`,
		},
		{
			name: "export without atlas",
			content: `
project { name = "p" }
export "godot" { atlas = "" }
`,
		},
		{
			name:    "malformed hcl",
			content: `project {`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(context.Background(), path)
			require.Error(t, err)
			var cfgErr *Error
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.hcl"))
	require.Error(t, err)
	var cfgErr *Error
	assert.ErrorAs(t, err, &cfgErr)
}
