package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbrown/pixelsrc/internal/config"
)

const demoConfig = `
project {
  name = "demo"
  src  = "art"
  out  = "out"
}

atlas "main" {
  sources = ["**/*.pxl"]
}

export "godot" {
  atlas = "main"
}
`

const heroDoc = `{"type":"sprite","name":"hero","palette":{"{x}":"#FF0000"},"grid":["{x}{x}","{x}{x}"]}`
const slimeDoc = `{"type":"sprite","name":"slime","palette":{"{g}":"#00FF00"},"grid":["{g}"]}`

func writeDemo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.DefaultFilename), []byte(demoConfig), 0o644))
	art := filepath.Join(root, "art")
	require.NoError(t, os.MkdirAll(art, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(art, "hero.pxl"), []byte(heroDoc+"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(art, "slime.pxl"), []byte(slimeDoc+"\n"), 0o644))
	return root
}

func newTestApp(t *testing.T, root string) *App {
	t.Helper()
	var out, errOut bytes.Buffer
	a, err := New(&out, &errOut, Options{Root: root, LogLevel: "error"})
	require.NoError(t, err)
	return a
}

func TestRunBuildsWholeProject(t *testing.T) {
	root := writeDemo(t)
	a := newTestApp(t, root)

	cycle, err := a.Run(context.Background())
	require.NoError(t, err)
	require.True(t, cycle.OK())
	assert.Equal(t, 4, cycle.Succeeded())

	for _, rel := range []string{
		"out/sprites/hero.png",
		"out/sprites/slime.png",
		"out/main.png",
		"out/main.json",
		"out/exports/main.tres",
		"out/.pxl-manifest.json",
	} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		assert.NoError(t, err, rel)
	}
}

func TestSecondRunIsIncremental(t *testing.T) {
	root := writeDemo(t)

	a := newTestApp(t, root)
	_, err := a.Run(context.Background())
	require.NoError(t, err)

	// A fresh App, like a second CLI invocation.
	cycle, err := newTestApp(t, root).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, cycle.Succeeded())
	assert.Equal(t, 4, cycle.Skipped())
}

func TestRunContainsSourceFailure(t *testing.T) {
	root := writeDemo(t)
	broken := `{"type":"sprite","name":"bad","palette":{"{x}":"#FF0000"},"grid":["{ghost}"]}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "art", "bad.pxl"), []byte(broken+"\n"), 0o644))

	cycle, err := newTestApp(t, root).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, cycle.OK())
	// The broken sprite, the atlas, and the export fail; healthy sprites build.
	assert.Equal(t, 2, cycle.Succeeded())
	assert.Equal(t, 3, cycle.Failed())
}

func TestNewRejectsMissingConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	_, err := New(&out, &errOut, Options{Root: t.TempDir()})
	require.Error(t, err)
	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
}
