package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
}

func TestGlobMatchesRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "player.pxl")
	writeFile(t, root, "enemies/slime.pxl")
	writeFile(t, root, "enemies/boss/dragon.pxl")
	writeFile(t, root, "notes.txt")

	matched, err := Glob(root, []string{"**/*.pxl"})
	require.NoError(t, err)
	assert.Equal(t, []string{"enemies/boss/dragon.pxl", "enemies/slime.pxl", "player.pxl"}, matched)
}

func TestGlobDeduplicatesAcrossPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "player.pxl")
	writeFile(t, root, "ui/icon.jsonl")

	matched, err := Glob(root, []string{"**/*.pxl", "*.pxl", "ui/*.jsonl"})
	require.NoError(t, err)
	assert.Equal(t, []string{"player.pxl", "ui/icon.jsonl"}, matched)
}

func TestGlobIgnoresNonSourceFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md")
	writeFile(t, root, "sprite.pxl")

	matched, err := Glob(root, []string{"**/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sprite.pxl"}, matched)
}

func TestIsSourceFile(t *testing.T) {
	assert.True(t, IsSourceFile("a/b.pxl"))
	assert.True(t, IsSourceFile("b.jsonl"))
	assert.True(t, IsSourceFile("c.json"))
	assert.False(t, IsSourceFile("d.png"))
	assert.False(t, IsSourceFile("e.hcl"))
}
