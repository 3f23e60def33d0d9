package render

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pxl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestParseFileNamedPalette(t *testing.T) {
	path := writeDoc(t, `
{"type":"palette","name":"basic","colors":{"{_}":"#00000000","{x}":"#FF0000"}}
{"type":"sprite","name":"dot","palette":"basic","grid":["{x}{_}","{_}{x}"]}
`)

	doc, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Sprites, 1)

	sp := doc.Sprites[0]
	assert.Equal(t, "dot", sp.Name)
	assert.Equal(t, "#FF0000", sp.Palette["{x}"])
	assert.Equal(t, []string{"{x}{_}", "{_}{x}"}, sp.Grid)
}

func TestParseFilePaletteDeclaredAfterSprite(t *testing.T) {
	path := writeDoc(t, `
{"type":"sprite","name":"dot","palette":"late","grid":["{x}"]}
{"type":"palette","name":"late","colors":{"{x}":"#00FF00"}}
`)

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#00FF00", doc.Sprites[0].Palette["{x}"])
}

func TestParseFileInlinePalette(t *testing.T) {
	path := writeDoc(t, `{"type":"sprite","name":"dot","palette":{"{x}":"#0000FF"},"grid":["{x}"]}`)

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "#0000FF", doc.Sprites[0].Palette["{x}"])
}

func TestParseFileAnimation(t *testing.T) {
	path := writeDoc(t, `
{"type":"sprite","name":"f1","palette":{"{x}":"#FF0000"},"grid":["{x}"]}
{"type":"sprite","name":"f2","palette":{"{x}":"#FF0000"},"grid":["{x}"]}
{"type":"animation","name":"blink","frames":["f1","f2","f1"]}
`)

	doc, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, doc.Animations, 1)
	assert.Equal(t, "blink", doc.Animations[0].Name)
	assert.Equal(t, []string{"f1", "f2", "f1"}, doc.Animations[0].Frames)
}

func TestParseFileErrors(t *testing.T) {
	testCases := []struct {
		name  string
		lines string
	}{
		{"malformed json", `{"type":"sprite",`},
		{"unknown named palette", `{"type":"sprite","name":"s","palette":"ghost","grid":["{x}"]}`},
		{"palette without name", `{"type":"palette","colors":{"{x}":"#FFF"}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeDoc(t, tc.lines)
			_, err := ParseFile(path)
			require.Error(t, err)
		})
	}
}

func TestParseFileIgnoresUnknownTypes(t *testing.T) {
	path := writeDoc(t, `
{"type":"metadata","name":"whatever"}
{"type":"sprite","name":"s","palette":{"{x}":"#FFFFFF"},"grid":["{x}"]}
`)

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Sprites, 1)
}

func TestTokenizeRow(t *testing.T) {
	testCases := []struct {
		row      string
		expected []string
	}{
		{"{x}{_}{x}", []string{"{x}", "{_}", "{x}"}},
		{"ab.", []string{"a", "b", "."}},
		{"{water}x", []string{"{water}", "x"}},
	}
	for _, tc := range testCases {
		tokens, err := tokenizeRow(tc.row)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, tokens)
	}

	_, err := tokenizeRow("{unclosed")
	require.Error(t, err)
}

func TestParseColor(t *testing.T) {
	testCases := []struct {
		in       string
		expected color.NRGBA
	}{
		{"#FF0000", color.NRGBA{R: 0xff, A: 0xff}},
		{"#00ff00", color.NRGBA{G: 0xff, A: 0xff}},
		{"#F00", color.NRGBA{R: 0xff, A: 0xff}},
		{"#00000000", color.NRGBA{}},
		{"#1080C0FF", color.NRGBA{R: 0x10, G: 0x80, B: 0xc0, A: 0xff}},
	}
	for _, tc := range testCases {
		c, err := ParseColor(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.expected, c, tc.in)
	}

	for _, bad := range []string{"", "#12345", "#GG0000", "red"} {
		_, err := ParseColor(bad)
		require.Error(t, err, bad)
	}
}
