package render

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbrown/pixelsrc/internal/scheduler"
	"github.com/scbrown/pixelsrc/internal/target"
)

func TestRenderSpritePixels(t *testing.T) {
	sp := &SpriteDef{
		Name: "checker",
		Palette: map[string]string{
			"{r}": "#FF0000",
			"{b}": "#0000FF",
		},
		Grid: []string{"{r}{b}", "{b}{r}"},
	}

	img, err := RenderSprite(sp)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	red := color.NRGBA{R: 0xff, A: 0xff}
	blue := color.NRGBA{B: 0xff, A: 0xff}
	assert.Equal(t, red, img.NRGBAAt(0, 0))
	assert.Equal(t, blue, img.NRGBAAt(1, 0))
	assert.Equal(t, blue, img.NRGBAAt(0, 1))
	assert.Equal(t, red, img.NRGBAAt(1, 1))
}

func TestRenderSpriteTransparentToken(t *testing.T) {
	sp := &SpriteDef{
		Palette: map[string]string{"{x}": "#FFFFFF"},
		Grid:    []string{"{x}{_}"},
	}

	img, err := RenderSprite(sp)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(1, 0))
}

func TestRenderSpriteUnknownToken(t *testing.T) {
	sp := &SpriteDef{
		Palette: map[string]string{"{x}": "#FFFFFF"},
		Grid:    []string{"{ghost}"},
	}
	_, err := RenderSprite(sp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestScale(t *testing.T) {
	sp := &SpriteDef{
		Palette: map[string]string{"{x}": "#FF0000"},
		Grid:    []string{"{x}"},
	}
	img, err := RenderSprite(sp)
	require.NoError(t, err)

	scaled := Scale(img, 4)
	assert.Equal(t, 4, scaled.Bounds().Dx())
	assert.Equal(t, 4, scaled.Bounds().Dy())
	red := color.NRGBA{R: 0xff, A: 0xff}
	assert.Equal(t, red, scaled.NRGBAAt(0, 0))
	assert.Equal(t, red, scaled.NRGBAAt(3, 3))

	assert.Same(t, img, Scale(img, 1))
}

func TestSpriteRendererBuild(t *testing.T) {
	dir := t.TempDir()
	src := writeDoc(t, `{"type":"sprite","name":"dot","palette":{"{x}":"#FF0000"},"grid":["{x}{x}"]}`)
	out := filepath.Join(dir, "out", "dot.png")

	tgt := target.Sprite("dot", src, out)
	tgt.SetFingerprint("scale", "2")

	outputs, err := SpriteRenderer{}.Build(context.Background(), scheduler.Request{Target: tgt})
	require.NoError(t, err)
	assert.Equal(t, []string{out}, outputs)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
}

func TestSpriteRendererBuildNoSprite(t *testing.T) {
	src := writeDoc(t, `{"type":"palette","name":"p","colors":{"{x}":"#FF0000"}}`)
	tgt := target.Sprite("empty", src, filepath.Join(t.TempDir(), "out.png"))

	_, err := SpriteRenderer{}.Build(context.Background(), scheduler.Request{Target: tgt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sprite")
}
