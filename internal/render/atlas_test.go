package render

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbrown/pixelsrc/internal/scheduler"
	"github.com/scbrown/pixelsrc/internal/target"
)

func writeSpritePNG(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name+".png")
	require.NoError(t, writePNG(path, img))
	return path
}

func atlasRequest(t *testing.T, dir string, fingerprint map[string]string, deps map[string][]string) scheduler.Request {
	t.Helper()
	at := target.Atlas("main", []string{
		filepath.Join(dir, "main.png"),
		filepath.Join(dir, "main.json"),
	})
	for k, v := range fingerprint {
		at.SetFingerprint(k, v)
	}
	for id := range deps {
		at.AddDependency(id)
	}
	return scheduler.Request{Target: at, DepOutputs: deps}
}

func TestAtlasPackerBuild(t *testing.T) {
	dir := t.TempDir()
	red := writeSpritePNG(t, dir, "red", 4, 4, color.NRGBA{R: 0xff, A: 0xff})
	blue := writeSpritePNG(t, dir, "blue", 2, 2, color.NRGBA{B: 0xff, A: 0xff})

	req := atlasRequest(t, dir,
		map[string]string{"max_size": "64x64", "padding": "1"},
		map[string][]string{
			"sprite:red":  {red},
			"sprite:blue": {blue},
		},
	)

	outputs, err := AtlasPacker{}.Build(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	data, err := os.ReadFile(outputs[1])
	require.NoError(t, err)
	var sheet Sheet
	require.NoError(t, json.Unmarshal(data, &sheet))

	assert.Equal(t, "main", sheet.Atlas)
	assert.Equal(t, "main.png", sheet.Image)
	require.Len(t, sheet.Frames, 2)
	assert.Equal(t, 4, sheet.Frames["red"].W)
	assert.Equal(t, 2, sheet.Frames["blue"].W)

	// Frames never overlap.
	r1 := sheet.Frames["red"]
	r2 := sheet.Frames["blue"]
	overlap := r1.X < r2.X+r2.W && r2.X < r1.X+r1.W &&
		r1.Y < r2.Y+r2.H && r2.Y < r1.Y+r1.H
	assert.False(t, overlap)

	img, err := readPNG(outputs[0])
	require.NoError(t, err)
	assert.Equal(t, sheet.Width, img.Bounds().Dx())
	assert.Equal(t, sheet.Height, img.Bounds().Dy())
}

func TestAtlasPackerPowerOfTwo(t *testing.T) {
	dir := t.TempDir()
	spr := writeSpritePNG(t, dir, "s", 5, 3, color.NRGBA{R: 0xff, A: 0xff})

	req := atlasRequest(t, dir,
		map[string]string{"max_size": "64x64", "padding": "0", "power_of_two": "true"},
		map[string][]string{"sprite:s": {spr}},
	)

	outputs, err := AtlasPacker{}.Build(context.Background(), req)
	require.NoError(t, err)

	data, err := os.ReadFile(outputs[1])
	require.NoError(t, err)
	var sheet Sheet
	require.NoError(t, json.Unmarshal(data, &sheet))
	assert.Equal(t, 8, sheet.Width)
	assert.Equal(t, 4, sheet.Height)
}

func TestAtlasPackerOverflow(t *testing.T) {
	dir := t.TempDir()
	big := writeSpritePNG(t, dir, "big", 32, 32, color.NRGBA{A: 0xff})

	req := atlasRequest(t, dir,
		map[string]string{"max_size": "16x16", "padding": "0"},
		map[string][]string{"sprite:big": {big}},
	)

	_, err := AtlasPacker{}.Build(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not fit")
}

func TestAtlasPackerNoSprites(t *testing.T) {
	dir := t.TempDir()
	req := atlasRequest(t, dir,
		map[string]string{"max_size": "16x16", "padding": "0"},
		map[string][]string{},
	)

	_, err := AtlasPacker{}.Build(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sprites")
}

func TestPackIsDeterministic(t *testing.T) {
	mk := func() []*packedSprite {
		return []*packedSprite{
			{name: "a", img: image.NewNRGBA(image.Rect(0, 0, 3, 3))},
			{name: "b", img: image.NewNRGBA(image.Rect(0, 0, 3, 3))},
			{name: "c", img: image.NewNRGBA(image.Rect(0, 0, 2, 5))},
		}
	}

	s1, s2 := mk(), mk()
	w1, h1, err := pack(s1, 64, 64, 1)
	require.NoError(t, err)
	w2, h2, err := pack(s2, 64, 64, 1)
	require.NoError(t, err)

	assert.Equal(t, w1, w2)
	assert.Equal(t, h1, h2)
	for i := range s1 {
		assert.Equal(t, s1[i].rect, s2[i].rect)
	}
}
