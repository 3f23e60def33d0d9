package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/scbrown/pixelsrc/internal/scheduler"
)

// SpriteRenderer renders a token grid into a PNG, scaled by nearest-neighbor
// so pixels stay crisp.
type SpriteRenderer struct{}

func (SpriteRenderer) Build(ctx context.Context, req scheduler.Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := req.Target
	if len(t.Sources) == 0 || len(t.Outputs) == 0 {
		return nil, fmt.Errorf("sprite target %s has no source or output", t.ID)
	}
	doc, err := ParseFile(t.Sources[0])
	if err != nil {
		return nil, err
	}
	sp, ok := doc.Sprite("")
	if !ok {
		return nil, fmt.Errorf("%s: no sprite declared", t.Sources[0])
	}

	img, err := RenderSprite(sp)
	if err != nil {
		return nil, fmt.Errorf("sprite %q: %w", sp.Name, err)
	}
	scale := fingerprintInt(t.Fingerprint, "scale", 1)
	img = Scale(img, scale)

	if err := writePNG(t.Outputs[0], img); err != nil {
		return nil, err
	}
	return t.Outputs, nil
}

// RenderSprite rasterizes a sprite grid at native 1:1 pixel size.
func RenderSprite(sp *SpriteDef) (*image.NRGBA, error) {
	if len(sp.Grid) == 0 {
		return nil, fmt.Errorf("empty grid")
	}
	rows := make([][]string, len(sp.Grid))
	width := 0
	for i, row := range sp.Grid {
		tokens, err := tokenizeRow(row)
		if err != nil {
			return nil, err
		}
		rows[i] = tokens
		if len(tokens) > width {
			width = len(tokens)
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, len(rows)))
	for y, tokens := range rows {
		for x, token := range tokens {
			c, err := lookupColor(sp.Palette, token)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", y+1, err)
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img, nil
}

// Scale resizes img by an integer factor using nearest-neighbor sampling.
// Factors below 2 return img unchanged.
func Scale(img *image.NRGBA, factor int) *image.NRGBA {
	if factor < 2 {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fingerprintInt(fp map[string]string, key string, def int) int {
	if v, ok := fp[key]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
