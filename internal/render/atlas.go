package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/scbrown/pixelsrc/internal/scheduler"
	"github.com/scbrown/pixelsrc/internal/target"
)

// AtlasPacker packs rendered sprite PNGs onto one sheet with a shelf
// algorithm and writes the sheet plus a JSON frame map next to it.
type AtlasPacker struct{}

// Frame is one sprite's rectangle on the packed sheet.
type Frame struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Sheet is the serialized frame map written alongside the atlas image.
type Sheet struct {
	Atlas  string           `json:"atlas"`
	Image  string           `json:"image"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
	Frames map[string]Frame `json:"frames"`
}

type packedSprite struct {
	name string
	img  image.Image
	rect image.Rectangle
}

func (AtlasPacker) Build(ctx context.Context, req scheduler.Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := req.Target
	if len(t.Outputs) < 2 {
		return nil, fmt.Errorf("atlas target %s is missing its sheet or frame-map output", t.ID)
	}

	sprites, err := loadSprites(req.DepOutputs)
	if err != nil {
		return nil, err
	}
	if len(sprites) == 0 {
		return nil, fmt.Errorf("atlas %q matched no sprites", t.Name)
	}

	maxW, maxH := fingerprintSize(t.Fingerprint["max_size"])
	padding := fingerprintInt(t.Fingerprint, "padding", 0)
	pot := t.Fingerprint["power_of_two"] == "true"

	w, h, err := pack(sprites, maxW, maxH, padding)
	if err != nil {
		return nil, fmt.Errorf("atlas %q: %w", t.Name, err)
	}
	if pot {
		w, h = nextPowerOfTwo(w), nextPowerOfTwo(h)
	}

	sheet := image.NewNRGBA(image.Rect(0, 0, w, h))
	frames := make(map[string]Frame, len(sprites))
	for _, sp := range sprites {
		draw.Draw(sheet, sp.rect, sp.img, sp.img.Bounds().Min, draw.Src)
		frames[sp.name] = Frame{X: sp.rect.Min.X, Y: sp.rect.Min.Y, W: sp.rect.Dx(), H: sp.rect.Dy()}
	}

	if err := writePNG(t.Outputs[0], sheet); err != nil {
		return nil, err
	}
	doc := Sheet{
		Atlas:  t.Name,
		Image:  filepath.Base(t.Outputs[0]),
		Width:  w,
		Height: h,
		Frames: frames,
	}
	if err := writeJSON(t.Outputs[1], doc); err != nil {
		return nil, err
	}
	return t.Outputs, nil
}

// loadSprites decodes every dependency's PNG output. Frame names use the
// producing sprite's target name so game code addresses frames by the same
// path it sees in the source tree.
func loadSprites(depOutputs map[string][]string) ([]*packedSprite, error) {
	ids := make([]string, 0, len(depOutputs))
	for id := range depOutputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sprites []*packedSprite
	for _, id := range ids {
		for _, out := range depOutputs[id] {
			if !strings.HasSuffix(out, ".png") {
				continue
			}
			img, err := readPNG(out)
			if err != nil {
				return nil, fmt.Errorf("reading sprite %s: %w", out, err)
			}
			sprites = append(sprites, &packedSprite{
				name: strings.TrimPrefix(id, target.SpriteRender.String()+":"),
				img:  img,
			})
		}
	}
	return sprites, nil
}

// pack places sprites left to right on shelves, tallest first, and returns
// the occupied width and height. It fails when any placement would exceed
// the configured maximum sheet size.
func pack(sprites []*packedSprite, maxW, maxH, padding int) (int, int, error) {
	sort.SliceStable(sprites, func(i, j int) bool {
		hi, hj := sprites[i].img.Bounds().Dy(), sprites[j].img.Bounds().Dy()
		if hi != hj {
			return hi > hj
		}
		return sprites[i].name < sprites[j].name
	})

	x, y, shelfH := padding, padding, 0
	usedW, usedH := 0, 0
	for _, sp := range sprites {
		b := sp.img.Bounds()
		if x+b.Dx()+padding > maxW {
			y += shelfH + padding
			x = padding
			shelfH = 0
		}
		if x+b.Dx()+padding > maxW || y+b.Dy()+padding > maxH {
			return 0, 0, fmt.Errorf("sprite %q does not fit within max size %dx%d", sp.name, maxW, maxH)
		}
		sp.rect = image.Rect(x, y, x+b.Dx(), y+b.Dy())
		x += b.Dx() + padding
		if b.Dy() > shelfH {
			shelfH = b.Dy()
		}
		if sp.rect.Max.X+padding > usedW {
			usedW = sp.rect.Max.X + padding
		}
		if sp.rect.Max.Y+padding > usedH {
			usedH = sp.rect.Max.Y + padding
		}
	}
	return usedW, usedH, nil
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

func fingerprintSize(v string) (int, int) {
	var w, h int
	if _, err := fmt.Sscanf(v, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 2048, 2048
	}
	return w, h
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
