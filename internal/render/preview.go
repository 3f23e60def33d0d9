package render

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"github.com/scbrown/pixelsrc/internal/scheduler"
)

// PreviewRenderer renders every animation in a source file as a horizontal
// film strip, one strip per animation stacked top to bottom, so a glance at
// one PNG shows the whole motion.
type PreviewRenderer struct{}

func (PreviewRenderer) Build(ctx context.Context, req scheduler.Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := req.Target
	if len(t.Sources) == 0 || len(t.Outputs) == 0 {
		return nil, fmt.Errorf("preview target %s has no source or output", t.ID)
	}
	doc, err := ParseFile(t.Sources[0])
	if err != nil {
		return nil, err
	}
	if len(doc.Animations) == 0 {
		return nil, fmt.Errorf("%s: no animation declared", t.Sources[0])
	}

	strips := make([]*image.NRGBA, 0, len(doc.Animations))
	for _, anim := range doc.Animations {
		strip, err := renderStrip(doc, anim)
		if err != nil {
			return nil, fmt.Errorf("animation %q: %w", anim.Name, err)
		}
		strips = append(strips, strip)
	}

	scale := fingerprintInt(t.Fingerprint, "preview_scale", 1)
	out := Scale(stack(strips), scale)
	if err := writePNG(t.Outputs[0], out); err != nil {
		return nil, err
	}
	return t.Outputs, nil
}

// renderStrip lays an animation's frames out left to right with a one-pixel
// gutter between frames.
func renderStrip(doc *Document, anim *AnimationDef) (*image.NRGBA, error) {
	if len(anim.Frames) == 0 {
		return nil, fmt.Errorf("no frames")
	}
	frames := make([]*image.NRGBA, 0, len(anim.Frames))
	w, h := 0, 0
	for _, name := range anim.Frames {
		sp, ok := doc.Sprite(name)
		if !ok {
			return nil, fmt.Errorf("frame references unknown sprite %q", name)
		}
		img, err := RenderSprite(sp)
		if err != nil {
			return nil, fmt.Errorf("sprite %q: %w", name, err)
		}
		frames = append(frames, img)
		w += img.Bounds().Dx() + 1
		if img.Bounds().Dy() > h {
			h = img.Bounds().Dy()
		}
	}

	strip := image.NewNRGBA(image.Rect(0, 0, w-1, h))
	x := 0
	for _, img := range frames {
		b := img.Bounds()
		draw.Draw(strip, image.Rect(x, 0, x+b.Dx(), b.Dy()), img, b.Min, draw.Src)
		x += b.Dx() + 1
	}
	return strip, nil
}

// stack joins strips vertically with a one-pixel gutter between them.
func stack(strips []*image.NRGBA) *image.NRGBA {
	if len(strips) == 1 {
		return strips[0]
	}
	w, h := 0, 0
	for _, s := range strips {
		if s.Bounds().Dx() > w {
			w = s.Bounds().Dx()
		}
		h += s.Bounds().Dy() + 1
	}
	out := image.NewNRGBA(image.Rect(0, 0, w, h-1))
	y := 0
	for _, s := range strips {
		b := s.Bounds()
		draw.Draw(out, image.Rect(0, y, b.Dx(), y+b.Dy()), s, b.Min, draw.Src)
		y += b.Dy() + 1
	}
	return out
}
