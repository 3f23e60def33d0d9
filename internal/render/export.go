package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/scbrown/pixelsrc/internal/scheduler"
)

// Exporter translates a packed atlas's frame map into engine-specific
// metadata. Godot gets a .tres AtlasTexture resource set; every other engine
// gets a neutral JSON document its importer can consume.
type Exporter struct{}

// exportDoc is the neutral JSON shape emitted for non-Godot engines.
type exportDoc struct {
	Engine        string           `json:"engine"`
	Atlas         string           `json:"atlas"`
	Image         string           `json:"image"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	PixelsPerUnit int              `json:"pixels_per_unit,omitempty"`
	ResourcePath  string           `json:"resource_path,omitempty"`
	Frames        map[string]Frame `json:"frames"`
}

func (Exporter) Build(ctx context.Context, req scheduler.Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := req.Target
	if len(t.Outputs) == 0 {
		return nil, fmt.Errorf("export target %s has no output", t.ID)
	}

	sheet, err := loadSheet(req.DepOutputs)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", t.ID, err)
	}

	engine := t.Fingerprint["engine"]
	var data []byte
	switch engine {
	case "godot":
		data = []byte(godotResource(sheet, t.Fingerprint["resource_path"]))
	default:
		doc := exportDoc{
			Engine:        engine,
			Atlas:         sheet.Atlas,
			Image:         sheet.Image,
			Width:         sheet.Width,
			Height:        sheet.Height,
			PixelsPerUnit: fingerprintInt(t.Fingerprint, "pixels_per_unit", 0),
			ResourcePath:  t.Fingerprint["resource_path"],
			Frames:        sheet.Frames,
		}
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		data = append(data, '\n')
	}

	out := t.Outputs[0]
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, err
	}
	return t.Outputs, nil
}

// loadSheet finds and parses the frame map among the atlas dependency's
// outputs.
func loadSheet(depOutputs map[string][]string) (*Sheet, error) {
	for _, outs := range depOutputs {
		for _, out := range outs {
			if !strings.HasSuffix(out, ".json") {
				continue
			}
			data, err := os.ReadFile(out)
			if err != nil {
				return nil, err
			}
			var sheet Sheet
			if err := json.Unmarshal(data, &sheet); err != nil {
				return nil, fmt.Errorf("parsing frame map %s: %w", out, err)
			}
			return &sheet, nil
		}
	}
	return nil, fmt.Errorf("no frame map among dependency outputs")
}

// godotResource renders the frame map as a Godot text resource with one
// AtlasTexture sub-resource per frame.
func godotResource(sheet *Sheet, resourcePath string) string {
	if resourcePath == "" {
		resourcePath = "res://" + sheet.Image
	}

	names := make([]string, 0, len(sheet.Frames))
	for name := range sheet.Frames {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "[gd_resource type=\"Resource\" load_steps=%d format=3]\n\n", len(names)+2)
	fmt.Fprintf(&b, "[ext_resource type=\"Texture2D\" path=%q id=\"1\"]\n\n", resourcePath)
	for i, name := range names {
		f := sheet.Frames[name]
		fmt.Fprintf(&b, "[sub_resource type=\"AtlasTexture\" id=\"frame_%d\"]\n", i+1)
		b.WriteString("atlas = ExtResource(\"1\")\n")
		fmt.Fprintf(&b, "region = Rect2(%d, %d, %d, %d)\n\n", f.X, f.Y, f.W, f.H)
	}
	b.WriteString("[resource]\n")
	b.WriteString("frames = {\n")
	for i, name := range names {
		fmt.Fprintf(&b, "%q: SubResource(\"frame_%d\"),\n", name, i+1)
	}
	b.WriteString("}\n")
	return b.String()
}
