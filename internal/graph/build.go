package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/scbrown/pixelsrc/internal/config"
	"github.com/scbrown/pixelsrc/internal/ctxlog"
	"github.com/scbrown/pixelsrc/internal/fsutil"
	"github.com/scbrown/pixelsrc/internal/target"
)

// Build turns the project configuration and the current source tree into a
// validated target graph. It is a pure function of its inputs: identical
// configuration and sources always yield an identical graph.
//
// Each glob-matched sprite source becomes one SpriteRender target. Each atlas
// declaration becomes an AtlasPack target depending on every sprite its globs
// matched. Each enabled export declaration becomes an EngineExport target
// depending on the atlas it names; naming an undeclared atlas is a
// configuration error.
func Build(ctx context.Context, cfg *config.Config, root string) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	srcDir := filepath.Join(root, cfg.Project.Src)
	outDir := filepath.Join(root, cfg.Project.Out)

	var targets []*target.Target
	sprites := make(map[string]*target.Target) // source rel path -> sprite target
	spriteSource := make(map[string]string)    // sprite name -> source rel path

	spriteFor := func(rel string) (*target.Target, error) {
		if t, ok := sprites[rel]; ok {
			return t, nil
		}
		name := strings.TrimSuffix(rel, filepath.Ext(rel))
		// Sources differing only by extension would collide on the same
		// sprite id; name both files rather than surfacing a bare
		// duplicate-id error from graph validation.
		if prev, ok := spriteSource[name]; ok {
			return nil, config.Errorf("sources %q and %q both produce sprite %q", prev, rel, name)
		}
		spriteSource[name] = rel
		t := target.Sprite(name,
			filepath.Join(srcDir, filepath.FromSlash(rel)),
			filepath.Join(outDir, "sprites", filepath.FromSlash(name)+".png"),
		)
		t.SetFingerprint("scale", strconv.Itoa(cfg.Defaults.Scale))
		sprites[rel] = t
		targets = append(targets, t)
		return t, nil
	}

	atlasNames := make(map[string]struct{}, len(cfg.Atlases))
	for _, a := range cfg.Atlases {
		atlasNames[a.Name] = struct{}{}

		matched, err := fsutil.Glob(srcDir, a.Sources)
		if err != nil {
			return nil, config.Errorf("atlas %q: invalid source pattern: %v", a.Name, err)
		}

		at := target.Atlas(a.Name, []string{
			filepath.Join(outDir, a.Name+".png"),
			filepath.Join(outDir, a.Name+".json"),
		})
		at.SetFingerprint("max_size", fmt.Sprintf("%dx%d", a.MaxSize[0], a.MaxSize[1]))
		at.SetFingerprint("padding", strconv.Itoa(*a.Padding))
		at.SetFingerprint("power_of_two", strconv.FormatBool(a.PowerOfTwo))
		for _, rel := range matched {
			sp, err := spriteFor(rel)
			if err != nil {
				return nil, err
			}
			at.AddDependency(sp.ID)
		}
		targets = append(targets, at)
	}

	if cfg.Animations.Preview {
		matched, err := fsutil.Glob(srcDir, cfg.Animations.Sources)
		if err != nil {
			return nil, config.Errorf("animations: invalid source pattern: %v", err)
		}
		for _, rel := range matched {
			name := strings.TrimSuffix(rel, filepath.Ext(rel))
			pv := target.Preview(name,
				filepath.Join(srcDir, filepath.FromSlash(rel)),
				filepath.Join(outDir, "previews", filepath.FromSlash(name)+".png"),
			)
			pv.SetFingerprint("preview_scale", strconv.Itoa(cfg.Animations.PreviewScale))
			targets = append(targets, pv)
		}
	}

	for _, e := range cfg.Exports {
		if !e.IsEnabled() {
			continue
		}
		if _, ok := atlasNames[e.Atlas]; !ok {
			return nil, config.Errorf("export %q references undeclared atlas %q", e.Engine, e.Atlas)
		}
		ex := target.Export(e.Engine, e.Atlas, []string{exportOutput(outDir, e)})
		ex.SetFingerprint("resource_path", e.ResourcePath)
		if e.PixelsPerUnit > 0 {
			ex.SetFingerprint("pixels_per_unit", strconv.Itoa(e.PixelsPerUnit))
		}
		targets = append(targets, ex)
	}

	g, err := New(targets)
	if err != nil {
		return nil, err
	}
	logger.Debug("Target graph built.",
		"targets", g.Len(),
		"waves", len(g.Waves()),
		"sprites", len(sprites),
	)
	return g, nil
}

// exportOutput picks the emitted file path for an export declaration. Godot
// gets a .tres resource, every other engine a JSON metadata file.
func exportOutput(outDir string, e config.Export) string {
	base := filepath.Join(outDir, "exports", e.Atlas)
	if e.Engine == "godot" {
		return base + ".tres"
	}
	return base + "." + e.Engine + ".json"
}
