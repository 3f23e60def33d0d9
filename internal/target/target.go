// Package target defines the unit of buildable work: a target with declared
// inputs, declared outputs, and a configuration fingerprint. Target identity
// is a "kind:name" string, which keeps log lines, manifest keys, and event
// payloads human-readable.
package target

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of buildable target kinds. Each kind is bound to a
// build capability when the scheduler is constructed.
type Kind int

const (
	// SpriteRender renders a single pixel-art source document to an image.
	SpriteRender Kind = iota
	// AtlasPack packs rendered sprites into a texture atlas plus frame map.
	AtlasPack
	// AnimationPreview renders an animation source to a preview strip.
	AnimationPreview
	// EngineExport emits engine-specific metadata from an atlas.
	EngineExport
)

// String returns the short identifier used in target ids and event payloads.
func (k Kind) String() string {
	switch k {
	case SpriteRender:
		return "sprite"
	case AtlasPack:
		return "atlas"
	case AnimationPreview:
		return "preview"
	case EngineExport:
		return "export"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ID builds the canonical target id for a kind and name.
func ID(kind Kind, name string) string {
	return kind.String() + ":" + name
}

// Target is a single unit of buildable work.
type Target struct {
	// ID is the unique "kind:name" identifier.
	ID string
	// Kind selects the build capability.
	Kind Kind
	// Name is the human-readable name within the kind.
	Name string
	// Sources are the declared source file paths, sorted. For targets that
	// consume only other targets' outputs this is empty.
	Sources []string
	// Outputs are the declared output paths, unique across the whole graph.
	Outputs []string
	// DependsOn lists producer target ids whose outputs this target consumes.
	DependsOn []string
	// Fingerprint holds the effective configuration fields that feed the
	// input hash, so a config change invalidates the target.
	Fingerprint map[string]string
}

// Sprite creates a SpriteRender target for one source document.
func Sprite(name, source, output string) *Target {
	return &Target{
		ID:      ID(SpriteRender, name),
		Kind:    SpriteRender,
		Name:    name,
		Sources: []string{source},
		Outputs: []string{output},
	}
}

// Atlas creates an AtlasPack target. Its inputs are the outputs of the
// sprite targets it depends on; deps are attached by the graph builder.
func Atlas(name string, outputs []string) *Target {
	return &Target{
		ID:      ID(AtlasPack, name),
		Kind:    AtlasPack,
		Name:    name,
		Outputs: outputs,
	}
}

// Preview creates an AnimationPreview target for one animation source.
func Preview(name, source, output string) *Target {
	return &Target{
		ID:      ID(AnimationPreview, name),
		Kind:    AnimationPreview,
		Name:    name,
		Sources: []string{source},
		Outputs: []string{output},
	}
}

// Export creates an EngineExport target for the given engine, depending on
// the named atlas.
func Export(engine, atlasName string, outputs []string) *Target {
	return &Target{
		ID:        ID(EngineExport, engine+":"+atlasName),
		Kind:      EngineExport,
		Name:      engine + ":" + atlasName,
		Outputs:   outputs,
		DependsOn: []string{ID(AtlasPack, atlasName)},
		Fingerprint: map[string]string{
			"engine": engine,
		},
	}
}

// AddDependency appends a producer target id, keeping the list sorted and
// free of duplicates.
func (t *Target) AddDependency(id string) {
	for _, d := range t.DependsOn {
		if d == id {
			return
		}
	}
	t.DependsOn = append(t.DependsOn, id)
	sort.Strings(t.DependsOn)
}

// SetFingerprint records one effective configuration field.
func (t *Target) SetFingerprint(key, value string) {
	if t.Fingerprint == nil {
		t.Fingerprint = make(map[string]string)
	}
	t.Fingerprint[key] = value
}

// FingerprintKeys returns the fingerprint field names in sorted order, so
// hashing is deterministic.
func (t *Target) FingerprintKeys() []string {
	keys := make([]string, 0, len(t.Fingerprint))
	for k := range t.Fingerprint {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether the target matches a filter string such as
// "atlas:characters", "atlas", "atlas:*" or "*:characters".
func (t *Target) Matches(filter string) bool {
	if t.ID == filter || t.Kind.String() == filter {
		return true
	}
	kindPat, namePat, ok := strings.Cut(filter, ":")
	if !ok {
		return false
	}
	kindOK := kindPat == "*" || kindPat == t.Kind.String()
	nameOK := namePat == "*" || namePat == t.Name
	return kindOK && nameOK
}
