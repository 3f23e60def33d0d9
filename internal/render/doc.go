// Package render implements the delegated build capabilities the scheduler
// dispatches to: sprite rendering, atlas packing, animation previews, and
// engine exports. The orchestrator treats these as opaque; an error from any
// of them fails only the target that invoked it.
package render

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// SpriteDef is one sprite declaration: a token grid plus the palette that
// maps tokens to colors.
type SpriteDef struct {
	Name    string
	Palette map[string]string
	Grid    []string
}

// AnimationDef is one animation declaration referencing sprites by name.
type AnimationDef struct {
	Name   string
	Frames []string
}

// Document is the parsed content of one pixel-art source file.
type Document struct {
	Sprites    []*SpriteDef
	Animations []*AnimationDef
}

// rawLine covers every object shape that can appear in a source file. The
// palette field is either a palette name or an inline token-to-color map.
type rawLine struct {
	Type    string            `json:"type"`
	Name    string            `json:"name"`
	Colors  map[string]string `json:"colors"`
	Palette json.RawMessage   `json:"palette"`
	Grid    []string          `json:"grid"`
	Frames  []string          `json:"frames"`
}

// ParseFile reads a JSONL source document. Unknown object types are ignored
// for forward compatibility; a malformed line fails the whole file with its
// line number, which in turn fails only the target built from it.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := &Document{}
	palettes := make(map[string]map[string]string)
	var pendingPalette []*SpriteDef // sprites whose named palette may appear later

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	spritePalettes := make(map[*SpriteDef]string)

	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var raw rawLine
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}

		switch raw.Type {
		case "palette":
			if raw.Name == "" {
				return nil, fmt.Errorf("%s:%d: palette requires a name", path, lineNo)
			}
			palettes[raw.Name] = raw.Colors

		case "sprite":
			sp := &SpriteDef{Name: raw.Name, Grid: raw.Grid}
			if len(raw.Palette) > 0 {
				var named string
				if err := json.Unmarshal(raw.Palette, &named); err == nil {
					spritePalettes[sp] = named
					pendingPalette = append(pendingPalette, sp)
				} else if err := json.Unmarshal(raw.Palette, &sp.Palette); err != nil {
					return nil, fmt.Errorf("%s:%d: sprite %q: palette must be a name or a color map", path, lineNo, raw.Name)
				}
			}
			doc.Sprites = append(doc.Sprites, sp)

		case "animation":
			doc.Animations = append(doc.Animations, &AnimationDef{Name: raw.Name, Frames: raw.Frames})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, sp := range pendingPalette {
		name := spritePalettes[sp]
		colors, ok := palettes[name]
		if !ok {
			return nil, fmt.Errorf("%s: sprite %q references unknown palette %q", path, sp.Name, name)
		}
		sp.Palette = colors
	}
	return doc, nil
}

// Sprite returns the named sprite, or the first one when name is empty.
func (d *Document) Sprite(name string) (*SpriteDef, bool) {
	for _, sp := range d.Sprites {
		if name == "" || sp.Name == name {
			return sp, true
		}
	}
	return nil, false
}

// tokenizeRow splits one grid row into palette tokens. Tokens are either
// brace-wrapped ("{water}") or single characters; "." and "_" shorthand for
// the transparent token.
func tokenizeRow(row string) ([]string, error) {
	var tokens []string
	runes := []rune(row)
	for i := 0; i < len(runes); {
		if runes[i] == '{' {
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '}' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unterminated token in row %q", row)
			}
			tokens = append(tokens, string(runes[i:end+1]))
			i = end + 1
			continue
		}
		tokens = append(tokens, string(runes[i]))
		i++
	}
	return tokens, nil
}

// lookupColor resolves a grid token against a palette. Transparent tokens
// resolve to the zero color.
func lookupColor(palette map[string]string, token string) (color.NRGBA, error) {
	if token == "." || token == "_" || token == "{_}" || token == "{.}" || token == " " {
		return color.NRGBA{}, nil
	}
	hex, ok := palette[token]
	if !ok {
		// Single-character tokens may be written brace-wrapped in the
		// palette, and vice versa.
		if len([]rune(token)) == 1 {
			hex, ok = palette["{"+token+"}"]
		} else if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
			hex, ok = palette[strings.TrimSuffix(strings.TrimPrefix(token, "{"), "}")]
		}
	}
	if !ok {
		return color.NRGBA{}, fmt.Errorf("token %q not found in palette", token)
	}
	return ParseColor(hex)
}

// ParseColor parses #RGB, #RRGGBB and #RRGGBBAA hex colors.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	parse := func(sub string) (uint8, error) {
		var v uint8
		_, err := fmt.Sscanf(sub, "%02x", &v)
		return v, err
	}
	switch len(s) {
	case 3:
		var c color.NRGBA
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			v, err := parse(string(s[i]) + string(s[i]))
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
			}
			*dst = v
		}
		c.A = 0xff
		return c, nil
	case 6, 8:
		var c color.NRGBA
		parts := []*uint8{&c.R, &c.G, &c.B, &c.A}
		c.A = 0xff
		for i := 0; i*2 < len(s); i++ {
			v, err := parse(s[i*2 : i*2+2])
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
			}
			*parts[i] = v
		}
		return c, nil
	default:
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
}
