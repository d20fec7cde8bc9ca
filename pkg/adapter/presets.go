package adapter

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jpfielding/dcmimage.go/pkg/lut"
	"gopkg.in/yaml.v3"
)

// Preset is a named window
type Preset struct {
	Name   string
	Window float64
	Level  float64
	Shape  lut.Shape
}

func (p Preset) String() string {
	return fmt.Sprintf("%s W=%g L=%g", p.Name, p.Window, p.Level)
}

//go:embed presets.yaml
var presetsYAML []byte

type presetEntry struct {
	Name   string  `yaml:"name"`
	Window float64 `yaml:"window"`
	Level  float64 `yaml:"level"`
	Shape  string  `yaml:"shape,omitempty"`
}

// ParsePresets reads per modality presets from YAML: a map of modality to
// a list of name, window, level and optional shape
func ParsePresets(b []byte) (map[string][]Preset, error) {
	var raw map[string][]presetEntry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make(map[string][]Preset, len(raw))
	for modality, entries := range raw {
		for _, e := range entries {
			if e.Window <= 0 {
				return nil, fmt.Errorf("preset %s/%s: window must be positive", modality, e.Name)
			}
			shape := lut.Linear
			if e.Shape != "" {
				s, ok := lut.ShapeByName(e.Shape)
				if !ok {
					return nil, fmt.Errorf("preset %s/%s: unknown shape %q", modality, e.Name, e.Shape)
				}
				shape = s
			}
			out[strings.ToUpper(modality)] = append(out[strings.ToUpper(modality)], Preset{
				Name:   e.Name,
				Window: e.Window,
				Level:  e.Level,
				Shape:  shape,
			})
		}
	}
	return out, nil
}

var modalityPresets = sync.OnceValue(func() map[string][]Preset {
	p, err := ParsePresets(presetsYAML)
	if err != nil {
		slog.Error("invalid built in presets", slog.Any("err", err))
		return nil
	}
	return p
})

// buildPresets lists the DICOM windows, then the VOI LUTs, then the full
// dynamic range, then the modality presets for images deeper than 8 bits
func (a *Adapter) buildPresets(p Presentation) []Preset {
	_, pr := presentationOf(p)
	voi, origin := a.voiModule(pr)

	shape := lut.Linear
	if voi != nil && voi.VOILUTFunction != "" {
		shape = voi.Shape()
		shape.Explanation = fmt.Sprintf("%s %s", shape.Function, origin)
	}

	var out []Preset
	if voi != nil {
		k := 1
		for _, w := range voi.Windows {
			name := strings.TrimSpace(w.Explanation)
			if name == "" {
				name = fmt.Sprintf("Default %d", k)
			}
			preset := Preset{Name: name + " " + origin, Window: w.Width, Level: w.Center, Shape: shape}
			if containsWindow(out, preset) {
				continue
			}
			out = append(out, preset)
			k++
		}
		for i, v := range voi.LUTs {
			name := strings.TrimSpace(v.Explanation)
			if name == "" {
				name = fmt.Sprintf("VOI LUT %d", i)
			}
			if preset, ok := a.tablePreset(v.Table, name+" "+origin, p); ok {
				out = append(out, preset)
			}
		}
	}

	out = append(out, Preset{
		Name:   "Auto Level [Image]",
		Window: a.FullDynamicWidth(p),
		Level:  a.FullDynamicCenter(p),
		Shape:  shape,
	})

	// secondary captures of CT carry 8 bits and get no CT presets
	if a.bitsStored > 8 {
		out = append(out, a.typePreset[strings.ToUpper(a.desc.Modality)]...)
	}
	return out
}

// tablePreset spans the input range of a VOI LUT clipped to the allocated
// range
func (a *Adapter) tablePreset(t *lut.LookupTable, name string, p Presentation) (Preset, bool) {
	if t == nil || t.NumEntries() == 0 {
		return Preset{}, false
	}
	lo := max(t.Offset, a.MinAllocatedValue(p))
	hi := min(t.Offset+t.NumEntries()-1, a.MaxAllocatedValue(p))
	width := float64(hi - lo)
	return Preset{
		Name:   name,
		Window: width,
		Level:  float64(lo) + width/2,
		Shape:  lut.SequenceShape(t, name),
	}, true
}

func containsWindow(presets []Preset, p Preset) bool {
	for _, q := range presets {
		if q.Window == p.Window && q.Level == p.Level && q.Shape.Function == p.Shape.Function {
			return true
		}
	}
	return false
}
