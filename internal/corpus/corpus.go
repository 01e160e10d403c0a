// Package corpus loads the curated seed chains the similarity index starts from.
package corpus

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

//go:embed presets.yaml
var defaultPresets []byte

// ErrEmpty is returned when a corpus file has no presets.
var ErrEmpty = errors.New("corpus has no presets")

// #region types
type file struct {
	Presets []entry `yaml:"presets"`
}

type entry struct {
	Name  string      `yaml:"name"`
	Vibe  string      `yaml:"vibe"`
	Genre string      `yaml:"genre"`
	Units []unitEntry `yaml:"units"`
}

type unitEntry struct {
	ID     int                `yaml:"id"`
	Mix    *float64           `yaml:"mix"`
	Params map[string]float64 `yaml:"params"`
}

// Preset is one named seed chain.
type Preset struct {
	Name      string
	Candidate preset.Candidate
}

// #endregion types

// #region load
// Default parses the embedded corpus.
func Default(cat *catalog.Catalog, maxSlots int) ([]Preset, error) {
	return Parse(defaultPresets, cat, maxSlots)
}

// LoadFile parses a corpus YAML file.
func LoadFile(path string, cat *catalog.Catalog, maxSlots int) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return Parse(data, cat, maxSlots)
}

// Parse decodes corpus YAML against cat. Every unit and parameter name must
// exist in the catalog; unnamed parameters default to neutral.
func Parse(data []byte, cat *catalog.Catalog, maxSlots int) ([]Preset, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, ErrEmpty
	}

	seen := make(map[string]bool, len(f.Presets))
	out := make([]Preset, 0, len(f.Presets))
	for _, e := range f.Presets {
		if e.Name == "" {
			return nil, fmt.Errorf("corpus preset with vibe %q has no name", e.Vibe)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("duplicate corpus preset %q", e.Name)
		}
		seen[e.Name] = true

		c, err := build(e, cat, maxSlots)
		if err != nil {
			return nil, fmt.Errorf("corpus preset %q: %w", e.Name, err)
		}
		out = append(out, Preset{Name: e.Name, Candidate: c})
	}
	return out, nil
}

func build(e entry, cat *catalog.Catalog, maxSlots int) (preset.Candidate, error) {
	if len(e.Units) == 0 {
		return preset.Candidate{}, errors.New("no units")
	}
	if len(e.Units) > maxSlots {
		return preset.Candidate{}, fmt.Errorf("%w: %d units", preset.ErrTooManySlots, len(e.Units))
	}
	c := preset.Default(maxSlots)
	c.Vibe, c.Genre, c.Source = e.Vibe, e.Genre, preset.SourceIndex
	for i, u := range e.Units {
		d, err := cat.Describe(u.ID)
		if err != nil {
			return preset.Candidate{}, err
		}
		params := preset.NeutralParams(d)
		for name, v := range u.Params {
			pi, ok := d.ParamIndex(name)
			if !ok {
				return preset.Candidate{}, fmt.Errorf("%s has no param %q", d.Name, name)
			}
			params[pi] = v
		}
		mix := 1.0
		if u.Mix != nil {
			mix = *u.Mix
		}
		c.Slots[i] = preset.Slot{Index: i + 1, EngineID: u.ID, Params: params, Mix: mix}
	}
	return c, nil
}

// #endregion load

// #region items
// Items encodes presets as seed index items.
func Items(presets []Preset, enc *encoder.Encoder) []index.Item {
	now := time.Now().UTC()
	items := make([]index.Item, len(presets))
	for i, p := range presets {
		items[i] = index.Item{
			ID:        "seed:" + p.Name,
			Vector:    enc.EncodeCandidate(p.Candidate),
			Candidate: p.Candidate,
			Origin:    index.OriginSeed,
			CreatedAt: now,
		}
	}
	return items
}

// #endregion items
