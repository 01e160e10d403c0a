// Package encoder turns requests and candidates into fixed-length feature
// vectors in one shared layout:
//
//	[ mood block (8) | unit block (one dim per unit ID 1..N) | meta (1) ]
//
// Unit presence is positional, so two chains with the same units land on the
// same unit block regardless of order.
package encoder

import (
	"math"
	"strings"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region encoder
// Encoder builds vectors for one catalog.
type Encoder struct {
	units  int
	config Config
}

// New creates an encoder sized for cat.
func New(cat *catalog.Catalog, config Config) *Encoder {
	if config.MaxSlots <= 0 {
		config.MaxSlots = DefaultConfig().MaxSlots
	}
	return &Encoder{units: cat.Len(), config: config}
}

// Dim returns the length of every vector this encoder produces.
func (e *Encoder) Dim() int {
	return int(moodDims) + e.units + 1
}

// #endregion encoder

// #region encode
// EncodeRequest encodes the vibe, genre, required units, and requested size.
func (e *Encoder) EncodeRequest(r preset.Request) Vector {
	v := make(Vector, e.Dim())
	e.fillMood(v, r.VibeText, r.Genre)
	for _, id := range r.RequiredUnits {
		e.setUnit(v, id)
	}
	v[e.Dim()-1] = e.ratio(r.MaxUnits)
	return v
}

// EncodeCandidate encodes a chain's descriptive text and its active units.
func (e *Encoder) EncodeCandidate(c preset.Candidate) Vector {
	v := make(Vector, e.Dim())
	e.fillMood(v, c.Vibe, c.Genre)
	for _, s := range c.Slots {
		if s.Active() {
			e.setUnit(v, s.EngineID)
		}
	}
	v[e.Dim()-1] = e.ratio(c.ActiveCount())
	return v
}

// MoodOf returns the mood block for text and genre, for inspection.
func (e *Encoder) MoodOf(text, genre string) map[string]float32 {
	v := make(Vector, e.Dim())
	e.fillMood(v, text, genre)
	out := make(map[string]float32, moodDims)
	for m := Mood(0); m < moodDims; m++ {
		out[m.String()] = v[m] / e.moodScale()
	}
	return out
}

// #endregion encode

// #region helpers
func (e *Encoder) fillMood(v Vector, text, genre string) {
	var hits [moodDims]float32
	for _, tok := range preset.Tokens(text) {
		for _, m := range keywordIndex[tok] {
			hits[m]++
		}
	}
	boost := genreBoosts[strings.ToLower(strings.TrimSpace(genre))]
	scale := e.moodScale()
	for m := Mood(0); m < moodDims; m++ {
		// Two keyword hits saturate a dim.
		val := hits[m]*0.5 + boost[m]
		v[m] = float32(math.Min(1, float64(val))) * scale
	}
}

func (e *Encoder) moodScale() float32 {
	if e.config.MoodWeight <= 0 {
		return 1
	}
	return e.config.MoodWeight
}

// setUnit marks unit id present. IDs outside the catalog are ignored.
func (e *Encoder) setUnit(v Vector, id int) {
	if id < 1 || id > e.units {
		return
	}
	v[int(moodDims)+id-1] = e.config.UnitWeight
}

func (e *Encoder) ratio(n int) float32 {
	if n <= 0 {
		return 0
	}
	r := float32(n) / float32(e.config.MaxSlots)
	if r > 1 {
		r = 1
	}
	return r
}

// #endregion helpers
