package preset

// #region source
// Source records which cascade stage produced a candidate.
type Source string

const (
	SourceCache      Source = "cache"
	SourceIndex      Source = "index"
	SourceEscalation Source = "escalation"
	SourceFallback   Source = "fallback"
	SourceDefault    Source = "default"
)

// #endregion source

// #region slot
// Slot is one position in a chain. Index is 1-based; EngineID 0 means empty.
type Slot struct {
	Index    int       `json:"slot"`
	EngineID int       `json:"engine_id"`
	Params   []float64 `json:"params"`
	Mix      float64   `json:"mix"`
	Bypass   bool      `json:"bypass"`
}

// Active reports whether the slot carries a unit that processes audio.
func (s Slot) Active() bool {
	return !s.Bypass && s.EngineID != 0
}

func bypassSlot(index int) Slot {
	return Slot{Index: index, Bypass: true}
}

// #endregion slot

// #region candidate
// Candidate is an ordered chain of slots plus the scores that selected it.
type Candidate struct {
	Slots      []Slot  `json:"slots"`
	Vibe       string  `json:"vibe,omitempty"`
	Genre      string  `json:"genre,omitempty"`
	Similarity float64 `json:"similarity"`
	Overlap    float64 `json:"overlap"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source,omitempty"`
}

// Default returns the deterministic all-bypassed chain.
func Default(maxSlots int) Candidate {
	c := Candidate{Slots: make([]Slot, maxSlots), Source: SourceDefault}
	for i := range c.Slots {
		c.Slots[i] = bypassSlot(i + 1)
	}
	return c
}

// Clone returns a deep copy, so the result can be rewritten without aliasing.
func (c Candidate) Clone() Candidate {
	out := c
	out.Slots = make([]Slot, len(c.Slots))
	for i, s := range c.Slots {
		out.Slots[i] = s
		if s.Params != nil {
			out.Slots[i].Params = append([]float64(nil), s.Params...)
		}
	}
	return out
}

// Units returns the engine IDs of active slots in slot order.
func (c Candidate) Units() []int {
	var ids []int
	for _, s := range c.Slots {
		if s.Active() {
			ids = append(ids, s.EngineID)
		}
	}
	return ids
}

// ActiveCount returns the number of active slots.
func (c Candidate) ActiveCount() int {
	n := 0
	for _, s := range c.Slots {
		if s.Active() {
			n++
		}
	}
	return n
}

// HasUnits reports whether any slot is active.
func (c Candidate) HasUnits() bool {
	return c.ActiveCount() > 0
}

// #endregion candidate

// #region overlap
// OverlapRatio returns |required ∩ units| / |required|, or 1 when nothing is required.
func OverlapRatio(required, units []int) float64 {
	if len(required) == 0 {
		return 1.0
	}
	present := make(map[int]bool, len(units))
	for _, id := range units {
		present[id] = true
	}
	hit := 0
	seen := make(map[int]bool, len(required))
	for _, id := range required {
		if seen[id] {
			continue
		}
		seen[id] = true
		if present[id] {
			hit++
		}
	}
	return float64(hit) / float64(len(seen))
}

// #endregion overlap
