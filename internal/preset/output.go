package preset

// #region output
// SlotOutput is one flat slot group as handed back to the caller.
type SlotOutput struct {
	EngineID int       `json:"engine_id"`
	Bypass   bool      `json:"bypass"`
	Mix      float64   `json:"mix"`
	Params   []float64 `json:"params"`
}

// Output is the flat rendering of a resolved chain: exactly maxSlots groups.
type Output struct {
	Slots []SlotOutput `json:"slots"`
}

// Render flattens a sanitized candidate. Slots past the active units are fully
// bypassed with neutral values.
func Render(c Candidate, maxSlots int) Output {
	out := Output{Slots: make([]SlotOutput, maxSlots)}
	n := 0
	for _, s := range c.Slots {
		if !s.Active() || n == maxSlots {
			continue
		}
		out.Slots[n] = SlotOutput{
			EngineID: s.EngineID,
			Mix:      s.Mix,
			Params:   append([]float64(nil), s.Params...),
		}
		n++
	}
	for i := n; i < maxSlots; i++ {
		out.Slots[i] = SlotOutput{Bypass: true, Params: []float64{}}
	}
	return out
}

// ActiveUnits returns the engine IDs of non-bypassed output slots.
func (o Output) ActiveUnits() []int {
	var ids []int
	for _, s := range o.Slots {
		if !s.Bypass && s.EngineID != 0 {
			ids = append(ids, s.EngineID)
		}
	}
	return ids
}

// #endregion output
