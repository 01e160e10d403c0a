package preset

import (
	"errors"
	"fmt"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
)

// ErrParamCount marks a slot whose parameter array does not match the catalog.
var ErrParamCount = errors.New("parameter count mismatch")

// ErrTooManySlots marks active slots beyond the configured maximum.
var ErrTooManySlots = errors.New("too many active slots")

// ErrTooManyUnits marks active slots dropped to honor a request's MaxUnits.
var ErrTooManyUnits = errors.New("too many active units")

// #region problem
// Problem is a structural defect found in one slot. The slot it names has been
// rejected (bypassed) by Sanitize.
type Problem struct {
	Slot     int
	EngineID int
	Err      error
}

// #endregion problem

// #region sanitize
// Sanitize rejects slots that must never reach the output: unknown unit IDs,
// parameter arrays of the wrong length, and active slots beyond maxSlots. The
// result always has exactly maxSlots slots numbered 1..maxSlots.
func Sanitize(cat *catalog.Catalog, c Candidate, maxSlots int) (Candidate, []Problem) {
	out := c.Clone()
	var problems []Problem

	slots := make([]Slot, 0, maxSlots)
	active := 0
	for _, s := range out.Slots {
		if !s.Active() {
			continue
		}
		d, err := cat.Describe(s.EngineID)
		if err != nil {
			problems = append(problems, Problem{Slot: s.Index, EngineID: s.EngineID, Err: err})
			continue
		}
		if len(s.Params) != d.ParamCount() {
			problems = append(problems, Problem{
				Slot:     s.Index,
				EngineID: s.EngineID,
				Err:      fmt.Errorf("%w: %s wants %d, got %d", ErrParamCount, d.Name, d.ParamCount(), len(s.Params)),
			})
			continue
		}
		if active == maxSlots {
			problems = append(problems, Problem{
				Slot:     s.Index,
				EngineID: s.EngineID,
				Err:      fmt.Errorf("%w: limit %d", ErrTooManySlots, maxSlots),
			})
			continue
		}
		active++
		slots = append(slots, s)
	}
	for len(slots) < maxSlots {
		slots = append(slots, bypassSlot(0))
	}
	for i := range slots {
		slots[i].Index = i + 1
	}
	out.Slots = slots
	return out, problems
}

// #endregion sanitize

// #region trim
// Trim keeps at most maxUnits active slots. Slots carrying a required unit are
// kept first, then the rest in slot order. Surviving slots keep their relative
// order and are packed to the front; the slot count is unchanged.
func Trim(c Candidate, maxUnits int, required []int) (Candidate, []Problem) {
	if maxUnits <= 0 || c.ActiveCount() <= maxUnits {
		return c.Clone(), nil
	}
	want := make(map[int]bool, len(required))
	for _, id := range required {
		want[id] = true
	}

	keep := make([]bool, len(c.Slots))
	kept := 0
	for i, s := range c.Slots {
		if kept < maxUnits && s.Active() && want[s.EngineID] {
			keep[i] = true
			want[s.EngineID] = false
			kept++
		}
	}
	for i, s := range c.Slots {
		if kept < maxUnits && s.Active() && !keep[i] {
			keep[i] = true
			kept++
		}
	}

	out := c.Clone()
	var problems []Problem
	slots := make([]Slot, 0, len(c.Slots))
	for i, s := range out.Slots {
		switch {
		case keep[i]:
			slots = append(slots, s)
		case s.Active():
			problems = append(problems, Problem{
				Slot:     s.Index,
				EngineID: s.EngineID,
				Err:      fmt.Errorf("%w: limit %d", ErrTooManyUnits, maxUnits),
			})
		}
	}
	for len(slots) < len(c.Slots) {
		slots = append(slots, bypassSlot(0))
	}
	for i := range slots {
		slots[i].Index = i + 1
	}
	out.Slots = slots
	return out, problems
}

// #endregion trim

// #region neutral-params
// NeutralParams returns a mid-scale parameter array for a unit. Used when a
// chain names a unit without setting every parameter.
func NeutralParams(d catalog.Descriptor) []float64 {
	p := make([]float64, d.ParamCount())
	for i := range p {
		p[i] = 0.5
	}
	return p
}

// #endregion neutral-params
