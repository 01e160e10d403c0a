// Package chain puts a candidate's active units into canonical processing order.
package chain

import (
	"math"
	"sort"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region optimizer
// Optimizer orders units by catalog chain priority: gain staging, dynamics,
// tone, harmonics, movement, pitch, time, space, and final utilities.
type Optimizer struct {
	cat *catalog.Catalog
}

// NewOptimizer creates an optimizer over the given catalog.
func NewOptimizer(cat *catalog.Catalog) *Optimizer {
	return &Optimizer{cat: cat}
}

// #endregion optimizer

// #region optimize
// Optimize returns a copy of c with active units stable-sorted by chain
// priority and packed into slots 1..n. The remaining slots become neutral
// bypass slots; the slot count is unchanged. Optimize is idempotent.
func (o *Optimizer) Optimize(c preset.Candidate) preset.Candidate {
	out := c.Clone()

	active := make([]preset.Slot, 0, len(out.Slots))
	for _, s := range out.Slots {
		if s.Active() {
			active = append(active, s)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return o.priority(active[i].EngineID) < o.priority(active[j].EngineID)
	})

	slots := make([]preset.Slot, len(out.Slots))
	for i := range slots {
		if i < len(active) {
			slots[i] = active[i]
		} else {
			slots[i] = preset.Slot{Bypass: true}
		}
		slots[i].Index = i + 1
	}
	out.Slots = slots
	return out
}

// priority sorts unknown units last so sanitizing can reject them.
func (o *Optimizer) priority(id int) int {
	p, err := o.cat.ChainPriority(id)
	if err != nil {
		return math.MaxInt
	}
	return p
}

// #endregion optimize
