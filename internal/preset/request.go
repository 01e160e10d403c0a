// Package preset defines the values that flow through the resolution pipeline:
// the semantic request coming in, the candidate chain being resolved, and the
// flat slot rendering handed back to the caller.
package preset

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
)

// ErrInvalidRequest wraps every request validation failure.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// #region request
// Request is the structured description of desired sonic character produced by
// the creative front-end. Treat it as immutable once built.
type Request struct {
	VibeText      string `json:"vibe_text" yaml:"vibe_text" validate:"required,max=512"`
	Genre         string `json:"genre,omitempty" yaml:"genre" validate:"max=64"`
	RequiredUnits []int  `json:"required_units,omitempty" yaml:"required_units" validate:"max=16,dive,min=1"`
	MaxUnits      int    `json:"max_units" yaml:"max_units" validate:"min=0"`
}

// WithDefaults returns a copy with MaxUnits defaulted to maxSlots and capped at it.
func (r Request) WithDefaults(maxSlots int) Request {
	out := r
	if out.MaxUnits <= 0 || out.MaxUnits > maxSlots {
		out.MaxUnits = maxSlots
	}
	if len(r.RequiredUnits) > 0 {
		out.RequiredUnits = append([]int(nil), r.RequiredUnits...)
	}
	return out
}

// #endregion request

// #region validate
// ValidateRequest checks field constraints and that every required unit exists
// in the catalog and fits within MaxUnits.
func ValidateRequest(cat *catalog.Catalog, r Request) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	seen := make(map[int]bool, len(r.RequiredUnits))
	for _, id := range r.RequiredUnits {
		if !cat.IsValid(id) {
			return fmt.Errorf("%w: required unit: %w", ErrInvalidRequest, fmt.Errorf("%w: %d", catalog.ErrUnknownUnit, id))
		}
		if seen[id] {
			return fmt.Errorf("%w: required unit %d listed twice", ErrInvalidRequest, id)
		}
		seen[id] = true
	}
	if r.MaxUnits > 0 && len(r.RequiredUnits) > r.MaxUnits {
		return fmt.Errorf("%w: %d required units exceed max units %d", ErrInvalidRequest, len(r.RequiredUnits), r.MaxUnits)
	}
	return nil
}

// #endregion validate
