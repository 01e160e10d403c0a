// Package safety enforces parameter invariants on a resolved chain: values in
// range, no runaway feedback, no self-oscillating filters, bounded total drive.
// Problems are fixed and reported; a chain is only refused when a hard ceiling
// cannot be met.
package safety

import (
	"fmt"
	"math"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region validator
// Validator checks and repairs parameter values against the catalog roles.
type Validator struct {
	cat    *catalog.Catalog
	config Config
}

// NewValidator creates a validator with the given thresholds.
func NewValidator(cat *catalog.Catalog, config Config) *Validator {
	return &Validator{cat: cat, config: config}
}

// #endregion validator

// #region validate
// Validate runs every check against c without modifying it.
func (v *Validator) Validate(c preset.Candidate) Report {
	var issues []Issue
	issues = append(issues, v.checkStructure(c)...)
	issues = append(issues, v.checkRange(c)...)
	issues = append(issues, v.checkFeedback(c)...)
	issues = append(issues, v.checkResonance(c)...)
	issues = append(issues, v.checkDrive(c)...)
	return newReport(issues)
}

// Process validates c, fixes it, and re-validates the fixed chain. The report
// carries the issues found on the input plus the fixes applied; IsSafe and
// Score describe the fixed chain.
func (v *Validator) Process(c preset.Candidate) (preset.Candidate, Report) {
	before := v.Validate(c)
	fixed, notes := v.fix(c)
	after := v.Validate(fixed)

	issues := append(before.Issues, notes...)
	return fixed, Report{
		Issues: issues,
		Score:  after.Score,
		IsSafe: after.IsSafe,
		Fixed:  len(notes) > 0,
	}
}

func newReport(issues []Issue) Report {
	return Report{Issues: issues, Score: math.Max(0, 1-penalty(issues)), IsSafe: !hasCritical(issues)}
}

func penalty(issues []Issue) float64 {
	var p float64
	for _, is := range issues {
		switch is.Severity {
		case SeverityWarning:
			p += 0.05
		case SeverityCritical:
			p += 0.25
		case SeverityError:
			p += 0.1
		}
	}
	return p
}

func hasCritical(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// WithIssues returns r with extra issues appended and their penalty applied.
func (r Report) WithIssues(extra ...Issue) Report {
	if len(extra) == 0 {
		return r
	}
	out := r
	out.Issues = append(append([]Issue(nil), r.Issues...), extra...)
	out.Score = math.Max(0, r.Score-penalty(extra))
	out.IsSafe = r.IsSafe && !hasCritical(extra)
	return out
}

// StructuralIssues converts slots rejected by preset.Sanitize into error issues.
func StructuralIssues(problems []preset.Problem) []Issue {
	issues := make([]Issue, 0, len(problems))
	for _, p := range problems {
		issues = append(issues, Issue{SeverityError, CheckStructure, p.Slot, p.EngineID, p.Err.Error()})
	}
	return issues
}

// #endregion validate

// #region checks
// checkStructure flags slots Sanitize would reject and active slots beyond MaxSlots.
func (v *Validator) checkStructure(c preset.Candidate) []Issue {
	var issues []Issue
	active := 0
	for _, s := range c.Slots {
		if !s.Active() {
			continue
		}
		active++
		d, err := v.cat.Describe(s.EngineID)
		if err != nil {
			issues = append(issues, Issue{SeverityError, CheckStructure, s.Index, s.EngineID, err.Error()})
			continue
		}
		if len(s.Params) != d.ParamCount() {
			issues = append(issues, Issue{SeverityError, CheckStructure, s.Index, s.EngineID,
				fmt.Sprintf("%s has %d params, want %d", d.Name, len(s.Params), d.ParamCount())})
		}
	}
	if v.config.MaxSlots > 0 && active > v.config.MaxSlots {
		issues = append(issues, Issue{SeverityError, CheckStructure, 0, 0,
			fmt.Sprintf("%d active slots exceed limit %d", active, v.config.MaxSlots)})
	}
	return issues
}

// checkRange flags values outside [0,1]. An out-of-range feedback parameter is
// only a warning here; checkFeedback raises the critical for it.
func (v *Validator) checkRange(c preset.Candidate) []Issue {
	var issues []Issue
	for _, s := range c.Slots {
		if !s.Active() {
			continue
		}
		d, err := v.cat.Describe(s.EngineID)
		if err != nil {
			continue
		}
		fb, hasFB := d.RoleIndex(catalog.RoleFeedback)
		for i, p := range s.Params {
			clamped := clamp(p)
			if clamped == p && !math.IsNaN(p) {
				continue
			}
			name := paramName(d, i)
			sev := SeverityInfo
			hot := hasFB && i == fb && d.Safety == catalog.SafetyFeedback && clamped > v.config.MaxFeedback
			if hot || math.IsNaN(p) || math.Abs(clamped-p) > v.config.LargeDelta {
				sev = SeverityWarning
			}
			issues = append(issues, Issue{sev, CheckRange, s.Index, s.EngineID,
				fmt.Sprintf("%s %s=%.3f outside [0,1]", d.Name, name, p)})
		}
		if s.Mix < 0 || s.Mix > 1 || math.IsNaN(s.Mix) {
			issues = append(issues, Issue{SeverityWarning, CheckRange, s.Index, s.EngineID,
				fmt.Sprintf("%s mix=%.3f outside [0,1]", d.Name, s.Mix)})
		}
	}
	return issues
}

// checkFeedback flags catastrophic feedback and hot feedback on short delays.
func (v *Validator) checkFeedback(c preset.Candidate) []Issue {
	var issues []Issue
	for _, s := range c.Slots {
		d, ok := v.activeDescriptor(s, catalog.SafetyFeedback)
		if !ok {
			continue
		}
		fb := roleValue(d, s, catalog.RoleFeedback)
		if fb > v.config.MaxFeedback {
			issues = append(issues, Issue{SeverityCritical, CheckFeedback, s.Index, s.EngineID,
				fmt.Sprintf("%s feedback %.3f exceeds %.2f", d.Name, fb, v.config.MaxFeedback)})
			continue
		}
		if ti, ok := d.RoleIndex(catalog.RoleDelayTime); ok && ti < len(s.Params) {
			dt := clamp(s.Params[ti])
			if dt < v.config.ShortDelay && fb > v.config.ShortDelayFeedback {
				issues = append(issues, Issue{SeverityWarning, CheckShortDelay, s.Index, s.EngineID,
					fmt.Sprintf("%s feedback %.3f on %.3f delay risks comb filtering", d.Name, fb, dt)})
			}
		}
	}
	return issues
}

// checkResonance flags high resonance at low cutoff.
func (v *Validator) checkResonance(c preset.Candidate) []Issue {
	var issues []Issue
	for _, s := range c.Slots {
		d, ok := v.activeDescriptor(s, catalog.SafetyResonance)
		if !ok {
			continue
		}
		res := roleValue(d, s, catalog.RoleResonance)
		cut := roleValue(d, s, catalog.RoleCutoff)
		if res > v.config.ResonanceLimit && cut < v.config.LowCutoff {
			issues = append(issues, Issue{SeverityWarning, CheckResonance, s.Index, s.EngineID,
				fmt.Sprintf("%s resonance %.3f at cutoff %.3f risks self-oscillation", d.Name, res, cut)})
		}
	}
	return issues
}

// checkDrive sums drive across cumulative-drive units.
func (v *Validator) checkDrive(c preset.Candidate) []Issue {
	total := v.totalDrive(c)
	switch {
	case total > v.config.DriveCeiling:
		return []Issue{{SeverityCritical, CheckDrive, 0, 0,
			fmt.Sprintf("cumulative drive %.3f exceeds ceiling %.2f", total, v.config.DriveCeiling)}}
	case total > v.config.DriveWarn:
		return []Issue{{SeverityWarning, CheckDrive, 0, 0,
			fmt.Sprintf("cumulative drive %.3f exceeds %.2f", total, v.config.DriveWarn)}}
	}
	return nil
}

// TotalDrive returns the summed drive of all cumulative-drive units in c.
func (v *Validator) TotalDrive(c preset.Candidate) float64 {
	return v.totalDrive(c)
}

func (v *Validator) totalDrive(c preset.Candidate) float64 {
	var total float64
	for _, s := range c.Slots {
		d, ok := v.activeDescriptor(s, catalog.SafetyDrive)
		if !ok {
			continue
		}
		total += roleValue(d, s, catalog.RoleDrive)
	}
	return total
}

// #endregion checks

// #region fix
// Fix returns a repaired copy of c.
func (v *Validator) Fix(c preset.Candidate) preset.Candidate {
	out, _ := v.fix(c)
	return out
}

// fix clamps every value into [0,1], caps feedback at MaxFeedback, and scales
// drive down proportionally so the chain total is at most DriveWarn.
func (v *Validator) fix(c preset.Candidate) (preset.Candidate, []Issue) {
	out := c.Clone()
	var notes []Issue

	clamped := 0
	for i := range out.Slots {
		s := &out.Slots[i]
		if !s.Active() {
			continue
		}
		for j, p := range s.Params {
			if cp := clamp(p); cp != p || math.IsNaN(p) {
				s.Params[j] = cp
				clamped++
			}
		}
		if m := clamp(s.Mix); m != s.Mix || math.IsNaN(s.Mix) {
			s.Mix = m
			clamped++
		}
	}
	if clamped > 0 {
		notes = append(notes, Issue{SeverityInfo, CheckFix, 0, 0, fmt.Sprintf("clamped %d values into [0,1]", clamped)})
	}

	for i := range out.Slots {
		s := &out.Slots[i]
		d, ok := v.activeDescriptor(*s, catalog.SafetyFeedback)
		if !ok {
			continue
		}
		fi, _ := d.RoleIndex(catalog.RoleFeedback)
		if fi < len(s.Params) && s.Params[fi] > v.config.MaxFeedback {
			notes = append(notes, Issue{SeverityInfo, CheckFix, s.Index, s.EngineID,
				fmt.Sprintf("%s feedback %.3f capped at %.2f", d.Name, s.Params[fi], v.config.MaxFeedback)})
			s.Params[fi] = v.config.MaxFeedback
		}
	}

	if total := v.totalDrive(out); total > v.config.DriveWarn && total > 0 {
		scale := v.config.DriveWarn / total
		for i := range out.Slots {
			s := &out.Slots[i]
			d, ok := v.activeDescriptor(*s, catalog.SafetyDrive)
			if !ok {
				continue
			}
			di, _ := d.RoleIndex(catalog.RoleDrive)
			if di < len(s.Params) {
				s.Params[di] *= scale
			}
		}
		notes = append(notes, Issue{SeverityInfo, CheckFix, 0, 0,
			fmt.Sprintf("scaled drive by %.3f (total %.3f -> %.3f)", scale, total, v.config.DriveWarn)})
	}

	return out, notes
}

// #endregion fix

// #region helpers
func (v *Validator) activeDescriptor(s preset.Slot, class catalog.SafetyClass) (catalog.Descriptor, bool) {
	if !s.Active() {
		return catalog.Descriptor{}, false
	}
	d, err := v.cat.Describe(s.EngineID)
	if err != nil || d.Safety != class || len(s.Params) != d.ParamCount() {
		return catalog.Descriptor{}, false
	}
	return d, true
}

// roleValue reads the role's parameter clamped into [0,1], or 0 when absent.
// Feedback is read unclamped above 1 so out-of-range values still count as catastrophic.
func roleValue(d catalog.Descriptor, s preset.Slot, r catalog.Role) float64 {
	i, ok := d.RoleIndex(r)
	if !ok || i >= len(s.Params) {
		return 0
	}
	p := s.Params[i]
	if math.IsNaN(p) {
		return 0
	}
	if r == catalog.RoleFeedback && p > 1 {
		return p
	}
	return clamp(p)
}

func paramName(d catalog.Descriptor, i int) string {
	if i < len(d.Params) {
		return d.Params[i]
	}
	return fmt.Sprintf("param[%d]", i)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
