package safety

// #region config
// Config holds the parameter-safety thresholds. All values are normalized [0,1]
// parameter units except the drive sums.
type Config struct {
	MaxFeedback        float64 `yaml:"max_feedback"`         // above this is catastrophic
	ShortDelay         float64 `yaml:"short_delay"`          // delay time below this is "short"
	ShortDelayFeedback float64 `yaml:"short_delay_feedback"` // feedback above this with a short delay is flagged
	ResonanceLimit     float64 `yaml:"resonance_limit"`      // resonance above this...
	LowCutoff          float64 `yaml:"low_cutoff"`           // ...with cutoff below this risks self-oscillation
	DriveWarn          float64 `yaml:"drive_warn"`           // cumulative drive warning and fix target
	DriveCeiling       float64 `yaml:"drive_ceiling"`        // cumulative drive hard ceiling
	LargeDelta         float64 `yaml:"large_delta"`          // clamp deltas above this are warnings
	MaxSlots           int     `yaml:"max_slots"`
}

// DefaultConfig returns the thresholds observed to keep chains safe.
func DefaultConfig() Config {
	return Config{
		MaxFeedback:        0.95,
		ShortDelay:         0.1,
		ShortDelayFeedback: 0.6,
		ResonanceLimit:     0.7,
		LowCutoff:          0.2,
		DriveWarn:          1.5,
		DriveCeiling:       2.0,
		LargeDelta:         0.1,
		MaxSlots:           6,
	}
}

// #endregion config

// #region severity
// Severity ranks an issue. Only critical issues can make a chain unsafe.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error" // structural: slot rejected
)

// #endregion severity

// #region check
// Check names the rule that raised an issue.
type Check string

const (
	CheckRange      Check = "range"
	CheckFeedback   Check = "feedback"
	CheckShortDelay Check = "short_delay_feedback"
	CheckResonance  Check = "resonance"
	CheckDrive      Check = "cumulative_drive"
	CheckStructure  Check = "structure"
	CheckFix        Check = "fix"
)

// #endregion check

// #region report
// Issue is one finding against a chain. Slot is 1-based; 0 means chain-wide.
type Issue struct {
	Severity Severity `json:"severity"`
	Check    Check    `json:"check"`
	Slot     int      `json:"slot,omitempty"`
	EngineID int      `json:"engine_id,omitempty"`
	Message  string   `json:"message"`
}

// Report is the outcome of validating one chain.
type Report struct {
	Issues []Issue `json:"issues"`
	Score  float64 `json:"score"`
	IsSafe bool    `json:"is_safe"`
	Fixed  bool    `json:"fixed"`
}

// Count returns the number of issues at the given severity.
func (r Report) Count(sev Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}

// Has reports whether any issue was raised by check.
func (r Report) Has(check Check) bool {
	for _, is := range r.Issues {
		if is.Check == check {
			return true
		}
	}
	return false
}

// #endregion report
