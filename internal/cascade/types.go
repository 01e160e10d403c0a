package cascade

import (
	"errors"
	"time"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/logging"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/safety"
)

// ErrNoFallback is returned by New when there is nothing to fall back on: an
// empty catalog or an empty index.
var ErrNoFallback = errors.New("cascade has no fallback")

// #region config
// Config holds the cascade thresholds.
type Config struct {
	IndexThreshold    float64       `yaml:"index_threshold"`    // index answers at or above this confidence
	CacheThreshold    float64       `yaml:"cache_threshold"`    // index answers are cached at or above this
	LearnThreshold    float64       `yaml:"learn_threshold"`    // escalations above this self-confidence may be learned
	NoveltyFloor      float64       `yaml:"novelty_floor"`      // learned only if farther than this from every item
	OverlapWeight     float64       `yaml:"overlap_weight"`     // share of confidence from required-unit overlap
	SearchK           int           `yaml:"search_k"`
	MaxSlots          int           `yaml:"max_slots"`
	EscalationTimeout time.Duration `yaml:"escalation_timeout"`
	FallbackTTL       time.Duration `yaml:"fallback_ttl"` // memory-only cache lifetime of fallback answers
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		IndexThreshold:    0.85,
		CacheThreshold:    0.9,
		LearnThreshold:    0.9,
		NoveltyFloor:      1.0,
		OverlapWeight:     0.9,
		SearchK:           5,
		MaxSlots:          6,
		EscalationTimeout: 20 * time.Second,
		FallbackTTL:       time.Minute,
	}
}

// #endregion config

// #region result
// Result is one resolved request. Source is how this call was answered; Origin
// is the stage that originally produced the chain (they differ on cache hits).
type Result struct {
	RequestID  string           `json:"request_id"`
	Key        string           `json:"key"`
	Output     preset.Output    `json:"output"`
	Candidate  preset.Candidate `json:"candidate"`
	Source     preset.Source    `json:"source"`
	Origin     preset.Source    `json:"origin"`
	Confidence float64          `json:"confidence"`
	Report     safety.Report    `json:"report"`
	Escalated  bool             `json:"escalated"`
	Learned    bool             `json:"learned"`
	Latency    time.Duration    `json:"latency"`
}

// #endregion result

// #region collaborators
// Learner persists learned index items.
type Learner interface {
	SaveLearned(item index.Item) error
}

// Recorder writes one ledger row per resolution.
type Recorder interface {
	LogResolution(entry logging.Entry) error
}

// #endregion collaborators
