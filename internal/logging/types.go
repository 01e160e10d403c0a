package logging

import "time"

// #region resolution-entry
// Entry is a single row in the resolution_log table.
type Entry struct {
	ID         int64         `json:"id"`
	RequestID  string        `json:"request_id"`
	CacheKey   string        `json:"cache_key"`
	Vibe       string        `json:"vibe,omitempty"`
	Source     string        `json:"source"` // how the call was served: cache | index | escalation | fallback | default
	Origin     string        `json:"origin"` // stage that produced the chain
	Confidence float64       `json:"confidence"`
	Escalated  bool          `json:"escalated"`
	Learned    bool          `json:"learned"`
	IsSafe     bool          `json:"is_safe"`
	Score      float64       `json:"score"`
	ReportJSON string        `json:"report_json,omitempty"`
	Units      string        `json:"units,omitempty"` // comma-separated active unit IDs in chain order
	Latency    time.Duration `json:"latency"`
	CreatedAt  time.Time     `json:"created_at"`
}

// #endregion resolution-entry
