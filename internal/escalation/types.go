package escalation

import (
	"context"
	"errors"
	"fmt"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

var (
	// ErrUnavailable means the backend could not be reached or timed out.
	ErrUnavailable = errors.New("escalation unavailable")
	// ErrMalformed means the backend answered with something that is not a candidate.
	ErrMalformed = errors.New("malformed escalation response")
	// ErrRateLimited means the local limiter or the backend refused the call.
	ErrRateLimited = errors.New("escalation rate limited")
	// ErrDisabled means no backend is configured, so no call was made.
	ErrDisabled = fmt.Errorf("%w: no backend configured", ErrUnavailable)
)

// #region request-response
// Request is what the cascade sends when the index cannot answer confidently.
type Request struct {
	Semantic           preset.Request    `json:"semantic_request"`
	BestIndexCandidate *preset.Candidate `json:"best_index_candidate,omitempty"`
	IndexConfidence    float64           `json:"index_confidence"`
}

// Response is a proposed chain and the backend's own confidence in it.
type Response struct {
	Candidate  preset.Candidate `json:"candidate"`
	Confidence float64          `json:"self_reported_confidence"`
}

// Escalator proposes a chain for a request the index could not resolve.
type Escalator interface {
	Escalate(ctx context.Context, req Request) (Response, error)
}

// #endregion request-response

// #region config
// Config selects and configures the escalation backend.
type Config struct {
	Backend  string       `yaml:"backend"` // none | grpc | openai
	RPS      float64      `yaml:"rps"`     // 0 disables the limiter
	Burst    int          `yaml:"burst"`
	Retries  int          `yaml:"retries"` // extra attempts after a malformed or unavailable answer
	GRPCAddr string       `yaml:"grpc_addr"`
	OpenAI   OpenAIConfig `yaml:"openai"`
}

// OpenAIConfig configures an OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// DefaultConfig returns escalation disabled. The call budget is the cascade's
// EscalationTimeout.
func DefaultConfig() Config {
	return Config{
		Backend:  "none",
		RPS:      2,
		Burst:    4,
		Retries:  1,
		GRPCAddr: "localhost:50061",
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
	}
}

// #endregion config

// #region disabled
// Disabled is an Escalator that always reports ErrDisabled, which wraps
// ErrUnavailable.
type Disabled struct{}

// Escalate implements Escalator.
func (Disabled) Escalate(context.Context, Request) (Response, error) {
	return Response{}, ErrDisabled
}

// #endregion disabled
