package escalation

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/preset"
)

// #region wire
// wireResponse distinguishes a missing confidence from a zero one.
type wireResponse struct {
	Candidate  *wireCandidate `json:"candidate"`
	Confidence *float64       `json:"self_reported_confidence"`
}

type wireCandidate struct {
	Slots []wireSlot `json:"slots"`
	Vibe  string     `json:"vibe,omitempty"`
	Genre string     `json:"genre,omitempty"`
}

type wireSlot struct {
	Slot     int       `json:"slot"`
	EngineID int       `json:"engine_id"`
	Params   []float64 `json:"params"`
	Mix      *float64  `json:"mix"`
	Bypass   bool      `json:"bypass"`
}

// decodeResponse parses a backend reply. Structural checks against the
// catalog are left to sanitize; this only rejects replies with no usable shape.
func decodeResponse(raw []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Candidate == nil || len(w.Candidate.Slots) == 0 {
		return Response{}, fmt.Errorf("%w: no candidate slots", ErrMalformed)
	}
	if w.Confidence == nil || math.IsNaN(*w.Confidence) {
		return Response{}, fmt.Errorf("%w: missing self_reported_confidence", ErrMalformed)
	}

	resp := Response{Confidence: math.Max(0, math.Min(1, *w.Confidence))}
	resp.Candidate.Vibe = w.Candidate.Vibe
	resp.Candidate.Genre = w.Candidate.Genre
	for i, s := range w.Candidate.Slots {
		mix := 1.0
		if s.Mix != nil {
			mix = *s.Mix
		}
		idx := s.Slot
		if idx == 0 {
			idx = i + 1
		}
		resp.Candidate.Slots = append(resp.Candidate.Slots, presetSlot(idx, s.EngineID, s.Params, mix, s.Bypass))
	}
	return resp, nil
}

func presetSlot(index, engineID int, params []float64, mix float64, bypass bool) preset.Slot {
	return preset.Slot{
		Index:    index,
		EngineID: engineID,
		Params:   append([]float64(nil), params...),
		Mix:      mix,
		Bypass:   bypass || engineID == 0,
	}
}

// encodeJSON renders v for a backend.
func encodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal escalation request: %w", err)
	}
	return raw, nil
}

// #endregion wire
