package escalation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
)

// #region openai-client
// OpenAIClient asks an OpenAI-compatible chat model for a chain, in JSON mode.
type OpenAIClient struct {
	client *openai.Client
	config OpenAIConfig
	system string
}

// NewOpenAIClient creates a client whose system prompt lists every unit in cat.
func NewOpenAIClient(cfg OpenAIConfig, cat *catalog.Catalog) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		config: cfg,
		system: systemPrompt(cat),
	}
}

// #endregion openai-client

// #region escalate
// Escalate sends req as the user message and decodes the model's JSON reply.
func (c *OpenAIClient) Escalate(ctx context.Context, req Request) (Response, error) {
	body, err := encodeJSON(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.system},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
	})
	if err != nil {
		return Response{}, completionError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	return decodeResponse([]byte(stripFence(resp.Choices[0].Message.Content)))
}

func completionError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("chat completion: %w: %w", ErrRateLimited, err)
		case apiErr.HTTPStatusCode == http.StatusBadRequest:
			return fmt.Errorf("chat completion: %w: %w", ErrMalformed, err)
		}
	}
	return fmt.Errorf("chat completion: %w: %w", ErrUnavailable, err)
}

// stripFence removes a ```json fence some models add even in JSON mode.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// #endregion escalate

// #region prompt
func systemPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You design audio processing chains. Reply with one JSON object:\n")
	b.WriteString(`{"candidate":{"vibe":string,"slots":[{"slot":int,"engine_id":int,"params":[float],"mix":float,"bypass":bool}]},"self_reported_confidence":float}`)
	b.WriteString("\nRules: at most max_units active slots; include every required unit; ")
	b.WriteString("params are normalized 0..1 and must match the unit's parameter list in order; ")
	b.WriteString("best_index_candidate, when present, is the closest stored chain and may be refined.\n")
	b.WriteString("Units (id: name [category] params):\n")
	for _, d := range cat.All() {
		fmt.Fprintf(&b, "%d: %s [%s] %s\n", d.ID, d.Name, d.Category, strings.Join(d.Params, ","))
	}
	return b.String()
}

// #endregion prompt
