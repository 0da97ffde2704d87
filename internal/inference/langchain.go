package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/contentreview/pkg/models"
)

// LangchainClient implements Client on top of a langchaingo model.
type LangchainClient struct {
	model       llms.Model
	modelName   string
	temperature float64
}

// NewLangchainClient wraps an already-constructed model.
func NewLangchainClient(model llms.Model, modelName string, temperature float64) *LangchainClient {
	return &LangchainClient{
		model:       model,
		modelName:   modelName,
		temperature: temperature,
	}
}

// NewGoogleAIClient builds the default hosted-model client.
func NewGoogleAIClient(ctx context.Context, apiKey, modelName string, temperature float64) (*LangchainClient, error) {
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(modelName),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return NewLangchainClient(model, modelName, temperature), nil
}

// Send performs the two-turn priming exchange followed by the user content.
func (c *LangchainClient) Send(ctx context.Context, req Request) (*Response, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeAI, req.AssistantAck),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserPrompt),
	}

	completion, err := c.model.GenerateContent(ctx, messages, llms.WithTemperature(c.temperature))
	if err != nil {
		if looksBlocked(err.Error()) {
			return &Response{Blocked: true, Reason: err.Error()}, nil
		}
		return nil, fmt.Errorf("model call: %w", err)
	}
	if len(completion.Choices) == 0 {
		return &Response{Reason: "model returned no choices"}, nil
	}

	choice := completion.Choices[0]
	resp := &Response{
		Success:    true,
		Content:    choice.Content,
		Raw:        joinChoices(completion.Choices),
		StopReason: choice.StopReason,
		Usage:      usageFromInfo(choice.GenerationInfo),
	}
	if looksBlocked(choice.StopReason) {
		resp.Success = false
		resp.Blocked = true
		resp.Reason = "stop reason: " + choice.StopReason
		resp.GuardrailAssessment = choice.StopReason
	}

	log.Debug().
		Str("model", c.modelName).
		Str("stop_reason", resp.StopReason).
		Int("content_bytes", len(resp.Content)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("model response received")

	return resp, nil
}

func joinChoices(choices []*llms.ContentChoice) string {
	if len(choices) == 1 {
		return choices[0].Content
	}
	parts := make([]string, 0, len(choices))
	for _, ch := range choices {
		parts = append(parts, ch.Content)
	}
	return strings.Join(parts, "\n")
}

func looksBlocked(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range []string{"blocked", "safety", "content_filter", "prohibited"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// usageFromInfo digs token counts out of GenerationInfo. Providers disagree
// on key names, so several spellings are probed.
func usageFromInfo(info map[string]any) models.TokenUsage {
	usage := models.TokenUsage{
		InputTokens:  intFromInfo(info, "input_tokens", "PromptTokens", "prompt_tokens"),
		OutputTokens: intFromInfo(info, "output_tokens", "CompletionTokens", "completion_tokens"),
		TotalTokens:  intFromInfo(info, "total_tokens", "TotalTokens"),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	return usage
}

func intFromInfo(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
