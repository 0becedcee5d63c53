package structured

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/pkg/anthropic"
)

const systemPrompt = `You extract structured facts about organizations from crawled website text.
Only report what the text states. Reply with JSON only.`

// ClaudeService implements Service with the Claude Messages API.
type ClaudeService struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeService creates a ClaudeService.
func NewClaudeService(client anthropic.Client, model string, maxTokens int64) *ClaudeService {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ClaudeService{client: client, model: model, maxTokens: maxTokens}
}

// Complete sends prompt as a single user turn. When the schema describes an
// object the assistant turn is prefilled with "{" so the reply starts as
// JSON; the brace is restored before returning.
func (s *ClaudeService) Complete(ctx context.Context, prompt string, schema []byte) (string, error) {
	temp := 0.0
	msgs := []anthropic.Message{{Role: "user", Content: prompt}}
	prefill := schemaIsObject(schema)
	if prefill {
		msgs = append(msgs, anthropic.Message{Role: "assistant", Content: "{"})
	}

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemPrompt, "5m"),
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(s.model, "structured")
	if resp.Truncated() {
		zap.L().Warn("structured: reply hit the token limit", zap.Int64("max_tokens", s.maxTokens))
	}

	text := resp.Text()
	if text == "" {
		return "", eris.New("structured: empty reply")
	}
	if prefill {
		text = "{" + text
	}
	return text, nil
}

func schemaIsObject(schema []byte) bool {
	var s struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return false
	}
	switch t := s.Type.(type) {
	case string:
		return t == "object"
	default:
		return false
	}
}
