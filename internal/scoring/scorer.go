// Package scoring evaluates one candidate answer against the employer's
// desired answer and returns an integer score with reasoning.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/perfect-fit/internal/llm"
	"github.com/jonathan/perfect-fit/internal/prompts"
	"github.com/jonathan/perfect-fit/internal/schemas"
	"github.com/jonathan/perfect-fit/internal/types"
)

// Result is a conforming scorer reply.
type Result struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Scorer evaluates a single answer. Implementations return an error for
// any failure, including a reply that does not match the result contract.
type Scorer interface {
	Evaluate(ctx context.Context, item types.ScoringItem) (*Result, error)
}

// LLMScorer scores answers with a language model.
type LLMScorer struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMScorer creates a scorer backed by client.
func NewLLMScorer(client llm.Client) *LLMScorer {
	return &LLMScorer{client: client, tier: llm.TierLite}
}

// Evaluate asks the model to grade item and validates the reply.
func (s *LLMScorer) Evaluate(ctx context.Context, item types.ScoringItem) (*Result, error) {
	prompt, err := BuildPrompt(item)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.GenerateJSON(ctx, prompt, s.tier)
	if err != nil {
		return nil, &types.ErrExternalService{Service: "llm", Err: err}
	}

	return ParseResult(raw)
}

// ParseResult decodes a model reply, rejecting anything outside the
// {score: integer 0..10, reasoning: string} contract.
func ParseResult(raw string) (*Result, error) {
	cleaned := llm.CleanJSONBlock(raw)
	if err := schemas.Validate(schemas.ScoreResult, []byte(cleaned)); err != nil {
		return nil, fmt.Errorf("non-conforming scorer response: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to parse scorer response: %w", err)
	}
	return &result, nil
}

// BuildPrompt renders the evaluation prompt for item.
func BuildPrompt(item types.ScoringItem) (string, error) {
	return prompts.Render("scoring.json", "evaluate-answer", map[string]string{
		"Question":      item.Question,
		"DesiredAnswer": item.DesiredAnswer,
		"Answer":        item.Answer,
	})
}
