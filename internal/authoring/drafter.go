// Package authoring drafts job posting content with a language model. Drafts
// are returned to the author and never written to the store.
package authoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/perfect-fit/internal/llm"
	"github.com/jonathan/perfect-fit/internal/policy"
	"github.com/jonathan/perfect-fit/internal/prompts"
	"github.com/jonathan/perfect-fit/internal/schemas"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

const (
	promptFile          = "authoring.json"
	defaultDraftTimeout = 45 * time.Second
)

// ErrNotConfigured is returned when no model client is available.
var ErrNotConfigured = errors.New("no language model configured")

// Drafter generates posting content for employees writing a job role.
type Drafter struct {
	client  llm.Client
	tier    llm.ModelTier
	timeout time.Duration
	log     *zap.Logger
}

// New creates a Drafter. A nil client yields a Drafter that reports
// ErrNotConfigured on every call.
func New(client llm.Client, log *zap.Logger) *Drafter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Drafter{client: client, tier: llm.TierStandard, timeout: defaultDraftTimeout, log: log}
}

// Generate drafts content for req.Field. Technical questions come back as
// structured question/desired-answer pairs; every other field is text.
func (d *Drafter) Generate(ctx context.Context, p types.Principal, req *types.GenerateDraftRequest) (*types.Draft, error) {
	if err := policy.Require(p, policy.DraftJob); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if d.client == nil {
		return nil, &types.ErrExternalService{Service: "llm", Err: ErrNotConfigured}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		draft *types.Draft
		err   error
	)
	if req.Field == types.DraftTechnicalQuestions {
		draft, err = d.questions(ctx, req)
	} else {
		draft, err = d.text(ctx, req)
	}
	if err != nil {
		d.log.Warn("draft generation failed",
			zap.String("field", string(req.Field)),
			zap.String("user_id", p.UserID.String()),
			zap.Error(err))
		return nil, err
	}

	d.log.Info("job content drafted",
		zap.String("field", string(req.Field)),
		zap.String("user_id", p.UserID.String()),
		zap.String("model", d.client.GetModel(d.tier)))
	return draft, nil
}

func (d *Drafter) text(ctx context.Context, req *types.GenerateDraftRequest) (*types.Draft, error) {
	prompt, err := prompts.Render(promptFile, string(req.Field), map[string]string{
		"Context": req.Context,
		"Tone":    req.Tone,
	})
	if err != nil {
		return nil, err
	}

	content, err := d.client.GenerateContent(ctx, prompt, d.tier)
	if err != nil {
		return nil, &types.ErrExternalService{Service: "llm", Err: err}
	}
	if content == "" {
		return nil, &types.ErrExternalService{Service: "llm", Err: errors.New("empty draft")}
	}
	return &types.Draft{Field: req.Field, Content: content}, nil
}

func (d *Drafter) questions(ctx context.Context, req *types.GenerateDraftRequest) (*types.Draft, error) {
	title, focus := SplitContext(req.Context)
	if focus != "" {
		focus = " Focus specifically on: " + focus + "."
	}
	prompt, err := prompts.Render(promptFile, string(types.DraftTechnicalQuestions), map[string]string{
		"Title": title,
		"Focus": focus,
	})
	if err != nil {
		return nil, err
	}

	raw, err := d.client.GenerateJSON(ctx, prompt, d.tier)
	if err != nil {
		return nil, &types.ErrExternalService{Service: "llm", Err: err}
	}
	questions, err := ParseQuestions(raw)
	if err != nil {
		return nil, &types.ErrExternalService{Service: "llm", Err: err}
	}
	return &types.Draft{
		Field:              types.DraftTechnicalQuestions,
		Content:            fmt.Sprintf("Generated %d questions", len(questions)),
		TechnicalQuestions: questions,
	}, nil
}

// SplitContext separates "Title | focus" into its parts.
func SplitContext(s string) (title, focus string) {
	title, focus, _ = strings.Cut(s, "|")
	return strings.TrimSpace(title), strings.TrimSpace(focus)
}

// ParseQuestions decodes a model reply into question inputs. A bare array
// is accepted in place of the {"technical_questions": [...]} object.
func ParseQuestions(raw string) ([]types.TechnicalQuestionInput, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "[") {
		text = `{"technical_questions": ` + text + `}`
	}
	cleaned := llm.CleanJSONBlock(text)
	if err := schemas.Validate(schemas.GeneratedQuestions, []byte(cleaned)); err != nil {
		return nil, fmt.Errorf("non-conforming question draft: %w", err)
	}

	var reply struct {
		TechnicalQuestions []types.TechnicalQuestionInput `json:"technical_questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse question draft: %w", err)
	}
	return reply.TechnicalQuestions, nil
}
