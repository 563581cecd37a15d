// Package assessment accepts technical-assessment submissions and scores
// them in the background. Submission is durable before scoring starts;
// scoring failures become data and never reach the submitter.
package assessment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/policy"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// Store is the persistence surface the submission path needs.
type Store interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	GetJobRole(ctx context.Context, id uuid.UUID) (*types.JobRole, error)
	ListTechnicalQuestions(ctx context.Context, jobID uuid.UUID) ([]types.TechnicalQuestion, error)
	UpsertPendingResponses(ctx context.Context, applicationID, submissionID uuid.UUID, answers []types.AnswerInput) error
	ListAssessmentResponses(ctx context.Context, applicationID uuid.UUID) ([]types.AssessmentResponse, error)
}

// Dispatcher hands a scoring batch to background execution. Dispatch must
// not wait for scoring to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch *types.ScoringBatch) error
}

// Pipeline is the synchronous half of an assessment submission.
type Pipeline struct {
	store      Store
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(store Store, dispatcher Dispatcher, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: store, dispatcher: dispatcher, log: log}
}

// Submit records the caller's answers as pending and queues them for scoring.
// Answers to questions the job does not have are dropped; when a question is
// answered twice the last answer wins.
func (p *Pipeline) Submit(ctx context.Context, principal types.Principal, applicationID uuid.UUID, req *types.SubmitAssessmentRequest) (*types.SubmissionReceipt, error) {
	if err := policy.Require(principal, policy.SubmitAssessment); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &types.ErrValidation{Field: "answers", Message: "is required"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	app, err := p.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, &types.ErrNotFound{Entity: "application", ID: applicationID}
	}
	if app.ApplicantID != principal.UserID {
		return nil, &types.ErrForbidden{Action: "submit assessments for another applicant"}
	}

	questions, err := p.store.ListTechnicalQuestions(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load technical questions: %w", err)
	}

	answers, items := retain(req.Answers, questions)
	receipt := &types.SubmissionReceipt{
		ApplicationID: applicationID,
		SubmissionID:  uuid.New(),
		Accepted:      len(answers),
		Discarded:     len(req.Answers) - len(answers),
	}
	if len(answers) == 0 {
		receipt.Message = "No answers matched this job's questions"
		return receipt, nil
	}

	if err := p.store.UpsertPendingResponses(ctx, applicationID, receipt.SubmissionID, answers); err != nil {
		return nil, err
	}

	batch := &types.ScoringBatch{
		ApplicationID: applicationID,
		SubmissionID:  receipt.SubmissionID,
		Items:         items,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := p.dispatcher.Dispatch(ctx, batch); err != nil {
		// Answers are already stored as pending; a later submission re-queues them.
		p.log.Error("failed to dispatch scoring batch",
			zap.String("application_id", applicationID.String()),
			zap.String("submission_id", receipt.SubmissionID.String()),
			zap.Error(err))
	}

	p.log.Info("assessment submitted",
		zap.String("application_id", applicationID.String()),
		zap.String("submission_id", receipt.SubmissionID.String()),
		zap.Int("accepted", receipt.Accepted),
		zap.Int("discarded", receipt.Discarded))

	receipt.Message = "Assessment submitted successfully. AI analysis in progress."
	return receipt, nil
}

// retain filters answers to known questions, collapsing repeats onto the
// last answer while keeping first-seen order.
func retain(answers []types.AnswerInput, questions []types.TechnicalQuestion) ([]types.AnswerInput, []types.ScoringItem) {
	known := make(map[uuid.UUID]types.TechnicalQuestion, len(questions))
	for _, q := range questions {
		known[q.ID] = q
	}

	index := make(map[uuid.UUID]int, len(answers))
	var kept []types.AnswerInput
	var items []types.ScoringItem
	for _, a := range answers {
		q, ok := known[a.QuestionID]
		if !ok {
			continue
		}
		if i, seen := index[a.QuestionID]; seen {
			kept[i].Answer = a.Answer
			items[i].Answer = a.Answer
			continue
		}
		index[a.QuestionID] = len(kept)
		kept = append(kept, a)
		items = append(items, types.ScoringItem{
			QuestionID:    q.ID,
			Question:      q.Question,
			DesiredAnswer: q.DesiredAnswer,
			Answer:        a.Answer,
		})
	}
	return kept, items
}

// View returns an application's assessment. Owners see their answers
// without scores or the scoring key; reviewers see everything.
func (p *Pipeline) View(ctx context.Context, principal types.Principal, applicationID uuid.UUID) (*types.AssessmentView, error) {
	app, err := p.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	reviewer := policy.Allows(principal.Role, policy.ViewScores)
	if app == nil || (app.ApplicantID != principal.UserID && !reviewer) {
		return nil, &types.ErrNotFound{Entity: "application", ID: applicationID}
	}

	job, err := p.store.GetJobRole(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job role: %w", err)
	}
	if job == nil {
		return nil, &types.ErrNotFound{Entity: "job role", ID: app.JobID}
	}

	questions, err := p.store.ListTechnicalQuestions(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load technical questions: %w", err)
	}
	responses, err := p.store.ListAssessmentResponses(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if !policy.CanSeeDesiredAnswers(principal, job) {
		for i := range questions {
			questions[i].DesiredAnswer = ""
		}
	}
	if !reviewer {
		for i := range responses {
			responses[i].AIScore = nil
			responses[i].AIReasoning = nil
		}
	}

	return &types.AssessmentView{
		ApplicationID: applicationID,
		Questions:     questions,
		Responses:     responses,
	}, nil
}
