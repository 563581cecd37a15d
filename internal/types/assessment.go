package types

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder and failure texts stored in ai_reasoning.
const (
	PendingAnalysisReasoning = "Pending analysis..."
	AnalysisFailedPrefix     = "Analysis failed: "
)

// Score bounds accepted from the scorer.
const (
	MinScore = 0
	MaxScore = 10
)

// AssessmentResponse is one candidate answer to one technical question.
// It is keyed by (ApplicationID, QuestionID).
type AssessmentResponse struct {
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	SubmissionID  uuid.UUID `json:"submission_id"`
	Answer        string    `json:"answer"`
	AIScore       *int      `json:"ai_score"`
	AIReasoning   *string   `json:"ai_reasoning"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsScored reports whether the scorer has produced a terminal result for the row.
func (r *AssessmentResponse) IsScored() bool {
	return r.AIScore != nil
}

// ScoringItem is one answer queued for evaluation, carrying everything the
// scorer needs so the worker never re-reads the question set.
type ScoringItem struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Question      string    `json:"question"`
	DesiredAnswer string    `json:"desired_answer"`
	Answer        string    `json:"answer"`
}

// ScoringBatch is the unit handed from the submission pipeline to the orchestrator.
type ScoringBatch struct {
	ApplicationID uuid.UUID     `json:"application_id"`
	SubmissionID  uuid.UUID     `json:"submission_id"`
	Items         []ScoringItem `json:"items"`
	SubmittedAt   time.Time     `json:"submitted_at"`
}

// ScoredAnswer is the terminal outcome for one answer in a batch.
type ScoredAnswer struct {
	QuestionID uuid.UUID `json:"question_id"`
	Answer     string    `json:"answer"`
	Score      int       `json:"score"`
	Reasoning  string    `json:"reasoning"`
	Failed     bool      `json:"failed"`
}

// AssessmentView is the assessment as returned to readers.
type AssessmentView struct {
	ApplicationID uuid.UUID            `json:"application_id"`
	Questions     []TechnicalQuestion  `json:"questions"`
	Responses     []AssessmentResponse `json:"responses"`
}

// SubmissionReceipt is the synchronous result of a submission.
type SubmissionReceipt struct {
	ApplicationID uuid.UUID `json:"application_id"`
	SubmissionID  uuid.UUID `json:"submission_id"`
	Accepted      int       `json:"accepted"`
	Discarded     int       `json:"discarded"`
	Message       string    `json:"message"`
}
