package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// UpsertPendingResponses stores answers in the unscored state, one row per
// (application, question), tagged with submissionID. Re-submitting overwrites
// the answer and resets the score.
func (db *DB) UpsertPendingResponses(ctx context.Context, applicationID, submissionID uuid.UUID, answers []types.AnswerInput) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, a := range answers {
			batch.Queue(
				`INSERT INTO assessment_responses (application_id, question_id, submission_id, answer, ai_score, ai_reasoning)
				 VALUES ($1, $2, $3, $4, NULL, $5)
				 ON CONFLICT (application_id, question_id) DO UPDATE SET
				     submission_id = EXCLUDED.submission_id,
				     answer = EXCLUDED.answer,
				     ai_score = NULL,
				     ai_reasoning = EXCLUDED.ai_reasoning,
				     updated_at = NOW()`,
				applicationID, a.QuestionID, submissionID, a.Answer, types.PendingAnalysisReasoning,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for range answers {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to store pending response: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to store pending responses: %w", err)
		}
		return nil
	})
}

// SaveScoredResponses writes scoring results, one conditional upsert per row.
// A row already taken over by a newer submission is left alone, as is a row
// whose question or application no longer exists. Returns the
// number of rows written; per-row failures are joined into the error.
func (db *DB) SaveScoredResponses(ctx context.Context, applicationID, submissionID uuid.UUID, results []types.ScoredAnswer) (int, error) {
	written := 0
	var errs []error
	for _, r := range results {
		tag, err := db.pool.Exec(ctx,
			`INSERT INTO assessment_responses (application_id, question_id, submission_id, answer, ai_score, ai_reasoning)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (application_id, question_id) DO UPDATE SET
			     answer = EXCLUDED.answer,
			     ai_score = EXCLUDED.ai_score,
			     ai_reasoning = EXCLUDED.ai_reasoning,
			     updated_at = NOW()
			 WHERE assessment_responses.submission_id = EXCLUDED.submission_id`,
			applicationID, r.QuestionID, submissionID, r.Answer, r.Score, r.Reasoning,
		)
		if isForeignKeyViolation(err) {
			db.log.Debug("skipped score for deleted question or application",
				zap.String("application_id", applicationID.String()),
				zap.String("question_id", r.QuestionID.String()))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to save score for question %s: %w", r.QuestionID, err))
			continue
		}
		if tag.RowsAffected() == 0 {
			db.log.Debug("skipped stale score",
				zap.String("application_id", applicationID.String()),
				zap.String("question_id", r.QuestionID.String()))
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// ListAssessmentResponses returns the stored responses of an application.
func (db *DB) ListAssessmentResponses(ctx context.Context, applicationID uuid.UUID) ([]types.AssessmentResponse, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.id, r.application_id, r.question_id, r.submission_id, r.answer, r.ai_score,
		        r.ai_reasoning, r.created_at, r.updated_at
		 FROM assessment_responses r
		 JOIN technical_assessments q ON q.id = r.question_id
		 WHERE r.application_id = $1
		 ORDER BY q.position`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessment responses: %w", err)
	}
	defer rows.Close()

	responses := []types.AssessmentResponse{}
	for rows.Next() {
		var r types.AssessmentResponse
		if err := rows.Scan(&r.ID, &r.ApplicationID, &r.QuestionID, &r.SubmissionID, &r.Answer,
			&r.AIScore, &r.AIReasoning, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment response: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assessment responses: %w", err)
	}
	return responses, nil
}
