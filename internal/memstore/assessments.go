package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/types"
)

// UpsertPendingResponses stores answers unscored, keyed by (application, question).
func (s *Store) UpsertPendingResponses(_ context.Context, applicationID, submissionID uuid.UUID, answers []types.AnswerInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.applications[applicationID]; !ok {
		return fmt.Errorf("failed to store pending response: application %s does not exist", applicationID)
	}

	now := time.Now()
	for _, a := range answers {
		reasoning := types.PendingAnalysisReasoning
		key := responseKey{applicationID: applicationID, questionID: a.QuestionID}
		if r, ok := s.responses[key]; ok {
			r.SubmissionID = submissionID
			r.Answer = a.Answer
			r.AIScore = nil
			r.AIReasoning = &reasoning
			r.UpdatedAt = now
			continue
		}
		s.responses[key] = &types.AssessmentResponse{
			ID:            uuid.New(),
			ApplicationID: applicationID,
			QuestionID:    a.QuestionID,
			SubmissionID:  submissionID,
			Answer:        a.Answer,
			AIReasoning:   &reasoning,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	return nil
}

// SaveScoredResponses upserts results, skipping rows owned by a newer submission
// and rows whose application or question has since been deleted.
func (s *Store) SaveScoredResponses(_ context.Context, applicationID, submissionID uuid.UUID, results []types.ScoredAnswer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[applicationID]
	if !ok {
		return 0, nil
	}
	current := map[uuid.UUID]bool{}
	if job, ok := s.jobs[app.JobID]; ok {
		for _, q := range job.TechnicalQuestions {
			current[q.ID] = true
		}
	}

	now := time.Now()
	written := 0
	for _, res := range results {
		score := res.Score
		reasoning := res.Reasoning
		key := responseKey{applicationID: applicationID, questionID: res.QuestionID}
		r, ok := s.responses[key]
		if !ok {
			if !current[res.QuestionID] {
				continue
			}
			s.responses[key] = &types.AssessmentResponse{
				ID:            uuid.New(),
				ApplicationID: applicationID,
				QuestionID:    res.QuestionID,
				SubmissionID:  submissionID,
				Answer:        res.Answer,
				AIScore:       &score,
				AIReasoning:   &reasoning,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			written++
			continue
		}
		if r.SubmissionID != submissionID {
			continue
		}
		r.Answer = res.Answer
		r.AIScore = &score
		r.AIReasoning = &reasoning
		r.UpdatedAt = now
		written++
	}
	return written, nil
}

// ListAssessmentResponses returns the responses of an application in question order.
func (s *Store) ListAssessmentResponses(_ context.Context, applicationID uuid.UUID) ([]types.AssessmentResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	position := map[uuid.UUID]int{}
	if app, ok := s.applications[applicationID]; ok {
		if job, ok := s.jobs[app.JobID]; ok {
			for i, q := range job.TechnicalQuestions {
				position[q.ID] = i
			}
		}
	}

	responses := []types.AssessmentResponse{}
	for key, r := range s.responses {
		if key.applicationID == applicationID {
			responses = append(responses, *r)
		}
	}
	sort.Slice(responses, func(i, j int) bool {
		return position[responses[i].QuestionID] < position[responses[j].QuestionID]
	})
	return responses, nil
}
