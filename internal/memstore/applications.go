package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/types"
)

// CreateApplication inserts a submitted application, enforcing one per (job, applicant).
func (s *Store) CreateApplication(_ context.Context, app *types.Application) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[app.JobID]; !ok {
		return nil, fmt.Errorf("failed to create application: job role %s does not exist", app.JobID)
	}
	for _, existing := range s.applications {
		if existing.JobID == app.JobID && existing.ApplicantID == app.ApplicantID {
			return nil, &types.ErrConflict{
				Code:    types.ConflictDuplicateApplication,
				Message: "You have already applied for this job",
			}
		}
	}

	now := time.Now()
	created := &types.Application{
		ID:          uuid.New(),
		JobID:       app.JobID,
		ApplicantID: app.ApplicantID,
		Status:      types.ApplicationSubmitted,
		CoverLetter: copyString(app.CoverLetter),
		ResumeURL:   copyString(app.ResumeURL),
		Phone:       copyString(app.Phone),
		LinkedInURL: copyString(app.LinkedInURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.applications[created.ID] = created
	s.appOrder = append(s.appOrder, created.ID)
	c := *created
	return &c, nil
}

// FindApplication returns the application for (job, applicant), or nil, nil.
func (s *Store) FindApplication(_ context.Context, jobID, applicantID uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, app := range s.applications {
		if app.JobID == jobID && app.ApplicantID == applicantID {
			c := *app
			return &c, nil
		}
	}
	return nil, nil
}

// GetApplication returns an application by ID, or nil, nil.
func (s *Store) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, nil
	}
	c := *app
	return &c, nil
}

// ListApplications lists applications newest first with job title and candidate details.
func (s *Store) ListApplications(_ context.Context, filter db.ApplicationFilter) ([]types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps := []types.Application{}
	for i := len(s.appOrder) - 1; i >= 0; i-- {
		app, ok := s.applications[s.appOrder[i]]
		if !ok {
			continue
		}
		if filter.JobID != nil && app.JobID != *filter.JobID {
			continue
		}
		if filter.ApplicantID != nil && app.ApplicantID != *filter.ApplicantID {
			continue
		}
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		c := *app
		if job, ok := s.jobs[app.JobID]; ok {
			title := job.Title
			c.JobTitle = &title
		}
		if p, ok := s.profiles[app.ApplicantID]; ok {
			c.CandidateName = copyString(p.FullName)
			c.CandidateEmail = copyString(p.Email)
		}
		apps = append(apps, c)
	}
	return page(apps, filter.Limit, filter.Offset), nil
}

// UpdateApplicationStatus sets status and, when non-nil, feedback. Returns nil, nil if missing.
func (s *Store) UpdateApplicationStatus(_ context.Context, id uuid.UUID, status types.ApplicationStatus, feedback *string) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, nil
	}
	app.Status = status
	if feedback != nil {
		app.Feedback = copyString(feedback)
	}
	app.UpdatedAt = time.Now()
	c := *app
	return &c, nil
}

// GetCandidateProfile returns a candidate profile, or nil, nil.
func (s *Store) GetCandidateProfile(_ context.Context, userID uuid.UUID) (*types.CandidateProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
