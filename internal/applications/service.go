// Package applications implements candidate applications to job roles:
// submission with a uniqueness guarantee per (job, applicant), and review
// status updates by hr and admin.
package applications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/policy"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// Store is the persistence surface for applications.
type Store interface {
	GetJobRole(ctx context.Context, id uuid.UUID) (*types.JobRole, error)
	CreateApplication(ctx context.Context, app *types.Application) (*types.Application, error)
	FindApplication(ctx context.Context, jobID, applicantID uuid.UUID) (*types.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	ListApplications(ctx context.Context, filter db.ApplicationFilter) ([]types.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status types.ApplicationStatus, feedback *string) (*types.Application, error)
	GetCandidateProfile(ctx context.Context, userID uuid.UUID) (*types.CandidateProfile, error)
}

// Service owns the application lifecycle.
type Service struct {
	store Store
	log   *zap.Logger
}

// New creates a Service backed by store.
func New(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// Apply submits an application for the principal. The role must be approved
// and open, and the principal must not have applied already. Contact fields
// not supplied are taken from the candidate profile.
func (s *Service) Apply(ctx context.Context, p types.Principal, jobID uuid.UUID, req *types.ApplyRequest) (*types.Application, error) {
	if err := policy.Require(p, policy.Apply); err != nil {
		return nil, err
	}
	if req == nil {
		req = &types.ApplyRequest{}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job, err := s.store.GetJobRole(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job role: %w", err)
	}
	if job == nil || !policy.CanReadJob(p, job) {
		return nil, &types.ErrNotFound{Entity: "job role", ID: jobID}
	}
	if !job.AcceptsApplications() {
		return nil, &types.ErrConflict{
			Code:    types.ConflictJobNotAccepting,
			Message: "Job is not accepting applications",
		}
	}

	existing, err := s.store.FindApplication(ctx, jobID, p.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &types.ErrConflict{
			Code:    types.ConflictDuplicateApplication,
			Message: "You have already applied for this job",
		}
	}

	app := &types.Application{
		JobID:       jobID,
		ApplicantID: p.UserID,
		CoverLetter: req.CoverLetter,
		ResumeURL:   req.ResumeURL,
		Phone:       req.Phone,
		LinkedInURL: req.LinkedInURL,
	}

	profile, err := s.store.GetCandidateProfile(ctx, p.UserID)
	if err != nil {
		// Pre-fill is best effort.
		s.log.Warn("candidate profile lookup failed", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	fillFromProfile(app, profile)

	// The store's unique constraint is authoritative when two applies race past the pre-check.
	created, err := s.store.CreateApplication(ctx, app)
	if err != nil {
		return nil, err
	}

	title := job.Title
	created.JobTitle = &title
	s.log.Info("application submitted",
		zap.String("application_id", created.ID.String()),
		zap.String("job_id", jobID.String()),
		zap.String("applicant_id", p.UserID.String()))
	return created, nil
}

// fillFromProfile copies contact fields from profile where app has none.
func fillFromProfile(app *types.Application, profile *types.CandidateProfile) {
	if profile == nil {
		return
	}
	if app.ResumeURL == nil {
		app.ResumeURL = profile.ResumeURL
	}
	if app.Phone == nil {
		app.Phone = profile.Phone
	}
	if app.LinkedInURL == nil {
		app.LinkedInURL = profile.LinkedInURL
	}
}

// UpdateStatus moves an application to one of the review statuses. Any
// origin status is accepted.
func (s *Service) UpdateStatus(ctx context.Context, p types.Principal, id uuid.UUID, req *types.UpdateApplicationStatusRequest) (*types.Application, error) {
	if err := policy.Require(p, policy.UpdateApplicationStatus); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	app, err := s.store.UpdateApplicationStatus(ctx, id, req.Status, req.Feedback)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, &types.ErrNotFound{Entity: "application", ID: id}
	}
	s.log.Info("application status updated",
		zap.String("application_id", id.String()),
		zap.String("status", string(req.Status)),
		zap.String("reviewer_id", p.UserID.String()))
	return app, nil
}

// ListMine returns the principal's own applications with job titles.
func (s *Service) ListMine(ctx context.Context, p types.Principal) ([]types.Application, error) {
	return s.store.ListApplications(ctx, db.ApplicationFilter{ApplicantID: &p.UserID})
}

// ListAll returns every application, optionally narrowed by status.
func (s *Service) ListAll(ctx context.Context, p types.Principal, status *types.ApplicationStatus, limit, offset int) ([]types.Application, error) {
	if err := policy.Require(p, policy.ListApplications); err != nil {
		return nil, err
	}
	return s.store.ListApplications(ctx, db.ApplicationFilter{Status: status, Limit: limit, Offset: offset})
}

// ListForJob returns the applications to one role.
func (s *Service) ListForJob(ctx context.Context, p types.Principal, jobID uuid.UUID) ([]types.Application, error) {
	if err := policy.Require(p, policy.ListApplications); err != nil {
		return nil, err
	}
	job, err := s.store.GetJobRole(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job role: %w", err)
	}
	if job == nil {
		return nil, &types.ErrNotFound{Entity: "job role", ID: jobID}
	}
	return s.store.ListApplications(ctx, db.ApplicationFilter{JobID: &jobID})
}

// Get returns one application to its owner or to a reviewer.
func (s *Service) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil || (app.ApplicantID != p.UserID && !policy.Allows(p.Role, policy.ListApplications)) {
		return nil, &types.ErrNotFound{Entity: "application", ID: id}
	}
	return app, nil
}
