// Package memstore is an in-memory record store with the same conditional
// write semantics as the PostgreSQL store. It backs the in-memory serve mode
// and the service tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/types"
)

type responseKey struct {
	applicationID uuid.UUID
	questionID    uuid.UUID
}

// Store holds every record behind a single mutex, so each method is atomic
// in the way a single conditional statement is.
type Store struct {
	mu sync.Mutex

	jobs     map[uuid.UUID]*types.JobRole
	jobOrder []uuid.UUID

	approvals []types.ApprovalRequest

	applications map[uuid.UUID]*types.Application
	appOrder     []uuid.UUID

	profiles  map[uuid.UUID]types.CandidateProfile
	responses map[responseKey]*types.AssessmentResponse
}

// New returns an empty store.
func New() *Store {
	return &Store{
		jobs:         make(map[uuid.UUID]*types.JobRole),
		applications: make(map[uuid.UUID]*types.Application),
		profiles:     make(map[uuid.UUID]types.CandidateProfile),
		responses:    make(map[responseKey]*types.AssessmentResponse),
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// PutCandidateProfile stores or replaces a candidate profile.
func (s *Store) PutCandidateProfile(p types.CandidateProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// CreateJobRole inserts a pending, open role at version 1 with its first pending approval request.
func (s *Store) CreateJobRole(_ context.Context, createdBy uuid.UUID, req *types.CreateJobRoleRequest) (*types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	job := &types.JobRole{
		ID:                   uuid.New(),
		Title:                req.Title,
		Department:           req.Department,
		Description:          req.Description,
		Requirements:         req.Requirements,
		EmploymentType:       req.EmploymentType,
		WorkMode:             req.WorkMode,
		Location:             req.Location,
		SalaryMin:            req.SalaryMin,
		SalaryMax:            req.SalaryMax,
		KeyBusinessObjective: req.KeyBusinessObjective,
		MinExperience:        req.MinExperience,
		IsEnglishRequired:    req.IsEnglishRequired,
		IsCodingRequired:     req.IsCodingRequired,
		IsTechnicalRequired:  req.IsTechnicalRequired,
		Status:               types.JobStatusPending,
		IsOpen:               true,
		Version:              1,
		CreatedBy:            createdBy,
		CreatedAt:            now,
		UpdatedAt:            now,
		TechnicalQuestions:   []types.TechnicalQuestion{},
		Responsibilities:     []types.Responsibility{},
		Skills:               []types.Skill{},
	}
	s.replaceChildren(job, &req.JobChildren)
	s.jobs[job.ID] = job
	s.jobOrder = append(s.jobOrder, job.ID)
	s.addPendingApproval(job.ID, createdBy, nil)

	return cloneJob(job, true), nil
}

// GetJobRole returns a role without children, or nil, nil.
func (s *Store) GetJobRole(_ context.Context, id uuid.UUID) (*types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job, false), nil
}

// LoadJobChildren fills the child collections of job.
func (s *Store) LoadJobChildren(_ context.Context, job *types.JobRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		job.TechnicalQuestions = []types.TechnicalQuestion{}
		job.Responsibilities = []types.Responsibility{}
		job.Skills = []types.Skill{}
		return nil
	}
	full := cloneJob(stored, true)
	job.TechnicalQuestions = full.TechnicalQuestions
	job.Responsibilities = full.Responsibilities
	job.Skills = full.Skills
	return nil
}

// ListJobRoles lists roles newest first.
func (s *Store) ListJobRoles(_ context.Context, filter db.JobRoleFilter) ([]types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := []types.JobRole{}
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		job, ok := s.jobs[s.jobOrder[i]]
		if !ok {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if filter.IsOpen != nil && job.IsOpen != *filter.IsOpen {
			continue
		}
		if filter.CreatedBy != nil && job.CreatedBy != *filter.CreatedBy {
			continue
		}
		jobs = append(jobs, *cloneJob(job, false))
	}
	return page(jobs, filter.Limit, filter.Offset), nil
}

// ListTechnicalQuestions returns the question set of a role.
func (s *Store) ListTechnicalQuestions(_ context.Context, jobID uuid.UUID) ([]types.TechnicalQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return []types.TechnicalQuestion{}, nil
	}
	return append([]types.TechnicalQuestion{}, job.TechnicalQuestions...), nil
}

// EditJobRole applies e if (id, version) matches, else returns nil, nil.
func (s *Store) EditJobRole(_ context.Context, e *db.JobRoleEdit) (*types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[e.ID]
	if !ok || job.Version != e.ExpectedVersion {
		return nil, nil
	}

	if c := e.Changes; c != nil {
		applyChanges(job, c)
		s.replaceChildren(job, &c.JobChildren)
	}
	if e.ResetApproval {
		job.Status = types.JobStatusPending
		job.ApprovedBy = nil
		job.ApprovedAt = nil
		job.RejectionReason = nil
	}
	job.Version++
	job.UpdatedAt = time.Now()

	if e.Reapproval != nil {
		reason := types.ReapprovalReason
		s.addPendingApproval(job.ID, *e.Reapproval, &reason)
	}
	return cloneJob(job, true), nil
}

// ReviewJobRole records a decision if (id, version) matches, else returns nil, nil.
func (s *Store) ReviewJobRole(_ context.Context, r *db.JobRoleReview) (*types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Decision != types.JobStatusApproved && r.Decision != types.JobStatusRejected {
		return nil, fmt.Errorf("invalid review decision: %q", r.Decision)
	}

	job, ok := s.jobs[r.ID]
	if !ok || job.Version != r.ExpectedVersion {
		return nil, nil
	}

	now := time.Now()
	job.Status = r.Decision
	if r.Decision == types.JobStatusApproved {
		reviewer := r.ReviewerID
		job.ApprovedBy = &reviewer
		job.ApprovedAt = &now
		job.RejectionReason = nil
	} else {
		job.ApprovedBy = nil
		job.ApprovedAt = nil
		job.RejectionReason = copyString(r.Reason)
	}
	job.Version++
	job.UpdatedAt = now

	reviewer := r.ReviewerID
	status := types.ApprovalStatus(r.Decision)
	resolved := false
	for i := range s.approvals {
		a := &s.approvals[i]
		if a.JobID == r.ID && a.Status == types.ApprovalPending {
			a.Status = status
			a.ReviewedBy = &reviewer
			a.ReviewedAt = &now
			if r.Reason != nil {
				a.Reason = copyString(r.Reason)
			}
			resolved = true
		}
	}
	if !resolved {
		createdBy := job.CreatedBy
		s.approvals = append(s.approvals, types.ApprovalRequest{
			ID:          uuid.New(),
			JobID:       r.ID,
			RequestedBy: &createdBy,
			ReviewedBy:  &reviewer,
			Status:      status,
			Reason:      copyString(r.Reason),
			CreatedAt:   now,
			ReviewedAt:  &now,
		})
	}
	return cloneJob(job, false), nil
}

// SetJobRoleOpen changes availability if (id, version) matches, else returns nil, nil.
func (s *Store) SetJobRoleOpen(_ context.Context, id uuid.UUID, expectedVersion int, open bool) (*types.JobRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Version != expectedVersion {
		return nil, nil
	}
	now := time.Now()
	job.IsOpen = open
	if open {
		job.ClosedAt = nil
	} else {
		job.ClosedAt = &now
	}
	job.Version++
	job.UpdatedAt = now
	return cloneJob(job, false), nil
}

// DeleteJobRole removes a role and cascades to everything it owns.
func (s *Store) DeleteJobRole(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)

	kept := s.approvals[:0]
	for _, a := range s.approvals {
		if a.JobID != id {
			kept = append(kept, a)
		}
	}
	s.approvals = kept

	for appID, app := range s.applications {
		if app.JobID == id {
			delete(s.applications, appID)
			for key := range s.responses {
				if key.applicationID == appID {
					delete(s.responses, key)
				}
			}
		}
	}
	return true, nil
}

// ListApprovalRequests returns the approval history of a role, newest first.
func (s *Store) ListApprovalRequests(_ context.Context, jobID uuid.UUID) ([]types.ApprovalRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requests := []types.ApprovalRequest{}
	for i := len(s.approvals) - 1; i >= 0; i-- {
		if s.approvals[i].JobID == jobID {
			requests = append(requests, s.approvals[i])
		}
	}
	return requests, nil
}

func (s *Store) addPendingApproval(jobID, requestedBy uuid.UUID, reason *string) {
	for _, a := range s.approvals {
		if a.JobID == jobID && a.Status == types.ApprovalPending {
			return
		}
	}
	s.approvals = append(s.approvals, types.ApprovalRequest{
		ID:          uuid.New(),
		JobID:       jobID,
		RequestedBy: &requestedBy,
		Status:      types.ApprovalPending,
		Reason:      copyString(reason),
		CreatedAt:   time.Now(),
	})
}

// replaceChildren swaps every supplied collection. Replacing the question set
// drops responses to questions that no longer exist.
func (s *Store) replaceChildren(job *types.JobRole, c *types.JobChildren) {
	if c.TechnicalQuestions != nil {
		removed := make(map[uuid.UUID]bool, len(job.TechnicalQuestions))
		for _, q := range job.TechnicalQuestions {
			removed[q.ID] = true
		}
		job.TechnicalQuestions = make([]types.TechnicalQuestion, 0, len(c.TechnicalQuestions))
		for _, in := range c.TechnicalQuestions {
			job.TechnicalQuestions = append(job.TechnicalQuestions, types.TechnicalQuestion{
				ID: uuid.New(), JobID: job.ID, Question: in.Question, DesiredAnswer: in.DesiredAnswer,
			})
		}
		for key := range s.responses {
			if removed[key.questionID] {
				delete(s.responses, key)
			}
		}
	}
	if c.Responsibilities != nil {
		job.Responsibilities = make([]types.Responsibility, 0, len(c.Responsibilities))
		for _, in := range c.Responsibilities {
			job.Responsibilities = append(job.Responsibilities, types.Responsibility{
				ID: uuid.New(), JobID: job.ID, Content: in.Content, Importance: copyString(in.Importance),
			})
		}
	}
	if c.Skills != nil {
		job.Skills = make([]types.Skill, 0, len(c.Skills))
		for _, in := range c.Skills {
			skill := types.Skill{ID: uuid.New(), JobID: job.ID, SkillName: in.SkillName, IsMandatory: in.IsMandatory}
			if in.MinYears != nil {
				years := *in.MinYears
				skill.MinYears = &years
			}
			job.Skills = append(job.Skills, skill)
		}
	}
}

func applyChanges(job *types.JobRole, c *types.UpdateJobRoleRequest) {
	if c.Title != nil {
		job.Title = *c.Title
	}
	if c.Department != nil {
		job.Department = *c.Department
	}
	if c.Description != nil {
		job.Description = *c.Description
	}
	if c.Requirements != nil {
		job.Requirements = *c.Requirements
	}
	if c.EmploymentType != nil {
		job.EmploymentType = copyString(c.EmploymentType)
	}
	if c.WorkMode != nil {
		job.WorkMode = copyString(c.WorkMode)
	}
	if c.Location != nil {
		job.Location = copyString(c.Location)
	}
	if c.SalaryMin != nil {
		job.SalaryMin = copyInt(c.SalaryMin)
	}
	if c.SalaryMax != nil {
		job.SalaryMax = copyInt(c.SalaryMax)
	}
	if c.KeyBusinessObjective != nil {
		job.KeyBusinessObjective = copyString(c.KeyBusinessObjective)
	}
	if c.MinExperience != nil {
		job.MinExperience = copyInt(c.MinExperience)
	}
	if c.IsEnglishRequired != nil {
		job.IsEnglishRequired = *c.IsEnglishRequired
	}
	if c.IsCodingRequired != nil {
		job.IsCodingRequired = *c.IsCodingRequired
	}
	if c.IsTechnicalRequired != nil {
		job.IsTechnicalRequired = *c.IsTechnicalRequired
	}
}

func cloneJob(job *types.JobRole, withChildren bool) *types.JobRole {
	c := *job
	c.TechnicalQuestions = nil
	c.Responsibilities = nil
	c.Skills = nil
	if withChildren {
		c.TechnicalQuestions = append([]types.TechnicalQuestion{}, job.TechnicalQuestions...)
		c.Responsibilities = append([]types.Responsibility{}, job.Responsibilities...)
		c.Skills = append([]types.Skill{}, job.Skills...)
	}
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		return items
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
