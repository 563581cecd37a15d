// Package jobroles implements the job role approval workflow: the
// pending/approved/rejected state machine, optimistic concurrency on the
// version counter and the approval audit log.
package jobroles

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/db"
	"github.com/jonathan/perfect-fit/internal/policy"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// lastWriteAttempts bounds the read-modify-write loop used when the caller
// supplies no expected version.
const lastWriteAttempts = 3

// Store is the persistence surface the lifecycle needs. Conditional writes
// return nil, nil when (id, version) matched no row.
type Store interface {
	CreateJobRole(ctx context.Context, createdBy uuid.UUID, req *types.CreateJobRoleRequest) (*types.JobRole, error)
	GetJobRole(ctx context.Context, id uuid.UUID) (*types.JobRole, error)
	LoadJobChildren(ctx context.Context, job *types.JobRole) error
	ListJobRoles(ctx context.Context, filter db.JobRoleFilter) ([]types.JobRole, error)
	EditJobRole(ctx context.Context, e *db.JobRoleEdit) (*types.JobRole, error)
	ReviewJobRole(ctx context.Context, r *db.JobRoleReview) (*types.JobRole, error)
	SetJobRoleOpen(ctx context.Context, id uuid.UUID, expectedVersion int, open bool) (*types.JobRole, error)
	DeleteJobRole(ctx context.Context, id uuid.UUID) (bool, error)
	ListApprovalRequests(ctx context.Context, jobID uuid.UUID) ([]types.ApprovalRequest, error)
}

// Lifecycle owns every state change of a job role.
type Lifecycle struct {
	store Store
	log   *zap.Logger
}

// New creates a Lifecycle backed by store.
func New(store Store, log *zap.Logger) *Lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &Lifecycle{store: store, log: log}
}

// ListOptions narrows List.
type ListOptions struct {
	Status *types.JobStatus
	Limit  int
	Offset int
}

// Create inserts a pending, open role at version 1 with a pending approval request.
func (l *Lifecycle) Create(ctx context.Context, p types.Principal, req *types.CreateJobRoleRequest) (*types.JobRole, error) {
	if err := policy.Require(p, policy.CreateJob); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job, err := l.store.CreateJobRole(ctx, p.UserID, req)
	if err != nil {
		return nil, err
	}
	l.log.Info("job role created",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", p.UserID.String()))
	return job, nil
}

// Get returns a role with its children, applying the visibility rule.
// Readers who may not see the role get NotFound.
func (l *Lifecycle) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.JobRole, error) {
	job, err := l.readable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := l.store.LoadJobChildren(ctx, job); err != nil {
		return nil, err
	}
	if !policy.CanSeeDesiredAnswers(p, job) {
		job.HideDesiredAnswers()
	}
	return job, nil
}

// Edit applies a patch. With CurrentVersion set the write is conditional on
// it; otherwise the edit is retried against fresh reads (last write wins).
// Editing an approved role resets it to pending and opens a re-approval request;
// editing a rejected role resets it to pending.
func (l *Lifecycle) Edit(ctx context.Context, p types.Principal, id uuid.UUID, req *types.UpdateJobRoleRequest) (*types.JobRole, error) {
	if err := policy.Require(p, policy.EditJob); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < lastWriteAttempts; attempt++ {
		job, err := l.readable(ctx, p, id)
		if err != nil {
			return nil, err
		}
		if !policy.CanManageJob(p, job, policy.EditJob) {
			return nil, &types.ErrForbidden{Action: "edit this job role"}
		}

		expected := job.Version
		if req.CurrentVersion != nil {
			if *req.CurrentVersion != job.Version {
				return nil, types.NewVersionConflict()
			}
			expected = *req.CurrentVersion
		}

		edit := &db.JobRoleEdit{ID: id, ExpectedVersion: expected, Changes: req}
		switch job.Status {
		case types.JobStatusApproved:
			edit.ResetApproval = true
			edit.Reapproval = &p.UserID
		case types.JobStatusRejected:
			edit.ResetApproval = true
		}

		updated, err := l.store.EditJobRole(ctx, edit)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			l.log.Info("job role edited",
				zap.String("job_id", id.String()),
				zap.Int("version", updated.Version),
				zap.String("previous_status", string(job.Status)),
				zap.Bool("reapproval", edit.Reapproval != nil))
			return updated, nil
		}
		if req.CurrentVersion != nil {
			return nil, l.disambiguate(ctx, id)
		}
		l.log.Debug("edit lost a race, retrying", zap.String("job_id", id.String()), zap.Int("attempt", attempt+1))
	}
	return nil, types.NewVersionConflict()
}

// Approve moves a role to approved and resolves its pending approval request.
func (l *Lifecycle) Approve(ctx context.Context, p types.Principal, id uuid.UUID, req *types.ReviewRequest) (*types.JobRole, error) {
	var reason *string
	if req != nil && req.Reason != "" {
		reason = &req.Reason
	}
	return l.review(ctx, p, id, types.JobStatusApproved, reason, currentVersion(req))
}

// Reject moves a role to rejected with a mandatory reason.
func (l *Lifecycle) Reject(ctx context.Context, p types.Principal, id uuid.UUID, req *types.ReviewRequest) (*types.JobRole, error) {
	if err := policy.Require(p, policy.ReviewJob); err != nil {
		return nil, err
	}
	if req == nil {
		req = &types.ReviewRequest{}
	}
	if err := req.ValidateRejection(); err != nil {
		return nil, err
	}
	return l.review(ctx, p, id, types.JobStatusRejected, &req.Reason, req.CurrentVersion)
}

// review performs approve or reject, conditional on the version just read so a
// reviewer never decides on content they have not seen.
func (l *Lifecycle) review(ctx context.Context, p types.Principal, id uuid.UUID, decision types.JobStatus, reason *string, clientVersion *int) (*types.JobRole, error) {
	if err := policy.Require(p, policy.ReviewJob); err != nil {
		return nil, err
	}

	job, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == decision {
		return nil, alreadyReviewed(decision)
	}
	if clientVersion != nil && *clientVersion != job.Version {
		return nil, types.NewVersionConflict()
	}

	updated, err := l.store.ReviewJobRole(ctx, &db.JobRoleReview{
		ID:              id,
		ExpectedVersion: job.Version,
		Decision:        decision,
		ReviewerID:      p.UserID,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, l.disambiguate(ctx, id)
	}

	l.log.Info("job role reviewed",
		zap.String("job_id", id.String()),
		zap.String("decision", string(decision)),
		zap.String("reviewer_id", p.UserID.String()),
		zap.Int("version", updated.Version))
	return updated, nil
}

// Close stops a role from accepting applications without touching its status.
func (l *Lifecycle) Close(ctx context.Context, p types.Principal, id uuid.UUID) (*types.JobRole, error) {
	return l.setOpen(ctx, p, id, false)
}

// Reopen lets a closed role accept applications again.
func (l *Lifecycle) Reopen(ctx context.Context, p types.Principal, id uuid.UUID) (*types.JobRole, error) {
	return l.setOpen(ctx, p, id, true)
}

func (l *Lifecycle) setOpen(ctx context.Context, p types.Principal, id uuid.UUID, open bool) (*types.JobRole, error) {
	if err := policy.Require(p, policy.ChangeJobAvailability); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < lastWriteAttempts; attempt++ {
		job, err := l.find(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.IsOpen == open {
			return job, nil
		}

		updated, err := l.store.SetJobRoleOpen(ctx, id, job.Version, open)
		if err != nil {
			return nil, err
		}
		if updated != nil {
			l.log.Info("job role availability changed",
				zap.String("job_id", id.String()),
				zap.Bool("is_open", open),
				zap.Int("version", updated.Version))
			return updated, nil
		}
	}
	return nil, types.NewVersionConflict()
}

// Delete removes a role and everything it owns. Owner or admin only.
func (l *Lifecycle) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	if err := policy.Require(p, policy.DeleteJob); err != nil {
		return err
	}
	job, err := l.readable(ctx, p, id)
	if err != nil {
		return err
	}
	if !policy.CanManageJob(p, job, policy.DeleteJob) {
		return &types.ErrForbidden{Action: "delete this job role"}
	}

	deleted, err := l.store.DeleteJobRole(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return &types.ErrNotFound{Entity: "job role", ID: id}
	}
	l.log.Info("job role deleted", zap.String("job_id", id.String()), zap.String("user_id", p.UserID.String()))
	return nil
}

// List returns roles for back-office readers: employees see their own roles,
// hr and admin see all.
func (l *Lifecycle) List(ctx context.Context, p types.Principal, opts ListOptions) ([]types.JobRole, error) {
	if err := policy.Require(p, policy.ListJobs); err != nil {
		return nil, err
	}
	filter := db.JobRoleFilter{Status: opts.Status, Limit: opts.Limit, Offset: opts.Offset}
	if !policy.Allows(p.Role, policy.ViewAnyJob) {
		filter.CreatedBy = &p.UserID
	}
	return l.store.ListJobRoles(ctx, filter)
}

// ListPending returns the review queue.
func (l *Lifecycle) ListPending(ctx context.Context, p types.Principal) ([]types.JobRole, error) {
	if err := policy.Require(p, policy.ListPendingJobs); err != nil {
		return nil, err
	}
	status := types.JobStatusPending
	return l.store.ListJobRoles(ctx, db.JobRoleFilter{Status: &status})
}

// ListPublic returns roles that accept applications. No principal is required.
func (l *Lifecycle) ListPublic(ctx context.Context, limit, offset int) ([]types.JobRole, error) {
	status := types.JobStatusApproved
	open := true
	return l.store.ListJobRoles(ctx, db.JobRoleFilter{Status: &status, IsOpen: &open, Limit: limit, Offset: offset})
}

// Approvals returns the approval history of a role, newest first.
func (l *Lifecycle) Approvals(ctx context.Context, p types.Principal, id uuid.UUID) ([]types.ApprovalRequest, error) {
	if err := policy.Require(p, policy.ViewApprovalHistory); err != nil {
		return nil, err
	}
	if _, err := l.find(ctx, id); err != nil {
		return nil, err
	}
	return l.store.ListApprovalRequests(ctx, id)
}

// find loads a role or returns NotFound.
func (l *Lifecycle) find(ctx context.Context, id uuid.UUID) (*types.JobRole, error) {
	job, err := l.store.GetJobRole(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job role: %w", err)
	}
	if job == nil {
		return nil, &types.ErrNotFound{Entity: "job role", ID: id}
	}
	return job, nil
}

// readable loads a role and applies the visibility rule.
func (l *Lifecycle) readable(ctx context.Context, p types.Principal, id uuid.UUID) (*types.JobRole, error) {
	job, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadJob(p, job) {
		return nil, &types.ErrNotFound{Entity: "job role", ID: id}
	}
	return job, nil
}

// disambiguate explains a conditional write that matched no row.
func (l *Lifecycle) disambiguate(ctx context.Context, id uuid.UUID) error {
	if _, err := l.find(ctx, id); err != nil {
		return err
	}
	l.log.Info("version conflict", zap.String("job_id", id.String()))
	return types.NewVersionConflict()
}

func alreadyReviewed(status types.JobStatus) error {
	if status == types.JobStatusApproved {
		return &types.ErrConflict{Code: types.ConflictAlreadyApproved, Message: "Job is already approved"}
	}
	return &types.ErrConflict{Code: types.ConflictAlreadyRejected, Message: "Job is already rejected"}
}

func currentVersion(req *types.ReviewRequest) *int {
	if req == nil {
		return nil
	}
	return req.CurrentVersion
}
