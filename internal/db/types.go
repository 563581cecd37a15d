package db

import (
	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/types"
)

// Constraint names referenced when translating store errors.
const (
	constraintOneApplicationPerJob = "uq_job_applications_job_applicant"
)

// JobRoleFilter narrows ListJobRoles. Nil fields do not filter.
type JobRoleFilter struct {
	Status    *types.JobStatus
	IsOpen    *bool
	CreatedBy *uuid.UUID
	Limit     int
	Offset    int
}

// JobRoleEdit is one conditional edit of a job role.
type JobRoleEdit struct {
	ID              uuid.UUID
	ExpectedVersion int
	Changes         *types.UpdateJobRoleRequest
	// ResetApproval moves the role back to pending and clears approval and rejection stamps.
	ResetApproval bool
	// Reapproval, when set, opens a new pending approval request on behalf of this user.
	Reapproval *uuid.UUID
}

// JobRoleReview is one conditional approve or reject of a job role.
type JobRoleReview struct {
	ID              uuid.UUID
	ExpectedVersion int
	Decision        types.JobStatus
	ReviewerID      uuid.UUID
	Reason          *string
}

// ApplicationFilter narrows ListApplications. Nil fields do not filter.
type ApplicationFilter struct {
	JobID       *uuid.UUID
	ApplicantID *uuid.UUID
	Status      *types.ApplicationStatus
	Limit       int
	Offset      int
}
