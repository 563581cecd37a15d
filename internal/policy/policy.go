// Package policy centralizes role-based authorization for every operation.
// Each action enumerates the roles it admits; unknown actions and roles deny.
package policy

import (
	"github.com/jonathan/perfect-fit/internal/types"
)

// Action names an authorized operation.
type Action string

// Action constants
const (
	CreateJob               Action = "create job roles"
	EditJob                 Action = "edit job roles"
	DeleteJob               Action = "delete job roles"
	DraftJob                Action = "draft job role content"
	ReviewJob               Action = "review job roles"
	ChangeJobAvailability   Action = "open or close job roles"
	ListJobs                Action = "list job roles"
	ListPendingJobs         Action = "list pending job roles"
	ViewAnyJob              Action = "view job roles in any state"
	ViewApprovalHistory     Action = "view approval history"
	Apply                   Action = "apply for job roles"
	ListApplications        Action = "list applications"
	UpdateApplicationStatus Action = "update application status"
	SubmitAssessment        Action = "submit technical assessments"
	ViewScores              Action = "view assessment scores"
)

// Allows reports whether role may perform action.
func Allows(role types.Role, action Action) bool {
	if !role.Valid() {
		return false
	}
	switch action {
	case CreateJob, EditJob, DeleteJob, DraftJob:
		return oneOf(role, types.RoleEmployee, types.RoleAdmin)
	case ReviewJob, ChangeJobAvailability, ListPendingJobs, ViewAnyJob,
		ViewApprovalHistory, ListApplications, UpdateApplicationStatus, ViewScores:
		return oneOf(role, types.RoleHR, types.RoleAdmin)
	case ListJobs:
		return oneOf(role, types.RoleEmployee, types.RoleHR, types.RoleAdmin)
	case Apply, SubmitAssessment:
		return oneOf(role, types.RoleCandidate, types.RoleEmployee, types.RoleHR, types.RoleAdmin)
	default:
		return false
	}
}

// Require returns ErrForbidden unless the principal's role admits action.
func Require(p types.Principal, action Action) error {
	if !Allows(p.Role, action) {
		return &types.ErrForbidden{Action: string(action)}
	}
	return nil
}

// CanManageJob reports whether p may edit or delete job: the creator or an admin,
// and only with a role that admits the action at all.
func CanManageJob(p types.Principal, job *types.JobRole, action Action) bool {
	if !Allows(p.Role, action) {
		return false
	}
	return p.Role == types.RoleAdmin || job.CreatedBy == p.UserID
}

// CanReadJob applies the visibility rule: creators and reviewers see every
// state, everyone else only approved and open roles.
func CanReadJob(p types.Principal, job *types.JobRole) bool {
	if job.CreatedBy == p.UserID || Allows(p.Role, ViewAnyJob) {
		return true
	}
	return job.AcceptsApplications()
}

// CanSeeDesiredAnswers reports whether p may see the scoring key of job's questions.
func CanSeeDesiredAnswers(p types.Principal, job *types.JobRole) bool {
	return job.CreatedBy == p.UserID || Allows(p.Role, ViewAnyJob)
}

func oneOf(role types.Role, allowed ...types.Role) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
