package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the approval state of a job role.
type JobStatus string

// JobStatus constants
const (
	JobStatusPending  JobStatus = "pending"
	JobStatusApproved JobStatus = "approved"
	JobStatusRejected JobStatus = "rejected"
)

// ReapprovalReason is recorded on the approval request spawned when an approved role is edited.
const ReapprovalReason = "Re-approval required after edit"

// JobRole is a job posting together with its approval lifecycle state.
type JobRole struct {
	ID                   uuid.UUID `json:"id"`
	Title                string    `json:"title"`
	Department           string    `json:"department"`
	Description          string    `json:"description"`
	Requirements         string    `json:"requirements"`
	EmploymentType       *string   `json:"employment_type,omitempty"`
	WorkMode             *string   `json:"work_mode,omitempty"`
	Location             *string   `json:"location,omitempty"`
	SalaryMin            *int      `json:"salary_min,omitempty"`
	SalaryMax            *int      `json:"salary_max,omitempty"`
	KeyBusinessObjective *string   `json:"key_business_objective,omitempty"`
	MinExperience        *int      `json:"min_experience,omitempty"`
	IsEnglishRequired    bool      `json:"is_english_required"`
	IsCodingRequired     bool      `json:"is_coding_required"`
	IsTechnicalRequired  bool      `json:"is_technical_required"`

	// Lifecycle
	Status          JobStatus  `json:"status"`
	IsOpen          bool       `json:"is_open"`
	Version         int        `json:"version"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Child collections (loaded on detail reads)
	TechnicalQuestions []TechnicalQuestion `json:"technical_questions,omitempty"`
	Responsibilities   []Responsibility    `json:"responsibilities,omitempty"`
	Skills             []Skill             `json:"skills,omitempty"`
}

// AcceptsApplications reports whether candidates may apply: approved and open.
func (j *JobRole) AcceptsApplications() bool {
	return j.Status == JobStatusApproved && j.IsOpen
}

// HideDesiredAnswers strips the expected answers from the question set, for
// readers who must not see the scoring key.
func (j *JobRole) HideDesiredAnswers() {
	for i := range j.TechnicalQuestions {
		j.TechnicalQuestions[i].DesiredAnswer = ""
	}
}

// TechnicalQuestion is one assessment question owned by a job role.
type TechnicalQuestion struct {
	ID            uuid.UUID `json:"id"`
	JobID         uuid.UUID `json:"job_id"`
	Question      string    `json:"question"`
	DesiredAnswer string    `json:"desired_answer,omitempty"`
}

// Responsibility is one responsibility line owned by a job role.
type Responsibility struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	Content    string    `json:"content"`
	Importance *string   `json:"importance,omitempty"`
}

// Skill is one skill requirement owned by a job role.
type Skill struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	SkillName   string    `json:"skill_name"`
	MinYears    *int      `json:"min_years,omitempty"`
	IsMandatory bool      `json:"is_mandatory"`
}

// ApprovalStatus is the state of one approval request.
type ApprovalStatus string

// ApprovalStatus constants
const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalRequest is the audit record of one approval cycle.
type ApprovalRequest struct {
	ID          uuid.UUID      `json:"id"`
	JobID       uuid.UUID      `json:"job_id"`
	RequestedBy *uuid.UUID     `json:"requested_by,omitempty"`
	ReviewedBy  *uuid.UUID     `json:"reviewed_by,omitempty"`
	Status      ApprovalStatus `json:"status"`
	Reason      *string        `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
}
