package types

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

// ApplicationStatus constants
const (
	ApplicationSubmitted   ApplicationStatus = "submitted"
	ApplicationReviewing   ApplicationStatus = "reviewing"
	ApplicationShortlisted ApplicationStatus = "shortlisted"
	ApplicationRejected    ApplicationStatus = "rejected"
	ApplicationHired       ApplicationStatus = "hired"
)

// Application is a candidate's submission against a job role.
type Application struct {
	ID          uuid.UUID         `json:"id"`
	JobID       uuid.UUID         `json:"job_id"`
	ApplicantID uuid.UUID         `json:"applicant_id"`
	Status      ApplicationStatus `json:"status"`
	CoverLetter *string           `json:"cover_letter,omitempty"`
	ResumeURL   *string           `json:"resume_url,omitempty"`
	Phone       *string           `json:"phone,omitempty"`
	LinkedInURL *string           `json:"linkedin_url,omitempty"`
	Feedback    *string           `json:"feedback,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// Enriched on list reads
	JobTitle       *string `json:"job_title,omitempty"`
	CandidateName  *string `json:"candidate_name,omitempty"`
	CandidateEmail *string `json:"candidate_email,omitempty"`
}

// CandidateProfile is the subset of the candidate profile used to pre-fill applications.
type CandidateProfile struct {
	ID          uuid.UUID `json:"id"`
	Email       *string   `json:"email,omitempty"`
	FullName    *string   `json:"full_name,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	LinkedInURL *string   `json:"linkedin_url,omitempty"`
	ResumeURL   *string   `json:"resume_url,omitempty"`
}
