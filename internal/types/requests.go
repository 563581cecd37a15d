package types

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = newValidator()

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// toValidationError converts validator output into an ErrValidation for the first failing field.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		first := ve[0]
		return &ErrValidation{Field: first.Field(), Message: "failed '" + first.Tag() + "' check"}
	}
	return &ErrValidation{Field: "body", Message: err.Error()}
}

// TechnicalQuestionInput is a question supplied on create or edit.
type TechnicalQuestionInput struct {
	Question      string `json:"question" validate:"required,min=5"`
	DesiredAnswer string `json:"desired_answer" validate:"required"`
}

// ResponsibilityInput is a responsibility supplied on create or edit.
type ResponsibilityInput struct {
	Content    string  `json:"content" validate:"required,min=2"`
	Importance *string `json:"importance,omitempty" validate:"omitempty,max=50"`
}

// SkillInput is a skill supplied on create or edit.
type SkillInput struct {
	SkillName   string `json:"skill_name" validate:"required,min=1,max=100"`
	MinYears    *int   `json:"min_years,omitempty" validate:"omitempty,gte=0,lte=50"`
	IsMandatory bool   `json:"is_mandatory"`
}

// JobChildren holds the child collections of a job role. A nil slice means
// "not supplied" on edit; an empty non-nil slice clears the collection.
type JobChildren struct {
	TechnicalQuestions []TechnicalQuestionInput `json:"technical_questions" validate:"dive"`
	Responsibilities   []ResponsibilityInput    `json:"responsibilities" validate:"dive"`
	Skills             []SkillInput             `json:"skills" validate:"dive"`
}

// Supplied reports whether any child collection was supplied.
func (c *JobChildren) Supplied() bool {
	return c.TechnicalQuestions != nil || c.Responsibilities != nil || c.Skills != nil
}

// CreateJobRoleRequest is the body of POST /jobs.
type CreateJobRoleRequest struct {
	Title                string  `json:"title" validate:"required,min=2,max=200"`
	Department           string  `json:"department" validate:"required,min=2,max=100"`
	Description          string  `json:"description" validate:"required,min=10"`
	Requirements         string  `json:"requirements" validate:"required,min=10"`
	EmploymentType       *string `json:"employment_type,omitempty" validate:"omitempty,max=50"`
	WorkMode             *string `json:"work_mode,omitempty" validate:"omitempty,max=50"`
	Location             *string `json:"location,omitempty" validate:"omitempty,max=200"`
	SalaryMin            *int    `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax            *int    `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	KeyBusinessObjective *string `json:"key_business_objective,omitempty"`
	MinExperience        *int    `json:"min_experience,omitempty" validate:"omitempty,gte=0,lte=50"`
	IsEnglishRequired    bool    `json:"is_english_required"`
	IsCodingRequired     bool    `json:"is_coding_required"`
	IsTechnicalRequired  bool    `json:"is_technical_required"`
	JobChildren
}

// Validate checks field constraints and the compensation range.
func (r *CreateJobRoleRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	return validateSalaryRange(r.SalaryMin, r.SalaryMax)
}

// UpdateJobRoleRequest is the body of PATCH /jobs/{id}. Nil fields are left unchanged.
type UpdateJobRoleRequest struct {
	Title                *string `json:"title,omitempty" validate:"omitempty,min=2,max=200"`
	Department           *string `json:"department,omitempty" validate:"omitempty,min=2,max=100"`
	Description          *string `json:"description,omitempty" validate:"omitempty,min=10"`
	Requirements         *string `json:"requirements,omitempty" validate:"omitempty,min=10"`
	EmploymentType       *string `json:"employment_type,omitempty" validate:"omitempty,max=50"`
	WorkMode             *string `json:"work_mode,omitempty" validate:"omitempty,max=50"`
	Location             *string `json:"location,omitempty" validate:"omitempty,max=200"`
	SalaryMin            *int    `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax            *int    `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	KeyBusinessObjective *string `json:"key_business_objective,omitempty"`
	MinExperience        *int    `json:"min_experience,omitempty" validate:"omitempty,gte=0,lte=50"`
	IsEnglishRequired    *bool   `json:"is_english_required,omitempty"`
	IsCodingRequired     *bool   `json:"is_coding_required,omitempty"`
	IsTechnicalRequired  *bool   `json:"is_technical_required,omitempty"`
	CurrentVersion       *int    `json:"current_version,omitempty" validate:"omitempty,gte=1"`
	JobChildren
}

// HasFieldChanges reports whether any scalar field was supplied.
func (r *UpdateJobRoleRequest) HasFieldChanges() bool {
	return r.Title != nil || r.Department != nil || r.Description != nil ||
		r.Requirements != nil || r.EmploymentType != nil || r.WorkMode != nil ||
		r.Location != nil || r.SalaryMin != nil || r.SalaryMax != nil ||
		r.KeyBusinessObjective != nil || r.MinExperience != nil ||
		r.IsEnglishRequired != nil || r.IsCodingRequired != nil || r.IsTechnicalRequired != nil
}

// Validate checks field constraints and that the edit changes something.
func (r *UpdateJobRoleRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	if !r.HasFieldChanges() && !r.Supplied() {
		return &ErrValidation{Field: "body", Message: "no changes supplied"}
	}
	return validateSalaryRange(r.SalaryMin, r.SalaryMax)
}

// ReviewRequest is the body of PATCH /jobs/{id}/approve and /reject.
type ReviewRequest struct {
	Reason         string `json:"reason,omitempty"`
	CurrentVersion *int   `json:"current_version,omitempty" validate:"omitempty,gte=1"`
}

// ValidateRejection checks the reject body; a reason is mandatory.
func (r *ReviewRequest) ValidateRejection() error {
	if err := validate.Var(r.Reason, "required,min=5,max=500"); err != nil {
		return &ErrValidation{Field: "reason", Message: "must be between 5 and 500 characters"}
	}
	return toValidationError(validate.Struct(r))
}

func validateSalaryRange(lo, hi *int) error {
	if lo != nil && hi != nil && *hi < *lo {
		return &ErrValidation{Field: "salary_max", Message: "must be greater than or equal to salary_min"}
	}
	return nil
}

// ApplyRequest is the body of POST /applications/{job_id}.
type ApplyRequest struct {
	CoverLetter *string `json:"cover_letter,omitempty" validate:"omitempty,max=10000"`
	ResumeURL   *string `json:"resume_url,omitempty" validate:"omitempty,url"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	LinkedInURL *string `json:"linkedin_url,omitempty" validate:"omitempty,url"`
}

// Validate checks field constraints.
func (r *ApplyRequest) Validate() error {
	return toValidationError(validate.Struct(r))
}

// UpdateApplicationStatusRequest is the body of PUT /applications/{app_id}/status.
type UpdateApplicationStatusRequest struct {
	Status   ApplicationStatus `json:"status" validate:"required,oneof=reviewing shortlisted rejected hired"`
	Feedback *string           `json:"feedback,omitempty" validate:"omitempty,max=5000"`
}

// Validate checks field constraints.
func (r *UpdateApplicationStatusRequest) Validate() error {
	return toValidationError(validate.Struct(r))
}

// AnswerInput is one candidate answer in a submission.
type AnswerInput struct {
	QuestionID uuid.UUID `json:"question_id" validate:"required"`
	Answer     string    `json:"answer" validate:"required,max=20000"`
}

// SubmitAssessmentRequest is the body of POST /applications/{app_id}/technical-assessment/submit.
type SubmitAssessmentRequest struct {
	Answers []AnswerInput `json:"answers" validate:"required,min=1,dive"`
}

// Validate checks field constraints.
func (r *SubmitAssessmentRequest) Validate() error {
	return toValidationError(validate.Struct(r))
}
