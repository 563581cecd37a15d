package types

// DraftField names the part of a job posting a draft is generated for.
type DraftField string

// DraftField constants
const (
	DraftDescription          DraftField = "description"
	DraftResponsibilities     DraftField = "responsibilities"
	DraftRequirements         DraftField = "requirements"
	DraftKeyBusinessObjective DraftField = "key_business_objective"
	DraftTechnicalQuestions   DraftField = "technical_questions"
)

// DefaultDraftTone is used when a request names no tone.
const DefaultDraftTone = "professional"

// GenerateDraftRequest is the body of POST /jobs/generate. Context carries the
// job title, optionally followed by "| focus" for technical questions.
type GenerateDraftRequest struct {
	Field   DraftField `json:"field_name" validate:"required,oneof=description responsibilities requirements key_business_objective technical_questions"`
	Context string     `json:"context" validate:"required,min=2,max=500"`
	Tone    string     `json:"tone,omitempty" validate:"omitempty,max=50"`
}

// Validate checks field constraints and fills the default tone.
func (r *GenerateDraftRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return toValidationError(err)
	}
	if r.Tone == "" {
		r.Tone = DefaultDraftTone
	}
	return nil
}

// Draft is generated posting content. It is never persisted; the author
// copies it into a create or edit request.
type Draft struct {
	Field              DraftField               `json:"field_name"`
	Content            string                   `json:"content"`
	TechnicalQuestions []TechnicalQuestionInput `json:"technical_questions,omitempty"`
}
