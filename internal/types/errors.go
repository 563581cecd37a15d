package types

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Conflict codes let clients decide between refetch-and-retry and abandon.
const (
	ConflictVersion              = "version_conflict"
	ConflictAlreadyApproved      = "already_approved"
	ConflictAlreadyRejected      = "already_rejected"
	ConflictDuplicateApplication = "duplicate_application"
	ConflictJobNotAccepting      = "job_not_accepting"
)

// ErrNotFound indicates a missing entity, or one the caller is not allowed to see.
type ErrNotFound struct {
	Entity string
	ID     uuid.UUID
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ErrForbidden indicates a failed role or ownership check.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("not authorized to %s", e.Action)
}

// ErrConflict indicates the request collides with current state.
type ErrConflict struct {
	Code    string
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrValidation indicates malformed input
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrExternalService wraps a failure of an outside dependency such as the scorer.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// NewVersionConflict builds the conflict returned when an optimistic write loses.
func NewVersionConflict() *ErrConflict {
	return &ErrConflict{
		Code:    ConflictVersion,
		Message: "This job has been modified by another user. Please refresh and try again.",
	}
}

// IsConflict reports whether err is an ErrConflict with the given code.
// An empty code matches any conflict.
func IsConflict(err error, code string) bool {
	var c *ErrConflict
	if !errors.As(err, &c) {
		return false
	}
	return code == "" || c.Code == code
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
