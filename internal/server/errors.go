package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
)

// ErrUnauthorized indicates a request reached a protected handler without a principal.
type ErrUnauthorized struct{}

func (e *ErrUnauthorized) Error() string {
	return "authentication required"
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound     *types.ErrNotFound
		forbidden    *types.ErrForbidden
		conflict     *types.ErrConflict
		validation   *types.ErrValidation
		external     *types.ErrExternalService
		unauthorized *ErrUnauthorized
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &conflict):
		if conflict.Code == types.ConflictJobNotAccepting {
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &external):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// describeError builds the client-facing body for err. Internal errors never
// leak their message.
func describeError(err error) errorBody {
	var (
		notFound   *types.ErrNotFound
		forbidden  *types.ErrForbidden
		conflict   *types.ErrConflict
		validation *types.ErrValidation
	)
	switch {
	case errors.As(err, &notFound):
		return errorBody{Error: err.Error(), Code: "not_found"}
	case errors.As(err, &forbidden):
		return errorBody{Error: err.Error(), Code: "forbidden"}
	case errors.As(err, &conflict):
		return errorBody{Error: conflict.Message, Code: conflict.Code}
	case errors.As(err, &validation):
		return errorBody{Error: validation.Message, Code: "validation_error", Field: validation.Field}
	case HTTPStatus(err) == http.StatusUnauthorized:
		return errorBody{Error: err.Error(), Code: "unauthorized"}
	case HTTPStatus(err) == http.StatusBadGateway:
		return errorBody{Error: "upstream service unavailable", Code: "upstream_error"}
	default:
		return errorBody{Error: "internal server error", Code: "internal_error"}
	}
}

// writeError maps err onto a status and body, logging anything unexpected.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.jsonResponse(w, status, describeError(err))
}
