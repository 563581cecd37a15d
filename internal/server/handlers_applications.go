package server

import (
	"net/http"

	"github.com/jonathan/perfect-fit/internal/types"
)

// ---------------------------------------------------------------------
// Application Handlers
// ---------------------------------------------------------------------

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jobID, err := pathUUID(r, "job_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.ApplyRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.applications.Apply(r.Context(), p, jobID, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, app)
}

func (s *Server) handleListMyApplications(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	apps, err := s.applications.ListMine(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, apps)
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	limit, offset, err := pagination(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var status *types.ApplicationStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := types.ApplicationStatus(v)
		switch st {
		case types.ApplicationSubmitted, types.ApplicationReviewing, types.ApplicationShortlisted,
			types.ApplicationRejected, types.ApplicationHired:
			status = &st
		default:
			s.writeError(w, r, &types.ErrValidation{Field: "status", Message: "unknown application status"})
			return
		}
	}

	apps, err := s.applications.ListAll(r.Context(), p, status, limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, apps)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "app_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.applications.Get(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleUpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "app_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateApplicationStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.applications.UpdateStatus(r.Context(), p, id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

// ---------------------------------------------------------------------
// Technical Assessment Handlers
// ---------------------------------------------------------------------

// handleSubmitAssessment stores the answers as pending and returns before
// scoring starts.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "app_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.SubmitAssessmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.assessments.Submit(r.Context(), p, id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, receipt)
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "app_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.assessments.View(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}
