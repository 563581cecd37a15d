package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/jobroles"
	"github.com/jonathan/perfect-fit/internal/types"
)

// ---------------------------------------------------------------------
// Job Role Handlers
// ---------------------------------------------------------------------

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.CreateJobRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobs.Create(r.Context(), p, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
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
	opts := jobroles.ListOptions{Limit: limit, Offset: offset}
	if v := r.URL.Query().Get("status"); v != "" {
		status := types.JobStatus(v)
		switch status {
		case types.JobStatusPending, types.JobStatusApproved, types.JobStatusRejected:
			opts.Status = &status
		default:
			s.writeError(w, r, &types.ErrValidation{Field: "status", Message: "must be pending, approved or rejected"})
			return
		}
	}

	jobs, err := s.jobs.List(r.Context(), p, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleListPendingJobs(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jobs, err := s.jobs.ListPending(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleListPublicJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jobs, err := s.jobs.ListPublic(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobs.Get(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleEditJob(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.UpdateJobRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := s.jobs.Edit(r.Context(), p, id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.jobs.Delete(r.Context(), p, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, messageResponse{Message: "Job role deleted"})
}

func (s *Server) handleApproveJob(w http.ResponseWriter, r *http.Request) {
	s.handleReview(w, r, s.jobs.Approve)
}

func (s *Server) handleRejectJob(w http.ResponseWriter, r *http.Request) {
	s.handleReview(w, r, s.jobs.Reject)
}

// reviewFunc is the shape shared by Approve and Reject.
type reviewFunc func(ctx context.Context, p types.Principal, id uuid.UUID, req *types.ReviewRequest) (*types.JobRole, error)

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, review reviewFunc) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.ReviewRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := review(r.Context(), p, id, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleCloseJob(w http.ResponseWriter, r *http.Request) {
	s.handleAvailability(w, r, s.jobs.Close)
}

func (s *Server) handleReopenJob(w http.ResponseWriter, r *http.Request) {
	s.handleAvailability(w, r, s.jobs.Reopen)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request, change func(context.Context, types.Principal, uuid.UUID) (*types.JobRole, error)) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	job, err := change(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	approvals, err := s.jobs.Approvals(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, approvals)
}

func (s *Server) handleListJobApplications(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	apps, err := s.applications.ListForJob(r.Context(), p, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, apps)
}

func (s *Server) handleGenerateDraft(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req types.GenerateDraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	draft, err := s.drafts.Generate(r.Context(), p, &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, draft)
}
