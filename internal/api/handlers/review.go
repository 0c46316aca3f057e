package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/service"
)

type ReviewHandler struct {
	projectScope
	svc *service.ReviewService
}

func NewReviewHandler(projects domain.ProjectStore, svc *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{projectScope: projectScope{projects: projects}, svc: svc}
}

type reviewRequest struct {
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason,omitempty"`
}

type bulkApproveRequest struct {
	IDs      []string `json:"ids"`
	Reviewer string   `json:"reviewer"`
}

func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	pending, err := h.svc.ListPending(r.Context(), p.ID, domain.PendingFilter{
		MinInstructionScore: queryFloat(r, "min_instruction_score"),
		MinSafetyScore:      queryFloat(r, "min_safety_score"),
		Limit:               queryInt(r, "limit", 50),
		Offset:              queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending assertions")
		return
	}
	if pending == nil {
		pending = []domain.Assertion{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (h *ReviewHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

func (h *ReviewHandler) decide(w http.ResponseWriter, r *http.Request, reject bool) {
	p := h.project(w, r)
	if p == nil {
		return
	}
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assertion id")
		return
	}

	var req reviewRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := h.svc.Get(r.Context(), p.ID, id); err != nil {
		writeReviewError(w, err)
		return
	}

	var a *domain.Assertion
	if reject {
		a, err = h.svc.Reject(r.Context(), id, req.Reviewer, req.Reason)
	} else {
		a, err = h.svc.Approve(r.Context(), id, req.Reviewer)
	}
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *ReviewHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	var req bulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	var ids []uuid.UUID
	var rejected []string
	for _, s := range req.IDs {
		id, err := uuid.Parse(s)
		if err != nil {
			rejected = append(rejected, s+": invalid id")
			continue
		}
		if _, err := h.svc.Get(r.Context(), p.ID, id); err != nil {
			rejected = append(rejected, s+": "+err.Error())
			continue
		}
		ids = append(ids, id)
	}

	res := h.svc.BulkApprove(r.Context(), ids, req.Reviewer)
	res.TotalRequested = len(req.IDs)
	res.Errors = append(append([]string{}, rejected...), res.Errors...)
	writeJSON(w, http.StatusOK, res)
}

func writeReviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAssertionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotPendingReview):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to review assertion")
	}
}
