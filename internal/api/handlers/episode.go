package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/service"
)

// Condenser is the part of service.Condenser the HTTP layer needs.
type Condenser interface {
	Condense(ctx context.Context, projectID uuid.UUID, items []domain.EpisodicItem) (*service.CondenseResult, error)
}

type EpisodeHandler struct {
	projectScope
	svc       *service.EpisodeService
	condenser Condenser
	logger    *zap.Logger
}

func NewEpisodeHandler(projects domain.ProjectStore, svc *service.EpisodeService, condenser Condenser, logger *zap.Logger) *EpisodeHandler {
	return &EpisodeHandler{
		projectScope: projectScope{projects: projects},
		svc:          svc,
		condenser:    condenser,
		logger:       logger,
	}
}

type episodeInput struct {
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"` // RFC3339
}

type ingestRequest struct {
	Items    []episodeInput `json:"items"`
	Condense bool           `json:"condense"`
}

type ingestResponse struct {
	Items    []domain.EpisodicItem   `json:"items"`
	Condense *service.CondenseResult `json:"condense,omitempty"`
}

// Ingest stores a batch of episodic items. With condense set the stored
// batch is condensed in the same request.
func (h *EpisodeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inputs := make([]service.EpisodeInput, 0, len(req.Items))
	for _, it := range req.Items {
		in := service.EpisodeInput{Text: it.Text, Source: it.Source}
		if it.OccurredAt != "" {
			t, err := time.Parse(time.RFC3339, it.OccurredAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid occurred_at format, use RFC3339")
				return
			}
			in.OccurredAt = &t
		}
		inputs = append(inputs, in)
	}

	items, err := h.svc.Ingest(r.Context(), p.ID, inputs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyBatch):
			writeError(w, http.StatusBadRequest, "items are required")
		case errors.Is(err, service.ErrEpisodeTextEmpty):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("ingest failed", zap.String("project_id", p.ID.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to store episodic items")
		}
		return
	}

	resp := ingestResponse{Items: items}
	if req.Condense {
		res, err := h.condenser.Condense(r.Context(), p.ID, items)
		if err != nil {
			writeCondenseError(w, h.logger, err)
			return
		}
		resp.Condense = res
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	items, err := h.svc.ListRecent(r.Context(), p.ID, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list episodic items")
		return
	}
	if items == nil {
		items = []domain.EpisodicItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type CondenseHandler struct {
	projectScope
	episodes  *service.EpisodeService
	condenser Condenser
	logger    *zap.Logger
}

func NewCondenseHandler(projects domain.ProjectStore, episodes *service.EpisodeService, condenser Condenser, logger *zap.Logger) *CondenseHandler {
	return &CondenseHandler{
		projectScope: projectScope{projects: projects},
		episodes:     episodes,
		condenser:    condenser,
		logger:       logger,
	}
}

type condenseRequest struct {
	ItemIDs []string `json:"item_ids"`
	// Recent condenses the most recent items when no ids are given.
	Recent int `json:"recent,omitempty"`
}

// Condense runs the pipeline over stored items.
func (h *CondenseHandler) Condense(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	var req condenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var items []domain.EpisodicItem
	var err error
	if len(req.ItemIDs) > 0 {
		ids := make([]uuid.UUID, 0, len(req.ItemIDs))
		for _, s := range req.ItemIDs {
			id, perr := uuid.Parse(s)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid item id: "+s)
				return
			}
			ids = append(ids, id)
		}
		items, err = h.episodes.GetByIDs(r.Context(), p.ID, ids)
	} else if req.Recent > 0 {
		items, err = h.episodes.ListRecent(r.Context(), p.ID, req.Recent)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load episodic items")
		return
	}

	res, err := h.condenser.Condense(r.Context(), p.ID, items)
	if err != nil {
		writeCondenseError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeCondenseError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var se *service.StageError
	switch {
	case errors.Is(err, service.ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "no episodic items to condense")
	case errors.Is(err, service.ErrProjectMismatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &se):
		logger.Error("condensation aborted", zap.String("stage", string(se.Stage)), zap.Error(se.Err))
		writeError(w, http.StatusInternalServerError, string(se.Stage)+" failed")
	default:
		logger.Error("condensation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "condensation failed")
	}
}
