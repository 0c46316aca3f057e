package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/service"
)

// DecayRunner triggers one decay pass outside the ticker.
type DecayRunner interface {
	RunOnce(ctx context.Context) (int64, error)
}

type GraphHandler struct {
	projectScope
	entities   domain.EntityStore
	assertions domain.AssertionStore
	policies   domain.PolicyStore
	graph      *service.CognitiveGraphService
	decay      DecayRunner
	logger     *zap.Logger
}

func NewGraphHandler(
	projects domain.ProjectStore,
	entities domain.EntityStore,
	assertions domain.AssertionStore,
	policies domain.PolicyStore,
	graph *service.CognitiveGraphService,
	decay DecayRunner,
	logger *zap.Logger,
) *GraphHandler {
	return &GraphHandler{
		projectScope: projectScope{projects: projects},
		entities:     entities,
		assertions:   assertions,
		policies:     policies,
		graph:        graph,
		decay:        decay,
		logger:       logger,
	}
}

func (h *GraphHandler) Entities(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}
	entities, err := h.entities.GetByProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	if entities == nil {
		entities = []domain.Entity{}
	}
	writeJSON(w, http.StatusOK, entities)
}

// Assertions lists assertions, optionally filtered by ?subject= and ?status=.
func (h *GraphHandler) Assertions(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !domain.ValidAssertionStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	list, err := h.assertions.List(r.Context(), p.ID, domain.AssertionFilter{
		Subject: r.URL.Query().Get("subject"),
		Status:  domain.AssertionStatus(status),
		Limit:   queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assertions")
		return
	}
	if list == nil {
		list = []domain.Assertion{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *GraphHandler) Policies(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}
	policies, err := h.policies.GetByProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list policies")
		return
	}
	if policies == nil {
		policies = []domain.Policy{}
	}
	writeJSON(w, http.StatusOK, policies)
}

type activateRequest struct {
	Seeds       []uuid.UUID `json:"seeds"`
	Steps       *int        `json:"steps,omitempty"`
	DecayFactor *float64    `json:"decay_factor,omitempty"`
}

type activateResponse struct {
	Activated []uuid.UUID `json:"activated"`
	Count     int         `json:"count"`
}

func (h *GraphHandler) Activate(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Seeds) == 0 {
		writeError(w, http.StatusBadRequest, "seeds are required")
		return
	}

	steps := service.DefaultActivationSteps
	if req.Steps != nil {
		steps = *req.Steps
	}
	factor := service.DefaultDecayFactor
	if req.DecayFactor != nil {
		factor = *req.DecayFactor
	}

	activated, err := h.graph.SpreadingActivation(r.Context(), p.ID, req.Seeds, factor, steps)
	if err != nil {
		h.logger.Error("spreading activation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "activation failed")
		return
	}

	ids := make([]uuid.UUID, 0, len(activated))
	for id := range activated {
		ids = append(ids, id)
	}
	writeJSON(w, http.StatusOK, activateResponse{Activated: ids, Count: len(ids)})
}

type hebbianRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// Hebbian reinforces the graph around items retrieved together.
func (h *GraphHandler) Hebbian(w http.ResponseWriter, r *http.Request) {
	p := h.project(w, r)
	if p == nil {
		return
	}

	var req hebbianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.graph.ReinforceCoRetrieval(r.Context(), p.ID, req.IDs)
	if err != nil {
		h.logger.Error("hebbian update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "hebbian update failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *GraphHandler) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	n, err := h.decay.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "decay failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"relations_decayed": n})
}
