package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Harshitk-cp/condensate/internal/api/middleware"
	"github.com/Harshitk-cp/condensate/internal/domain"
	"github.com/Harshitk-cp/condensate/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, name string) float64 {
	f, _ := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	return f
}

// projectScope resolves the {projectID} URL parameter against the
// authenticated tenant.
type projectScope struct {
	projects domain.ProjectStore
}

// project writes the error response itself and returns nil when the request
// has no accessible project.
func (s projectScope) project(w http.ResponseWriter, r *http.Request) *domain.Project {
	tenant := middleware.TenantFromContext(r.Context())
	if tenant == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}

	id, err := parseUUIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return nil
	}

	p, err := s.projects.GetByID(r.Context(), id, tenant.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return nil
		}
		writeError(w, http.StatusInternalServerError, "failed to load project")
		return nil
	}
	return p
}
