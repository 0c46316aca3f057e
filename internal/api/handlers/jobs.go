package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

// JobLog exposes recently observed job events.
type JobLog interface {
	Recent(n int) []domain.JobEvent
	Dropped() int64
}

type JobsHandler struct {
	log JobLog
}

func NewJobsHandler(log JobLog) *JobsHandler {
	return &JobsHandler{log: log}
}

type jobsResponse struct {
	Jobs    []domain.JobEvent `json:"jobs"`
	Dropped int64             `json:"dropped"`
}

func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jobsResponse{
		Jobs:    h.log.Recent(queryInt(r, "limit", 50)),
		Dropped: h.log.Dropped(),
	})
}
