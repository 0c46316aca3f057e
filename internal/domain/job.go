package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobError   JobStatus = "error"
	JobSkipped JobStatus = "skipped"
)

type JobEvent struct {
	JobID      uuid.UUID     `json:"job_id"`
	Name       string        `json:"name"`
	Status     JobStatus     `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// ObservabilitySink receives job lifecycle events. Emit must not block.
type ObservabilitySink interface {
	Emit(ev JobEvent)
}

// JobTracker emits a running event on creation and a terminal event on Finish.
type JobTracker struct {
	sink  ObservabilitySink
	event JobEvent
}

func StartJob(sink ObservabilitySink, name string) *JobTracker {
	jt := &JobTracker{
		sink: sink,
		event: JobEvent{
			JobID:     uuid.New(),
			Name:      name,
			Status:    JobRunning,
			StartedAt: time.Now().UTC(),
		},
	}
	if sink != nil {
		sink.Emit(jt.event)
	}
	return jt
}

func (jt *JobTracker) ID() uuid.UUID {
	return jt.event.JobID
}

// Finish records success when err is nil and error otherwise.
func (jt *JobTracker) Finish(err error) {
	if err != nil {
		jt.finish(JobError, err.Error())
		return
	}
	jt.finish(JobSuccess, "")
}

func (jt *JobTracker) Skip(reason string) {
	jt.finish(JobSkipped, reason)
}

func (jt *JobTracker) finish(status JobStatus, msg string) {
	now := time.Now().UTC()
	jt.event.Status = status
	jt.event.FinishedAt = &now
	jt.event.Duration = now.Sub(jt.event.StartedAt)
	jt.event.Error = msg
	if jt.sink != nil {
		jt.sink.Emit(jt.event)
	}
}
