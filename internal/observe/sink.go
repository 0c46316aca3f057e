// Package observe collects job lifecycle events for logging and the jobs API.
package observe

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

const (
	DefaultBuffer = 256
	DefaultRecent = 200
)

var (
	jobEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "condensate_job_events_total",
		Help: "Job lifecycle events by job name and status",
	}, []string{"name", "status"})

	jobEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "condensate_job_events_dropped_total",
		Help: "Job events dropped because the sink buffer was full",
	})
)

// Sink is a non-blocking domain.ObservabilitySink. Events go through a
// bounded channel; a consumer goroutine logs them and keeps the most recent
// ones in memory. A later event for the same job replaces the earlier one;
// events without a job id are kept individually.
type Sink struct {
	events  chan domain.JobEvent
	logger  *zap.Logger
	dropped atomic.Int64

	mu     sync.RWMutex
	recent []domain.JobEvent
	limit  int

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSink(buffer, recent int, logger *zap.Logger) *Sink {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if recent <= 0 {
		recent = DefaultRecent
	}
	return &Sink{
		events: make(chan domain.JobEvent, buffer),
		logger: logger,
		limit:  recent,
		stopCh: make(chan struct{}),
	}
}

func (s *Sink) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop drains buffered events and waits for the consumer to exit.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Emit never blocks. A full buffer drops the event.
func (s *Sink) Emit(ev domain.JobEvent) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
		jobEventsDropped.Inc()
	}
}

// Dropped is the number of events lost to a full buffer.
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Recent returns up to n events, newest first.
func (s *Sink) Recent(n int) []domain.JobEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]domain.JobEvent, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out
}

func (s *Sink) run() {
	defer s.wg.Done()
	for {
		select {
		case ev := <-s.events:
			s.record(ev)
		case <-s.stopCh:
			for {
				select {
				case ev := <-s.events:
					s.record(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) record(ev domain.JobEvent) {
	jobEventsTotal.WithLabelValues(ev.Name, string(ev.Status)).Inc()
	s.log(ev)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.JobID != uuid.Nil {
		for i := range s.recent {
			if s.recent[i].JobID == ev.JobID {
				s.recent = append(s.recent[:i], s.recent[i+1:]...)
				break
			}
		}
	}
	s.recent = append(s.recent, ev)
	if len(s.recent) > s.limit {
		s.recent = s.recent[len(s.recent)-s.limit:]
	}
}

func (s *Sink) log(ev domain.JobEvent) {
	fields := []zap.Field{
		zap.String("job_id", ev.JobID.String()),
		zap.String("job", ev.Name),
		zap.String("status", string(ev.Status)),
	}
	switch ev.Status {
	case domain.JobRunning:
		s.logger.Debug("job started", fields...)
	case domain.JobError:
		s.logger.Error("job failed", append(fields, zap.Duration("duration", ev.Duration), zap.String("error", ev.Error))...)
	default:
		s.logger.Info("job finished", append(fields, zap.Duration("duration", ev.Duration))...)
	}
}
