package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/domain"
)

const (
	defaultDecayInterval = 24 * time.Hour
	decayJobName         = "graph.decay"
)

// DecayWorker runs ApplyActivationDecay on a ticker.
type DecayWorker struct {
	graph  *CognitiveGraphService
	sink   domain.ObservabilitySink
	logger *zap.Logger

	rate     float64
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDecayWorker(graph *CognitiveGraphService, sink domain.ObservabilitySink, logger *zap.Logger) *DecayWorker {
	return &DecayWorker{
		graph:    graph,
		sink:     sink,
		logger:   logger,
		rate:     DefaultDecayRate,
		interval: defaultDecayInterval,
		stopCh:   make(chan struct{}),
	}
}

func (w *DecayWorker) SetInterval(d time.Duration) {
	w.interval = d
}

func (w *DecayWorker) SetRate(rate float64) {
	w.rate = rate
}

func (w *DecayWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("decay worker started",
			zap.Duration("interval", w.interval),
			zap.Float64("rate", w.rate))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				_, _ = w.RunOnce(ctx)
				cancel()
			case <-w.stopCh:
				w.logger.Info("decay worker stopped")
				return
			}
		}
	}()
}

func (w *DecayWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// RunOnce applies one decay pass and reports it as a graph.decay job.
func (w *DecayWorker) RunOnce(ctx context.Context) (int64, error) {
	job := domain.StartJob(w.sink, decayJobName)

	n, err := w.graph.ApplyActivationDecay(ctx, w.rate)
	if err != nil {
		w.logger.Error("decay run failed", zap.Error(err))
		job.Finish(err)
		return 0, err
	}

	if n == 0 {
		job.Skip("no relations to decay")
	} else {
		job.Finish(nil)
	}
	w.logger.Info("decay run complete", zap.Int64("relations_decayed", n))
	return n, nil
}
