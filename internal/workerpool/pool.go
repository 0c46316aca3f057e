// Package workerpool runs CPU-bound units of work on a set of goroutines
// whose size follows observed task latency.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed   = errors.New("workerpool: pool is closed")
	ErrTaskPanicked = errors.New("workerpool: task panicked")

	errUnexpectedResult = errors.New("workerpool: unexpected result type")
)

// Task is a unit of work. Its result is delivered through the Handle
// returned by Submit.
type Task func(ctx context.Context) (any, error)

type Options struct {
	Name            string
	InitialWorkers  int
	MinWorkers      int
	MaxWorkers      int
	GrowStep        int
	HighWater       time.Duration
	LowWater        time.Duration
	WindowSize      int
	MonitorInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Name:            "default",
		InitialWorkers:  4,
		MinWorkers:      2,
		MaxWorkers:      16,
		GrowStep:        2,
		HighWater:       500 * time.Millisecond,
		LowWater:        100 * time.Millisecond,
		WindowSize:      100,
		MonitorInterval: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Name == "" {
		o.Name = d.Name
	}
	if o.MinWorkers <= 0 {
		o.MinWorkers = d.MinWorkers
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = d.MaxWorkers
	}
	if o.MaxWorkers < o.MinWorkers {
		o.MaxWorkers = o.MinWorkers
	}
	if o.InitialWorkers <= 0 {
		o.InitialWorkers = d.InitialWorkers
	}
	o.InitialWorkers = clamp(o.InitialWorkers, o.MinWorkers, o.MaxWorkers)
	if o.GrowStep <= 0 {
		o.GrowStep = d.GrowStep
	}
	if o.HighWater <= 0 {
		o.HighWater = d.HighWater
	}
	if o.LowWater <= 0 {
		o.LowWater = d.LowWater
	}
	if o.WindowSize <= 0 {
		o.WindowSize = d.WindowSize
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = d.MonitorInterval
	}
	return o
}

type job struct {
	ctx      context.Context
	category string
	fn       Task
	handle   *Handle
}

// Pool is an adaptive worker pool. All workers pull from one FIFO queue, so
// changing the worker count never loses or duplicates queued work.
type Pool struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*job
	target   int
	live     int
	inFlight int
	closed   bool
	windows  map[string]*window

	wg        sync.WaitGroup
	stopCh    chan struct{}
	monitorWg sync.WaitGroup
	drained   chan struct{}
	closeOnce sync.Once
}

func New(opts Options, logger *zap.Logger) *Pool {
	opts = opts.withDefaults()
	p := &Pool{
		opts:    opts,
		logger:  logger.With(zap.String("pool", opts.Name)),
		windows: make(map[string]*window),
		stopCh:  make(chan struct{}),
		drained: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	p.resizeLocked(opts.InitialWorkers)
	p.mu.Unlock()

	p.monitorWg.Add(1)
	go p.monitor()

	p.logger.Info("worker pool started",
		zap.Int("workers", opts.InitialWorkers),
		zap.Int("min", opts.MinWorkers),
		zap.Int("max", opts.MaxWorkers))
	return p
}

// Submit enqueues fn and returns immediately. The queue is unbounded: a busy
// pool delays work, it never rejects it. Priority is recorded but ordering is FIFO.
func (p *Pool) Submit(ctx context.Context, category string, fn Task, opts ...SubmitOption) (*Handle, error) {
	so := submitOptions{}
	for _, o := range opts {
		o(&so)
	}

	h := newHandle(category, so.priority)
	j := &job{ctx: ctx, category: category, fn: fn, handle: h}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.queue = append(p.queue, j)
	depth := len(p.queue)
	p.cond.Signal()
	p.mu.Unlock()

	poolQueueDepth.WithLabelValues(p.opts.Name).Set(float64(depth))
	return h, nil
}

// Resize sets the worker count, clamped to [MinWorkers, MaxWorkers].
// Surplus workers exit after finishing their current task.
func (p *Pool) Resize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.resizeLocked(n)
}

func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

type Stats struct {
	Workers  int                      `json:"workers"`
	Queued   int                      `json:"queued"`
	InFlight int                      `json:"in_flight"`
	Means    map[string]time.Duration `json:"means"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	means := make(map[string]time.Duration, len(p.windows))
	for cat, w := range p.windows {
		if n := w.len(); n > 0 {
			means[cat] = w.sum() / time.Duration(n)
		}
	}
	return Stats{
		Workers:  p.target,
		Queued:   len(p.queue),
		InFlight: p.inFlight,
		Means:    means,
	}
}

// Shutdown stops intake and waits until every queued and running task has
// finished, or ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()

		close(p.stopCh)
		go func() {
			p.monitorWg.Wait()
			p.wg.Wait()
			close(p.drained)
			p.logger.Info("worker pool stopped")
		}()
	})

	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) resizeLocked(n int) {
	n = clamp(n, p.opts.MinWorkers, p.opts.MaxWorkers)
	p.target = n
	for p.live < p.target {
		p.live++
		p.wg.Add(1)
		go p.worker()
	}
	// Wake idle workers so any surplus can exit.
	p.cond.Broadcast()
	poolWorkers.WithLabelValues(p.opts.Name).Set(float64(n))
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed && p.live <= p.target {
			p.cond.Wait()
		}
		if p.live > p.target || (len(p.queue) == 0 && p.closed) {
			p.live--
			p.mu.Unlock()
			return
		}
		j := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.inFlight++
		depth := len(p.queue)
		p.mu.Unlock()

		poolQueueDepth.WithLabelValues(p.opts.Name).Set(float64(depth))
		p.run(j)
	}
}

func (p *Pool) run(j *job) {
	start := time.Now()
	res, executed, err := p.execute(j)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.inFlight--
	if executed {
		w, ok := p.windows[j.category]
		if !ok {
			w = newWindow(p.opts.WindowSize)
			p.windows[j.category] = w
		}
		w.add(elapsed)
	}
	p.mu.Unlock()

	if executed {
		poolTaskDuration.WithLabelValues(p.opts.Name, j.category).Observe(elapsed.Seconds())
	}
	if err != nil {
		poolTaskErrors.WithLabelValues(p.opts.Name, j.category).Inc()
	}
	j.handle.complete(res, err)
}

func (p *Pool) execute(j *job) (res any, executed bool, err error) {
	if cerr := j.ctx.Err(); cerr != nil {
		return nil, false, cerr
	}
	executed = true
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.String("category", j.category),
				zap.Any("panic", r))
			res, err = nil, fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	res, err = j.fn(j.ctx)
	return res, executed, err
}

func (p *Pool) monitor() {
	defer p.monitorWg.Done()
	ticker := time.NewTicker(p.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.adjust()
		case <-p.stopCh:
			return
		}
	}
}

// adjust applies one monitor step using the mean over every category window.
func (p *Pool) adjust() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	var total time.Duration
	var samples int
	for _, w := range p.windows {
		total += w.sum()
		samples += w.len()
	}
	if samples == 0 {
		return
	}
	mean := total / time.Duration(samples)

	switch {
	case mean > p.opts.HighWater && p.target < p.opts.MaxWorkers:
		next := min(p.target+p.opts.GrowStep, p.opts.MaxWorkers)
		p.logger.Info("growing worker pool",
			zap.Int("from", p.target), zap.Int("to", next), zap.Duration("mean", mean))
		p.resizeLocked(next)
		poolResizes.WithLabelValues(p.opts.Name, "grow").Inc()
	case mean < p.opts.LowWater && p.target > p.opts.MinWorkers:
		next := max(p.target-1, p.opts.MinWorkers)
		p.logger.Debug("shrinking worker pool",
			zap.Int("from", p.target), zap.Int("to", next), zap.Duration("mean", mean))
		p.resizeLocked(next)
		poolResizes.WithLabelValues(p.opts.Name, "shrink").Inc()
	}
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
