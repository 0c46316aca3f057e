package workerpool

import "context"

type submitOptions struct {
	priority int
}

type SubmitOption func(*submitOptions)

// WithPriority attaches a scheduling hint. Lower is more urgent. The pool
// keeps FIFO order and does not pre-empt.
func WithPriority(p int) SubmitOption {
	return func(o *submitOptions) { o.priority = p }
}

// Handle is the pending result of a submitted task.
type Handle struct {
	Category string
	Priority int

	done   chan struct{}
	result any
	err    error
}

func newHandle(category string, priority int) *Handle {
	return &Handle{Category: category, Priority: priority, done: make(chan struct{})}
}

func (h *Handle) complete(res any, err error) {
	h.result = res
	h.err = err
	close(h.done)
}

// Done is closed once the task has finished.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await waits for h and asserts its result to T.
func Await[T any](ctx context.Context, h *Handle) (T, error) {
	var zero T
	res, err := h.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errUnexpectedResult
	}
	return v, nil
}
