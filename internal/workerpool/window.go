package workerpool

import "time"

// window is a fixed-capacity ring of recent durations.
type window struct {
	buf  []time.Duration
	next int
	full bool
}

func newWindow(size int) *window {
	return &window{buf: make([]time.Duration, size)}
}

func (w *window) add(d time.Duration) {
	w.buf[w.next] = d
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
}

func (w *window) len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

func (w *window) sum() time.Duration {
	var s time.Duration
	for i := 0; i < w.len(); i++ {
		s += w.buf[i]
	}
	return s
}
