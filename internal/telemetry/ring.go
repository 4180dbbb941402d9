package telemetry

import "sync"

// #region ring
// Ring is a fixed-size, overwrite-oldest event buffer. It is the only
// structure written from more than one goroutine (capture callbacks and the
// frame loop), so every access goes through a short critical section.
type Ring struct {
	mu      sync.Mutex
	buf     []Event
	next    int
	size    int
	dropped uint64
}

// NewRing creates a ring holding at most capacity events (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Event, capacity)}
}

// Emit stores e, overwriting the oldest entry when full.
func (r *Ring) Emit(e Event) {
	r.mu.Lock()
	if r.size == len(r.buf) {
		r.dropped++
	} else {
		r.size++
	}
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	r.mu.Unlock()
}

// Snapshot returns the buffered events oldest-first without clearing them.
func (r *Ring) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orderedLocked()
}

// Drain returns the buffered events oldest-first and empties the ring.
func (r *Ring) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.orderedLocked()
	r.next = 0
	r.size = 0
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Overwritten returns how many events were lost to overwrite since creation.
func (r *Ring) Overwritten() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Ring) orderedLocked() []Event {
	out := make([]Event, 0, r.size)
	start := (r.next - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
// #endregion ring
