package metrics

// ring is a fixed-capacity ring buffer of float64 samples.
type ring struct {
	buf   []float64
	head  int // index of the oldest element
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

// Push appends v, evicting and returning the oldest value when full.
func (r *ring) Push(v float64) (evicted float64, full bool) {
	if r.count == len(r.buf) {
		evicted = r.buf[r.head]
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return evicted, true
	}
	r.buf[(r.head+r.count)%len(r.buf)] = v
	r.count++
	return 0, false
}

// Len returns the number of stored samples.
func (r *ring) Len() int { return r.count }

// FromNewest returns the value k positions before the newest sample
// (k=0 is the newest). The caller must ensure k < Len().
func (r *ring) FromNewest(k int) float64 {
	idx := (r.head + r.count - 1 - k) % len(r.buf)
	if idx < 0 {
		idx += len(r.buf)
	}
	return r.buf[idx]
}
