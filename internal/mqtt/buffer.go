package mqtt

// outgoing is a serialized message waiting for the broker.
type outgoing struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ring holds the most recent values up to a fixed capacity, discarding the
// oldest on overflow. The caller synchronizes.
type ring[T any] struct {
	items   []T
	start   int // oldest entry
	n       int
	dropped int // since last take
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, max(capacity, 1))}
}

func (r *ring[T]) limit() int { return len(r.items) }

func (r *ring[T]) size() int { return r.n }

// add stores v and reports whether this was the first value dropped since
// the last take.
func (r *ring[T]) add(v T) (firstDrop bool) {
	if r.n < len(r.items) {
		r.items[(r.start+r.n)%len(r.items)] = v
		r.n++
		return false
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % len(r.items)
	r.dropped++
	return r.dropped == 1
}

// take empties the ring, returning its values oldest first and how many
// were discarded since the previous take.
func (r *ring[T]) take() (values []T, dropped int) {
	if r.n > 0 {
		values = make([]T, 0, r.n)
		for i := 0; i < r.n; i++ {
			values = append(values, r.items[(r.start+i)%len(r.items)])
		}
	}
	dropped = r.dropped
	clear(r.items)
	r.start, r.n, r.dropped = 0, 0, 0
	return values, dropped
}
