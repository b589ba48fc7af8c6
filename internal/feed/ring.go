package feed

import "time"

// ring keeps the most recent entries of a chat. When full, the oldest entry
// is overwritten.
type ring struct {
	buf  []Entry
	head int
	full bool
	// touched is the last time the chat published or was watched.
	touched time.Time
}

func newRing(size int) *ring {
	if size <= 0 {
		size = DefaultBacklog
	}
	return &ring{buf: make([]Entry, size)}
}

func (r *ring) push(e Entry) {
	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.head == 0 {
		r.full = true
	}
}

// entries returns the buffered entries, oldest first.
func (r *ring) entries() []Entry {
	if !r.full {
		out := make([]Entry, r.head)
		copy(out, r.buf[:r.head])
		return out
	}
	out := make([]Entry, 0, len(r.buf))
	out = append(out, r.buf[r.head:]...)
	return append(out, r.buf[:r.head]...)
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.head
}
