// Package dedupe tracks recently seen client message IDs so a re-sent message
// is applied at most once.
package dedupe

import (
	"sync"
)

const defaultMaxSize = 1024

// Deduper records seen message IDs.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(id string) bool

	// Forget removes id so a later message with the same id is accepted again.
	Forget(id string)

	Size() int
}

// window is a Deduper over a fixed-size ring of the most recent IDs.
// The oldest ID is evicted once the ring is full.
type window struct {
	mu      sync.Mutex
	seen    map[string]int // id -> slot in ring
	ring    []string
	next    int
	size    int
	maxSize int
}

// New creates a bounded in-memory deduper.
func New(opts ...Option) Deduper {
	w := &window{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(w)
	}
	if w.maxSize <= 0 {
		w.maxSize = defaultMaxSize
	}
	w.seen = make(map[string]int, w.maxSize)
	w.ring = make([]string, w.maxSize)
	return w
}

func (w *window) SeenAndRecord(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}

	if w.size == w.maxSize {
		old := w.ring[w.next]
		if slot, ok := w.seen[old]; ok && slot == w.next {
			delete(w.seen, old)
		}
	} else {
		w.size++
	}
	w.ring[w.next] = id
	w.seen[id] = w.next
	w.next = (w.next + 1) % w.maxSize
	return false
}

func (w *window) Forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// The slot stays occupied until it is overwritten; only the lookup is dropped.
	delete(w.seen, id)
}

func (w *window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
