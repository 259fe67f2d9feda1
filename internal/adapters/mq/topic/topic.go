// Package topic is an in-memory publish/subscribe fan-out.
//
// Every subscriber owns one buffered channel, so messages reach each
// subscriber in publish order. Publishing never blocks: a subscriber whose
// buffer is full is evicted and its channel closed.
package topic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/triagebooth/pkg/metrics"
)

const defaultBufferSize = 64

// Topic fans messages out to subscribers.
type Topic struct {
	mu         sync.Mutex
	subs       map[string]*Subscription
	bufferSize int
	closed     bool

	published atomic.Int64
	dropped   atomic.Int64
}

// Subscription is one subscriber's view of the topic.
type Subscription struct {
	id     string
	ch     chan []byte
	topic  *Topic
	closed bool // guarded by topic.mu
}

// New creates a topic.
func New(opts ...Option) *Topic {
	t := &Topic{
		subs:       make(map[string]*Subscription),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	metrics.UpdateTopicSubscribers(0)
	return t
}

// Subscribe registers a subscriber under id.
func (t *Topic) Subscribe(id string) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, ok := t.subs[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	s := &Subscription{
		id:    id,
		ch:    make(chan []byte, t.bufferSize),
		topic: t,
	}
	t.subs[id] = s
	metrics.UpdateTopicSubscribers(len(t.subs))
	return s, nil
}

// Unsubscribe removes s and closes its channel. It is safe to call more than once.
func (t *Topic) Unsubscribe(s *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(s)
}

func (t *Topic) removeLocked(s *Subscription) {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	if cur, ok := t.subs[s.id]; ok && cur == s {
		delete(t.subs, s.id)
	}
	metrics.UpdateTopicSubscribers(len(t.subs))
}

// sendLocked hands msg to s without blocking; a full subscriber is evicted.
func (t *Topic) sendLocked(s *Subscription, msg []byte) bool {
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		metrics.RecordRelayMessage("out")
		return true
	default:
		t.dropped.Add(1)
		metrics.RecordRelayDrop()
		metrics.RecordErrorByComponent("topic", "subscriber_full")
		t.removeLocked(s)
		return false
	}
}

// Publish delivers msg to every subscriber and returns how many received it.
func (t *Topic) Publish(ctx context.Context, msg []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		metrics.RecordErrorByComponent("topic", "closed")
		return 0
	}
	if ctx != nil && ctx.Err() != nil {
		metrics.RecordErrorByComponent("topic", "context_cancelled")
		return 0
	}

	t.published.Add(1)
	delivered := 0
	for _, s := range t.subs {
		if t.sendLocked(s, msg) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of subscribers.
func (t *Topic) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Published returns the number of messages published.
func (t *Topic) Published() int64 {
	return t.published.Load()
}

// Dropped returns the number of subscribers evicted for a full buffer.
func (t *Topic) Dropped() int64 {
	return t.dropped.Load()
}

// Close evicts every subscriber. Later publishes are discarded.
func (t *Topic) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	for _, s := range t.subs {
		t.removeLocked(s)
	}
	return nil
}

// IsClosed reports whether the topic has been closed.
func (t *Topic) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// C returns the channel the subscriber reads from. It is closed on eviction,
// unsubscribe, or topic close.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Deliver sends msg to this subscriber only, in order with published messages.
func (s *Subscription) Deliver(msg []byte) error {
	s.topic.mu.Lock()
	defer s.topic.mu.Unlock()

	if s.closed {
		return ErrUnsubscribed
	}
	if !s.topic.sendLocked(s, msg) {
		return ErrUnsubscribed
	}
	return nil
}
