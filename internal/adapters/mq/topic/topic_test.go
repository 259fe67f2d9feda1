package topic

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func recv(t *testing.T, s *Subscription) string {
	t.Helper()
	select {
	case msg, ok := <-s.C():
		if !ok {
			t.Fatalf("subscription %s closed", s.id)
		}
		return string(msg)
	default:
		t.Fatalf("subscription %s has nothing buffered", s.id)
	}
	return ""
}

func TestTopic_FanOut(t *testing.T) {
	ctx := context.Background()
	tp := New(WithBufferSize(4))

	a, err := tp.Subscribe("a")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	b, _ := tp.Subscribe("b")

	if n := tp.Publish(ctx, []byte("one")); n != 2 {
		t.Errorf("expected 2 deliveries, got %d", n)
	}
	tp.Publish(ctx, []byte("two"))

	for _, s := range []*Subscription{a, b} {
		if got := recv(t, s); got != "one" {
			t.Errorf("%s: expected one, got %s", s.id, got)
		}
		if got := recv(t, s); got != "two" {
			t.Errorf("%s: expected two, got %s", s.id, got)
		}
	}

	if tp.Len() != 2 {
		t.Errorf("expected 2 subscribers, got %d", tp.Len())
	}
	if tp.Published() != 2 {
		t.Errorf("expected 2 published, got %d", tp.Published())
	}
}

func TestTopic_DeliverKeepsOrder(t *testing.T) {
	ctx := context.Background()
	tp := New()
	s, _ := tp.Subscribe("s")

	if err := s.Deliver([]byte("snapshot")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	tp.Publish(ctx, []byte("update"))

	if got := recv(t, s); got != "snapshot" {
		t.Errorf("expected snapshot first, got %s", got)
	}
	if got := recv(t, s); got != "update" {
		t.Errorf("expected update second, got %s", got)
	}
}

func TestTopic_EvictsFullSubscriber(t *testing.T) {
	ctx := context.Background()
	tp := New(WithBufferSize(2))
	slow, _ := tp.Subscribe("slow")
	fast, _ := tp.Subscribe("fast")

	for i := 0; i < 3; i++ {
		tp.Publish(ctx, []byte(fmt.Sprintf("m%d", i)))
		<-fast.C()
	}

	if tp.Len() != 1 {
		t.Fatalf("expected slow subscriber evicted, %d left", tp.Len())
	}
	if tp.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", tp.Dropped())
	}

	// Buffered messages are still readable, then the channel reports closed.
	<-slow.C()
	<-slow.C()
	if _, ok := <-slow.C(); ok {
		t.Error("expected evicted channel to be closed")
	}
	if err := slow.Deliver([]byte("late")); !errors.Is(err, ErrUnsubscribed) {
		t.Errorf("expected ErrUnsubscribed, got %v", err)
	}
}

func TestTopic_SubscribeRules(t *testing.T) {
	tp := New()
	s, _ := tp.Subscribe("x")

	if _, err := tp.Subscribe("x"); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	tp.Unsubscribe(s)
	tp.Unsubscribe(s)
	if tp.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", tp.Len())
	}

	if _, err := tp.Subscribe("x"); err != nil {
		t.Errorf("expected id to be reusable after unsubscribe, got %v", err)
	}
}

func TestTopic_Close(t *testing.T) {
	ctx := context.Background()
	tp := New()
	s, _ := tp.Subscribe("s")

	if err := tp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tp.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !tp.IsClosed() {
		t.Error("expected topic closed")
	}
	if _, ok := <-s.C(); ok {
		t.Error("expected subscriber channel closed")
	}
	if n := tp.Publish(ctx, []byte("x")); n != 0 {
		t.Errorf("expected no deliveries after close, got %d", n)
	}
	if _, err := tp.Subscribe("t"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestTopic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tp := New()
	s, _ := tp.Subscribe("s")
	if n := tp.Publish(ctx, []byte("x")); n != 0 {
		t.Errorf("expected no deliveries, got %d", n)
	}
	select {
	case <-s.C():
		t.Error("nothing should be delivered")
	default:
	}
}
