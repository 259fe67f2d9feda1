// Package repository holds the leaderboard store.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/pkg/metrics"
)

// Store provides read/write access to the leaderboard.
type Store interface {
	// Insert adds e in rank order and truncates to capacity.
	// Returns the 1-based rank, or 0 if e did not make the cut.
	Insert(ctx context.Context, e model.LeaderboardEntry) (int, error)

	// TopN returns up to n entries in rank order.
	TopN(ctx context.Context, n int) ([]model.LeaderboardEntry, error)

	// All returns every entry in rank order.
	All(ctx context.Context) []model.LeaderboardEntry

	// Count returns the number of entries.
	Count(ctx context.Context) int

	// Reset removes every entry.
	Reset(ctx context.Context)
}

// BoundedStore keeps the best entries in a sorted slice:
// score descending, then elapsed ascending, then insertion order.
type BoundedStore struct {
	mu       sync.RWMutex
	entries  []model.LeaderboardEntry
	capacity int
}

// NewBoundedStore creates an empty leaderboard.
func NewBoundedStore(opts ...Option) *BoundedStore {
	s := &BoundedStore{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(s)
	}
	s.entries = make([]model.LeaderboardEntry, 0, s.capacity+1)
	return s
}

// Capacity returns the maximum number of entries kept.
func (s *BoundedStore) Capacity() int {
	return s.capacity
}

// ranksBelow reports whether a is ranked strictly below b.
func ranksBelow(a, b model.LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ElapsedSeconds > b.ElapsedSeconds
}

func (s *BoundedStore) Insert(_ context.Context, e model.LeaderboardEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First position holding an entry ranked below e; equal entries stay ahead.
	i := sort.Search(len(s.entries), func(i int) bool {
		return ranksBelow(s.entries[i], e)
	})

	s.entries = append(s.entries, model.LeaderboardEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e

	if len(s.entries) > s.capacity {
		s.entries = s.entries[:s.capacity]
	}
	metrics.UpdateLeaderboardSize(len(s.entries))

	if i >= s.capacity {
		return 0, nil
	}
	return i + 1, nil
}

func (s *BoundedStore) TopN(_ context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]model.LeaderboardEntry, n)
	copy(out, s.entries[:n])
	return out, nil
}

func (s *BoundedStore) All(_ context.Context) []model.LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.LeaderboardEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *BoundedStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *BoundedStore) Reset(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:0]
	metrics.UpdateLeaderboardSize(0)
}
