package repository

const defaultCapacity = 20

// Option applies a configuration option to the BoundedStore.
type Option func(*BoundedStore)

// WithCapacity sets how many entries the leaderboard keeps.
func WithCapacity(capacity int) Option {
	return func(s *BoundedStore) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}
