package topic

// Option applies a configuration option to the Topic.
type Option func(*Topic)

// WithBufferSize sets the per-subscriber send buffer.
func WithBufferSize(size int) Option {
	return func(t *Topic) {
		if size > 0 {
			t.bufferSize = size
		}
	}
}
