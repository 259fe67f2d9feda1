package topic

import "errors"

// Sentinel kinds for topic errors.
var (
	ErrClosed       = errors.New("topic closed")
	ErrDuplicateID  = errors.New("subscriber id already in use")
	ErrUnsubscribed = errors.New("subscription closed")
)
