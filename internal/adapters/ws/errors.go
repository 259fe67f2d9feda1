package ws

import "errors"

// ErrClosed is returned to clients that connect after the relay was closed.
var ErrClosed = errors.New("relay closed")
