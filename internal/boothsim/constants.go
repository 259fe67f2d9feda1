package boothsim

import "time"

// Defaults applied by Run when a field is left zero.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultScanDelay = 200 * time.Millisecond
)

// Watcher configuration constants.
const (
	watchSettle = 500 * time.Millisecond
)

// File permission constants.
const (
	logFilePermission   = 0600
	directoryPermission = 0750
)
