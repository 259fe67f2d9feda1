package boothsim

import "errors"

// Sentinel errors returned by the simulator.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrRejected         = errors.New("request rejected")
	ErrNoScenarios      = errors.New("booth has no scenarios")
	ErrVerify           = errors.New("verification failed")
)
