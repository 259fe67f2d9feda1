package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrLimit      = errors.New("limit must be between 1 and the leaderboard size")
	ErrUnknownTag = errors.New("unknown tag")
	ErrQREncode   = errors.New("qr encode failed")
	ErrNoDecision = errors.New("no decision pending")
)
