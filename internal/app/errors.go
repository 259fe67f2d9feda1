package service

import (
	"errors"

	"github.com/okian/triagebooth/internal/domain/types"
)

// Sentinel kinds for engine errors. None of them change engine state.
var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrNoActiveSession  = errors.New("no active session")
	ErrAlreadyScanned   = errors.New("vital already scanned")
	ErrUnknownVital     = errors.New("unknown vital")
)

// Texts shown to the client that caused an error.
const (
	textNotRecognised    = "Tag received but not recognised. Make sure this tag filename includes head, chest, abdomen, arms or legs."
	textNotInScenario    = "Body part not valid for this scenario."
	textNoActiveSession  = "No active session. Start a scenario on the big screen first."
	textScenarioNotFound = "Invalid scenario"
	textAlreadyScanned   = "This vital was already scanned."
	textMalformed        = "Message could not be read."
	textInternal         = "Something went wrong."
)

// ScanError is a rejected scan with the text shown to the scanner.
type ScanError struct {
	Kind error
	Text string
}

func (e *ScanError) Error() string { return e.Kind.Error() + ": " + e.Text }

func (e *ScanError) Unwrap() error { return e.Kind }

// Describe maps err to the text and code sent back to the requester.
func Describe(err error) (text, code string) {
	var se *ScanError
	switch {
	case errors.As(err, &se):
		_, code = Describe(se.Kind)
		return se.Text, code
	case errors.Is(err, ErrScenarioNotFound):
		return textScenarioNotFound, types.CodeScenarioNotFound
	case errors.Is(err, ErrNoActiveSession):
		return textNoActiveSession, types.CodeNoActiveSession
	case errors.Is(err, ErrAlreadyScanned):
		return textAlreadyScanned, types.CodeAlreadyScanned
	case errors.Is(err, ErrUnknownVital):
		return textNotRecognised, types.CodeUnknownVital
	case errors.Is(err, types.ErrMalformed):
		return textMalformed, types.CodeMalformed
	default:
		return textInternal, types.CodeInternal
	}
}
