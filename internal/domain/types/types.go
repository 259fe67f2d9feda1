// Package types holds the wire envelope and event payloads shared by the relay,
// the engine and the REST facade.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports an inbound message that is not a valid envelope.
var ErrMalformed = errors.New("malformed message")

// Inbound event types.
const (
	TypeRegisterPlayer      = "registerPlayer"
	TypeStart               = "start"
	TypeSetOperator         = "setOperator"
	TypeScanVital           = "scanVital"
	TypeSubmitDecision      = "submitDecision"
	TypeSubmitHumanDecision = "submitHumanDecision"
	TypeResetGame           = "resetGame"
	TypeResetSimulation     = "resetSimulation"
	TypeResetLeaderboard    = "resetLeaderboard"
)

// Outbound event types.
const (
	TypeStateUpdate        = "stateUpdate"
	TypeGameRegistered     = "gameRegistered"
	TypeVitalScanned       = "vitalScanned"
	TypeAllVitalsCollected = "allVitalsCollected"
	TypeResultsReady       = "resultsReady"
	TypeErrorMessage       = "errorMessage"
)

// Error codes carried by errorMessage.
const (
	CodeScenarioNotFound = "scenario_not_found"
	CodeNoActiveSession  = "no_active_session"
	CodeAlreadyScanned   = "already_scanned"
	CodeUnknownVital     = "unknown_vital"
	CodeMalformed        = "malformed"
	CodeUnknownType      = "unknown_type"
	CodeInternal         = "internal"
)

// Envelope is the JSON frame exchanged over the websocket.
type Envelope struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode frames data as an event of type eventType.
func Encode(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, Data: raw})
}

// Decode parses an inbound frame.
func Decode(msg []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}

// Bind decodes the envelope data into v. Empty data leaves v untouched.
func (e Envelope) Bind(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrMalformed, e.Type, err)
	}
	return nil
}
