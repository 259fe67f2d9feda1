package types

import (
	"time"

	"github.com/okian/triagebooth/internal/domain/model"
)

// StartPayload starts a session. Operator fields fall back to the sender's
// remembered operator when empty.
type StartPayload struct {
	ScenarioID   string `json:"scenarioId"`
	OperatorName string `json:"operatorName,omitempty"`
	Name         string `json:"name,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// Operator returns the name and mode given in the payload, if any.
func (p StartPayload) Operator() (name, mode string) {
	name = p.OperatorName
	if name == "" {
		name = p.Name
	}
	return name, p.Mode
}

// OperatorPayload sets the operator on the sending device.
type OperatorPayload struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// ScanPayload carries one scan. Any field may hold a vital key or a tag.
type ScanPayload struct {
	VitalKey string           `json:"vitalKey,omitempty"`
	QRData   string           `json:"qrData,omitempty"`
	Payload  string           `json:"payload,omitempty"`
	Operator *OperatorPayload `json:"operator,omitempty"`
}

// Raw returns the first scan field set: vitalKey, qrData, then payload.
func (p ScanPayload) Raw() string {
	switch {
	case p.VitalKey != "":
		return p.VitalKey
	case p.QRData != "":
		return p.QRData
	}
	return p.Payload
}

// DecisionPayload is a human decision. "hospital" and "tests" are accepted as
// aliases for the older booth screen.
type DecisionPayload struct {
	Triage     string   `json:"triage"`
	HospitalID string   `json:"hospitalId,omitempty"`
	Hospital   string   `json:"hospital,omitempty"`
	TestIDs    []string `json:"testIds,omitempty"`
	Tests      []string `json:"tests,omitempty"`
	Treatment  string   `json:"treatment,omitempty"`
}

// Decision coerces the payload into a model decision. An unknown triage is
// kept empty and simply scores no triage points.
func (p DecisionPayload) Decision() model.Decision {
	tr, _ := model.ParseTriage(p.Triage)
	d := model.Decision{
		Triage:     tr,
		HospitalID: p.HospitalID,
		TestIDs:    p.TestIDs,
		Treatment:  p.Treatment,
	}
	if d.HospitalID == "" {
		d.HospitalID = p.Hospital
	}
	if d.TestIDs == nil {
		d.TestIDs = p.Tests
	}
	if d.TestIDs == nil {
		d.TestIDs = []string{}
	}
	return d
}

// LeaderboardRow is a leaderboard entry as displayed.
type LeaderboardRow struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"displayName"`
	model.LeaderboardEntry
}

// Rows ranks entries for display.
func Rows(entries []model.LeaderboardEntry) []LeaderboardRow {
	rows := make([]LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = LeaderboardRow{Rank: i + 1, DisplayName: e.DisplayName(), LeaderboardEntry: e}
	}
	return rows
}

// StatePayload is the full snapshot sent on join and after every change.
type StatePayload struct {
	Session      *model.Session   `json:"session"`
	Leaderboard  []LeaderboardRow `json:"leaderboard"`
	Scenarios    []model.Scenario `json:"scenarios"`
	TimerSeconds int              `json:"timerSeconds"`
}

// GameRegisteredPayload announces a new session.
type GameRegisteredPayload struct {
	Session *model.Session `json:"session"`
}

// VitalScannedPayload reveals one vital.
type VitalScannedPayload struct {
	Key        model.VitalKey `json:"key"`
	Label      string         `json:"label"`
	VitalLabel string         `json:"vitalLabel"`
	Value      string         `json:"value"`
	DroneText  string         `json:"droneText"`
	Count      int            `json:"count"`
	Total      int            `json:"total"`
}

// AllVitalsCollectedPayload unlocks the decision phase.
type AllVitalsCollectedPayload struct {
	TimerSeconds      int       `json:"timerSeconds"`
	DecisionStartedAt time.Time `json:"decisionStartedAt"`
}

// ResultsReadyPayload carries a scored decision.
type ResultsReadyPayload struct {
	Result      *model.Result    `json:"result"`
	Leaderboard []LeaderboardRow `json:"leaderboard"`
}

// ErrorPayload is sent to the client that caused an error.
type ErrorPayload struct {
	Text string `json:"text"`
	Code string `json:"code"`
}
