package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Operator naming rules.
const (
	DefaultOperatorName = "Visitor"
	maxOperatorNameLen  = 40
)

// Mode is how the operator plays.
type Mode string

// Operator modes.
const (
	ModeSolo  Mode = "solo"
	ModeGroup Mode = "group"
)

// ParseMode coerces free text into a Mode. Anything unknown is solo.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeGroup)) {
		return ModeGroup
	}
	return ModeSolo
}

// Operator is the person (or group) playing a session.
type Operator struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`
}

// NewOperator trims and truncates name and coerces mode.
func NewOperator(name, mode string) Operator {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxOperatorNameLen {
		name = strings.TrimSpace(string([]rune(name)[:maxOperatorNameLen]))
	}
	if name == "" {
		name = DefaultOperatorName
	}
	return Operator{Name: name, Mode: ParseMode(mode)}
}

// Decision is a triage decision, human or reference.
type Decision struct {
	Triage     Triage   `json:"triage"`
	HospitalID string   `json:"hospitalId,omitempty"`
	TestIDs    []string `json:"testIds"`
	Treatment  string   `json:"treatment,omitempty"`
}

// Breakdown lists which scoring criteria were met and the points each earned.
type Breakdown struct {
	TriageCorrect    bool `json:"triageCorrect"`
	HospitalCorrect  bool `json:"hospitalCorrect"`
	TreatmentCorrect bool `json:"treatmentCorrect"`
	TestsCorrect     bool `json:"testsCorrect"`
	FasterThanAI     bool `json:"fasterThanAI"`
	UnderBudget      bool `json:"underBudget"`

	TriagePoints    int `json:"triagePoints"`
	HospitalPoints  int `json:"hospitalPoints"`
	TreatmentPoints int `json:"treatmentPoints"`
	TestsPoints     int `json:"testsPoints"`
	SpeedPoints     int `json:"speedPoints"`
	BudgetPoints    int `json:"budgetPoints"`

	Total int `json:"total"`
}

// Result is a scored human decision.
type Result struct {
	ID             string    `json:"id"`
	SessionID      int64     `json:"sessionId"`
	ScenarioID     string    `json:"scenarioId"`
	ScenarioName   string    `json:"scenarioName"`
	Operator       Operator  `json:"operator"`
	Human          Decision  `json:"human"`
	AI             Reference `json:"ai"`
	Breakdown      Breakdown `json:"breakdown"`
	Score          int       `json:"score"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	AITimeSeconds  float64   `json:"aiTimeSeconds"`
	Rank           int       `json:"rank"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Session is one play-through binding an operator to a scenario.
type Session struct {
	ID                int64      `json:"id"`
	OperatorName      string     `json:"operatorName"`
	OperatorMode      Mode       `json:"operatorMode"`
	ScenarioID        string     `json:"scenarioId"`
	Revealed          []VitalKey `json:"revealed"`
	AllCollected      bool       `json:"allCollected"`
	DecisionStartedAt *time.Time `json:"decisionStartedAt"`
	Decision          *Decision  `json:"decision"`
	Result            *Result    `json:"result"`
}

// HasRevealed reports whether key was already revealed.
func (s *Session) HasRevealed(key VitalKey) bool {
	for _, k := range s.Revealed {
		if k == key {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Revealed = append(make([]VitalKey, 0, len(s.Revealed)), s.Revealed...)
	if s.DecisionStartedAt != nil {
		t := *s.DecisionStartedAt
		c.DecisionStartedAt = &t
	}
	if s.Decision != nil {
		d := *s.Decision
		d.TestIDs = append([]string{}, s.Decision.TestIDs...)
		c.Decision = &d
	}
	if s.Result != nil {
		r := *s.Result
		r.Human.TestIDs = append([]string{}, s.Result.Human.TestIDs...)
		r.AI.Tests = append([]string{}, s.Result.AI.Tests...)
		c.Result = &r
	}
	return &c
}

// LeaderboardEntry is one ranked past decision.
type LeaderboardEntry struct {
	Name           string    `json:"name"`
	Mode           Mode      `json:"mode"`
	ScenarioID     string    `json:"scenarioId"`
	ScenarioName   string    `json:"scenarioName"`
	Score          int       `json:"score"`
	ElapsedSeconds float64   `json:"elapsedSeconds"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// DisplayName is the name as shown on the big screen.
func (e LeaderboardEntry) DisplayName() string {
	if e.Mode == ModeGroup {
		return e.Name + " (Group)"
	}
	return e.Name + " (Solo)"
}
