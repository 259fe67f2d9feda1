// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// VitalKey identifies one discoverable field of a scenario (a body region).
type VitalKey string

// Body regions used by the booth tags.
const (
	VitalHead    VitalKey = "head"
	VitalChest   VitalKey = "chest"
	VitalAbdomen VitalKey = "abdomen"
	VitalArms    VitalKey = "arms"
	VitalLegs    VitalKey = "legs"
)

// VitalKeys lists the body regions in display order.
func VitalKeys() []VitalKey {
	return []VitalKey{VitalHead, VitalChest, VitalAbdomen, VitalArms, VitalLegs}
}

// Valid reports whether k is one of the body regions.
func (k VitalKey) Valid() bool {
	switch k {
	case VitalHead, VitalChest, VitalAbdomen, VitalArms, VitalLegs:
		return true
	}
	return false
}

// Triage is a severity category.
type Triage string

// Triage categories.
const (
	TriageRed    Triage = "red"
	TriageYellow Triage = "yellow"
	TriageGreen  Triage = "green"
	TriageBlack  Triage = "black"
)

// triageAliases maps accepted spellings, including the START labels, to a category.
var triageAliases = map[string]Triage{ //nolint:gochecknoglobals // static lookup table
	"red":       TriageRed,
	"immediate": TriageRed,
	"yellow":    TriageYellow,
	"delayed":   TriageYellow,
	"green":     TriageGreen,
	"minor":     TriageGreen,
	"black":     TriageBlack,
	"expectant": TriageBlack,
	"deceased":  TriageBlack,
}

// ParseTriage coerces free text into a Triage category.
func ParseTriage(s string) (Triage, bool) {
	t, ok := triageAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Valid reports whether t is one of the four categories.
func (t Triage) Valid() bool {
	switch t {
	case TriageRed, TriageYellow, TriageGreen, TriageBlack:
		return true
	}
	return false
}

// Vital is the display data revealed when a tag is scanned.
type Vital struct {
	Key        VitalKey `json:"key" yaml:"key"`
	Label      string   `json:"label" yaml:"label"`
	VitalLabel string   `json:"vitalLabel" yaml:"vital_label"`
	Value      string   `json:"value" yaml:"value"`
	DroneText  string   `json:"droneText" yaml:"drone_text"`
}

// Reference is the scripted "AI" answer for a scenario.
type Reference struct {
	Triage        Triage   `json:"triage" yaml:"triage"`
	Tests         []string `json:"tests" yaml:"tests"`
	Treatment     string   `json:"treatment,omitempty" yaml:"treatment"`
	Hospital      string   `json:"hospital,omitempty" yaml:"hospital"`
	AITimeSeconds float64  `json:"aiTimeSeconds" yaml:"ai_time_seconds"`
}

// AITime returns the reference decision time as a duration.
func (r Reference) AITime() time.Duration {
	return time.Duration(r.AITimeSeconds * float64(time.Second))
}

// Scenario is a fixed clinical case. Scenarios never change after load.
type Scenario struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Narrative string    `json:"narrative" yaml:"narrative"`
	Vitals    []Vital   `json:"vitals" yaml:"vitals"`
	AI        Reference `json:"ai" yaml:"ai"`
}

// Vital returns the vital for key, if the scenario has one.
func (s *Scenario) Vital(key VitalKey) (Vital, bool) {
	for _, v := range s.Vitals {
		if v.Key == key {
			return v, true
		}
	}
	return Vital{}, false
}

// Total is the number of vitals that must be revealed.
func (s *Scenario) Total() int {
	return len(s.Vitals)
}
