package boothsim

import (
	"fmt"
	"math/rand"

	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
)

var firstNames = []string{ //nolint:gochecknoglobals // static name pool
	"Amal", "Bilal", "Chen", "Dana", "Emeka", "Farah", "Goran", "Hana",
	"Idris", "Jun", "Kofi", "Lina", "Mateo", "Nour", "Omar", "Priya",
}

var triages = []model.Triage{ //nolint:gochecknoglobals // static lookup table
	model.TriageRed, model.TriageYellow, model.TriageGreen, model.TriageBlack,
}

// player is a simulated operator.
type player struct {
	Name string
	Mode model.Mode
}

// newPlayer picks a name for round n. Every fourth round is played as a group.
func newPlayer(rng *rand.Rand, n int) player {
	p := player{
		Name: fmt.Sprintf("%s %d", firstNames[rng.Intn(len(firstNames))], n),
		Mode: model.ModeSolo,
	}
	if n%4 == 0 {
		p.Mode = model.ModeGroup
	}
	return p
}

// scanOrder returns the scenario's vital keys in a random order.
func scanOrder(rng *rand.Rand, sc model.Scenario) []model.VitalKey {
	keys := make([]model.VitalKey, len(sc.Vitals))
	for i, v := range sc.Vitals {
		keys[i] = v.Key
	}
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}

// tagPayload is what a phone sends for a photographed tag.
func tagPayload(scenarioID string, key model.VitalKey) string {
	return fmt.Sprintf("%s_%s.jpg", scenarioID, key)
}

// decide returns the AI answer when copyAI is set, otherwise a deliberate
// miss: another triage, no hospital and one test short.
func decide(rng *rand.Rand, ai model.Reference, copyAI bool) types.DecisionPayload {
	d := types.DecisionPayload{
		Triage:     string(ai.Triage),
		HospitalID: ai.Hospital,
		TestIDs:    append([]string{}, ai.Tests...),
		Treatment:  ai.Treatment,
	}
	if copyAI {
		return d
	}

	miss := triages[rng.Intn(len(triages))]
	for miss == ai.Triage {
		miss = triages[rng.Intn(len(triages))]
	}
	d.Triage = string(miss)
	d.HospitalID = ""
	if n := len(d.TestIDs); n > 0 {
		d.TestIDs = d.TestIDs[:n-1]
	}
	return d
}
