// Package scoring computes the score of a human triage decision against the
// scenario's reference ("AI") decision.
package scoring

import (
	"time"

	"github.com/okian/triagebooth/internal/domain/model"
)

// Default point values.
const (
	defaultTriagePoints       = 5
	defaultHospitalPoints     = 3
	defaultTreatmentPoints    = 3
	defaultTestsPoints        = 3
	defaultFasterThanAIPoints = 1
	defaultUnderBudgetPoints  = 0
	defaultBudget             = 30 * time.Second
)

// Rules holds the point value of every criterion.
type Rules struct {
	TriagePoints       int
	HospitalPoints     int
	TreatmentPoints    int
	TestsPoints        int
	FasterThanAIPoints int
	UnderBudgetPoints  int
	Budget             time.Duration
}

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithTestsPoints sets the points for an exact test-set match.
func WithTestsPoints(points int) Option {
	return func(r *Rules) {
		if points >= 0 {
			r.TestsPoints = points
		}
	}
}

// WithFasterThanAIPoints sets the points for beating the reference time.
func WithFasterThanAIPoints(points int) Option {
	return func(r *Rules) {
		if points >= 0 {
			r.FasterThanAIPoints = points
		}
	}
}

// WithUnderBudget enables the absolute time budget bonus.
// Zero points disables it.
func WithUnderBudget(points int, budget time.Duration) Option {
	return func(r *Rules) {
		if points >= 0 {
			r.UnderBudgetPoints = points
		}
		if budget > 0 {
			r.Budget = budget
		}
	}
}

// NewRules builds Rules from the defaults and opts.
func NewRules(opts ...Option) Rules {
	r := Rules{
		TriagePoints:       defaultTriagePoints,
		HospitalPoints:     defaultHospitalPoints,
		TreatmentPoints:    defaultTreatmentPoints,
		TestsPoints:        defaultTestsPoints,
		FasterThanAIPoints: defaultFasterThanAIPoints,
		UnderBudgetPoints:  defaultUnderBudgetPoints,
		Budget:             defaultBudget,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Score returns the breakdown for human against ai after elapsed.
// It reads nothing but its arguments.
func Score(rules Rules, human model.Decision, ai model.Reference, elapsed time.Duration) model.Breakdown {
	if elapsed < 0 {
		elapsed = 0
	}

	var b model.Breakdown

	if ai.Triage != "" && human.Triage == ai.Triage {
		b.TriageCorrect = true
		b.TriagePoints = rules.TriagePoints
	}

	// Hospital and treatment only count when the scenario names one.
	if ai.Hospital != "" && human.HospitalID == ai.Hospital {
		b.HospitalCorrect = true
		b.HospitalPoints = rules.HospitalPoints
	}
	if ai.Treatment != "" && human.Treatment == ai.Treatment {
		b.TreatmentCorrect = true
		b.TreatmentPoints = rules.TreatmentPoints
	}

	if SameTests(human.TestIDs, ai.Tests) {
		b.TestsCorrect = true
		b.TestsPoints = rules.TestsPoints
	}

	if elapsed < ai.AITime() {
		b.FasterThanAI = true
		b.SpeedPoints = rules.FasterThanAIPoints
	}

	if rules.UnderBudgetPoints > 0 && elapsed <= rules.Budget {
		b.UnderBudget = true
		b.BudgetPoints = rules.UnderBudgetPoints
	}

	b.Total = b.TriagePoints + b.HospitalPoints + b.TreatmentPoints + b.TestsPoints + b.SpeedPoints + b.BudgetPoints
	return b
}

// SameTests reports whether a and b hold exactly the same test IDs, ignoring
// order and repeats.
func SameTests(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if _, ok := bs[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Scorer binds a rule set for repeated use.
type Scorer struct {
	rules Rules
}

// NewScorer creates a Scorer with rules built from opts.
func NewScorer(opts ...Option) *Scorer {
	return &Scorer{rules: NewRules(opts...)}
}

// Rules returns the scorer's rule set.
func (s *Scorer) Rules() Rules {
	return s.rules
}

// Score computes the breakdown with the scorer's rules.
func (s *Scorer) Score(human model.Decision, ai model.Reference, elapsed time.Duration) model.Breakdown {
	return Score(s.rules, human, ai, elapsed)
}
