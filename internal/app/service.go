// Package service is the session engine: it owns the single booth session and
// the leaderboard, applies client events to them and publishes the results.
package service

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	repository "github.com/okian/triagebooth/internal/adapters/repository"
	"github.com/okian/triagebooth/internal/domain/catalog"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/scoring"
	"github.com/okian/triagebooth/pkg/logger"
)

const (
	defaultTimerSeconds    = 60
	defaultLeaderboardSize = 20
)

// Publisher fans encoded events out to every connected client.
type Publisher interface {
	Publish(ctx context.Context, msg []byte) int
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, []byte) int { return 0 }

// Service is the session engine. Every operation holds mu for its whole
// duration, publishes included, so clients observe changes in the order they
// were applied.
type Service struct {
	mu sync.Mutex

	catalog   *catalog.Catalog
	store     repository.Store
	scorer    *scoring.Scorer
	publisher Publisher
	clock     clockwork.Clock
	logger    logger.Logger

	timerSeconds    int
	leaderboardSize int
	scoringOpts     []scoring.Option

	session  *model.Session
	operator model.Operator
	started  bool

	stats counters
}

type counters struct {
	sessions         int64
	scans            int64
	rejectedScans    int64
	decisions        int64
	ignoredDecisions int64
	published        int64
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithClock sets the clock used for session ids and decision timing.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPublisher sets where events are published.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithStore replaces the leaderboard store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLeaderboardSize sets how many entries the default store keeps.
func WithLeaderboardSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardSize = n
		}
	}
}

// WithTimerSeconds sets the advisory decision countdown sent to clients.
func WithTimerSeconds(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.timerSeconds = seconds
		}
	}
}

// WithScoring passes rule overrides to the scorer.
func WithScoring(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// New constructs the engine over cat.
func New(cat *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		catalog:         cat,
		publisher:       nopPublisher{},
		clock:           clockwork.NewRealClock(),
		logger:          logger.Nop(),
		timerSeconds:    defaultTimerSeconds,
		leaderboardSize: defaultLeaderboardSize,
		operator:        model.NewOperator("", ""),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewBoundedStore(repository.WithCapacity(s.leaderboardSize))
	}
	s.scorer = scoring.NewScorer(s.scoringOpts...)

	return s
}

// Start marks the engine ready and logs its configuration.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	rules := s.scorer.Rules()
	s.started = true
	s.logger.Info(ctx, "session engine started",
		logger.Int("scenarios", len(s.catalog.List())),
		logger.Int("leaderboardSize", s.leaderboardSize),
		logger.Int("timerSeconds", s.timerSeconds),
		logger.Int("underBudgetPoints", rules.UnderBudgetPoints),
		logger.Duration("budget", rules.Budget),
	)
	return nil
}

// Stop drops the active session. The leaderboard is kept in memory until the
// process exits.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.session = nil
	s.started = false
	s.logger.Info(context.Background(), "session engine stopped")
}

// GetStats returns engine counters for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"started":          s.started,
		"sessionsStarted":  s.stats.sessions,
		"scans":            s.stats.scans,
		"rejectedScans":    s.stats.rejectedScans,
		"decisions":        s.stats.decisions,
		"ignoredDecisions": s.stats.ignoredDecisions,
		"eventsPublished":  s.stats.published,
		"leaderboardSize":  s.store.Count(context.Background()),
		"activeSession":    s.session != nil,
	}
	if s.session != nil {
		stats["scenarioId"] = s.session.ScenarioID
		stats["revealed"] = len(s.session.Revealed)
	}
	return stats
}
