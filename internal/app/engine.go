package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
	"github.com/okian/triagebooth/pkg/logger"
	"github.com/okian/triagebooth/pkg/metrics"
)

// Reasons a decision is dropped without scoring.
const (
	ignoredNoSession  = "no_session"
	ignoredIncomplete = "incomplete"
	ignoredDecided    = "already_decided"
)

// SetOperator sets the default operator used when a session starts without one.
// An active undecided session takes the new operator too.
func (s *Service) SetOperator(ctx context.Context, name, mode string) model.Operator {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.operator = model.NewOperator(name, mode)
	if s.session != nil && s.session.Result == nil {
		s.session.OperatorName = s.operator.Name
		s.session.OperatorMode = s.operator.Mode
		s.publishState(ctx)
	}
	return s.operator
}

// StartSession replaces any session with a fresh one for scenarioID.
// Empty name and mode fall back to the default operator.
func (s *Service) StartSession(ctx context.Context, name, mode, scenarioID string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.catalog.Get(scenarioID)
	if !ok {
		s.logger.Warn(ctx, "start for unknown scenario", logger.String("scenarioId", scenarioID))
		return nil, fmt.Errorf("%w: %q", ErrScenarioNotFound, scenarioID)
	}

	op := s.operator
	if name != "" || mode != "" {
		op = model.NewOperator(name, mode)
		s.operator = op
	}

	id := s.clock.Now().UnixMilli()
	if s.session != nil && id <= s.session.ID {
		id = s.session.ID + 1
	}

	s.session = &model.Session{
		ID:           id,
		OperatorName: op.Name,
		OperatorMode: op.Mode,
		ScenarioID:   sc.ID,
		Revealed:     make([]model.VitalKey, 0, sc.Total()),
	}
	s.stats.sessions++
	metrics.RecordSessionStarted()

	s.logger.Info(ctx, "session started",
		logger.Int64("sessionId", id),
		logger.String("scenarioId", sc.ID),
		logger.String("operator", op.Name),
		logger.String("mode", string(op.Mode)),
	)

	s.publish(ctx, types.TypeGameRegistered, types.GameRegisteredPayload{Session: s.session.Clone()})
	s.publishState(ctx)
	return s.session.Clone(), nil
}

// Scan reveals the vital named by raw, a vital key or a tag payload.
func (s *Service) Scan(ctx context.Context, raw string) (types.VitalScannedPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		s.rejectScan(metrics.ScanNoSession)
		return types.VitalScannedPayload{}, ErrNoActiveSession
	}

	key, ok := s.catalog.Resolve(raw)
	if !ok {
		s.rejectScan(metrics.ScanUnknown)
		s.logger.Debug(ctx, "unrecognised tag", logger.String("payload", raw))
		return types.VitalScannedPayload{}, &ScanError{Kind: ErrUnknownVital, Text: textNotRecognised}
	}

	sc, _ := s.catalog.Get(s.session.ScenarioID)
	vital, ok := sc.Vital(key)
	if !ok {
		s.rejectScan(metrics.ScanUnknown)
		return types.VitalScannedPayload{}, &ScanError{Kind: ErrUnknownVital, Text: textNotInScenario}
	}

	total := sc.Total()
	if s.session.HasRevealed(key) {
		s.rejectScan(metrics.ScanDuplicate)
		return types.VitalScannedPayload{}, &ScanError{
			Kind: ErrAlreadyScanned,
			Text: fmt.Sprintf("%s tag already received. (%d/%d vitals)", vital.Label, len(s.session.Revealed), total),
		}
	}

	s.session.Revealed = append(s.session.Revealed, key)
	s.stats.scans++
	metrics.RecordScan(metrics.ScanRevealed)

	out := types.VitalScannedPayload{
		Key:        key,
		Label:      vital.Label,
		VitalLabel: vital.VitalLabel,
		Value:      vital.Value,
		DroneText:  vital.DroneText,
		Count:      len(s.session.Revealed),
		Total:      total,
	}
	s.publish(ctx, types.TypeVitalScanned, out)

	if out.Count == total && !s.session.AllCollected {
		now := s.clock.Now()
		s.session.AllCollected = true
		s.session.DecisionStartedAt = &now
		s.logger.Info(ctx, "all vitals collected",
			logger.Int64("sessionId", s.session.ID),
			logger.Int("timerSeconds", s.timerSeconds),
		)
		s.publish(ctx, types.TypeAllVitalsCollected, types.AllVitalsCollectedPayload{
			TimerSeconds:      s.timerSeconds,
			DecisionStartedAt: now,
		})
	}

	s.publishState(ctx)
	return out, nil
}

func (s *Service) rejectScan(outcome string) {
	s.stats.rejectedScans++
	metrics.RecordScan(outcome)
}

// Submit scores d against the active scenario. It returns false, with no
// state change, when there is no session, vitals are incomplete, or the
// session was already decided.
func (s *Service) Submit(ctx context.Context, d model.Decision) (*model.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.session == nil:
		return nil, s.ignore(ctx, ignoredNoSession)
	case !s.session.AllCollected || s.session.DecisionStartedAt == nil:
		return nil, s.ignore(ctx, ignoredIncomplete)
	case s.session.Result != nil:
		return nil, s.ignore(ctx, ignoredDecided)
	}

	sc, _ := s.catalog.Get(s.session.ScenarioID)
	now := s.clock.Now()
	elapsed := now.Sub(*s.session.DecisionStartedAt)
	if elapsed < 0 {
		elapsed = 0
	}

	d.TestIDs = append([]string{}, d.TestIDs...)
	breakdown := s.scorer.Score(d, sc.AI, elapsed)
	seconds := math.Round(elapsed.Seconds()*1000) / 1000

	op := model.Operator{Name: s.session.OperatorName, Mode: s.session.OperatorMode}
	entry := model.LeaderboardEntry{
		Name:           op.Name,
		Mode:           op.Mode,
		ScenarioID:     sc.ID,
		ScenarioName:   sc.Name,
		Score:          breakdown.Total,
		ElapsedSeconds: seconds,
		FinishedAt:     now,
	}
	rank, err := s.store.Insert(ctx, entry)
	if err != nil {
		s.logger.Error(ctx, "leaderboard insert failed", logger.Error(err))
		metrics.RecordErrorByComponent("engine", "leaderboard_insert")
	}

	result := &model.Result{
		ID:             uuid.NewString(),
		SessionID:      s.session.ID,
		ScenarioID:     sc.ID,
		ScenarioName:   sc.Name,
		Operator:       op,
		Human:          d,
		AI:             sc.AI,
		Breakdown:      breakdown,
		Score:          breakdown.Total,
		ElapsedSeconds: seconds,
		AITimeSeconds:  sc.AI.AITimeSeconds,
		Rank:           rank,
		FinishedAt:     now,
	}
	s.session.Decision = &d
	s.session.Result = result
	s.stats.decisions++
	metrics.RecordDecision(result.Score, seconds)

	s.logger.Info(ctx, "decision scored",
		logger.Int64("sessionId", s.session.ID),
		logger.String("triage", string(d.Triage)),
		logger.Int("score", result.Score),
		logger.Float64("elapsedSeconds", seconds),
		logger.Int("rank", rank),
	)

	out := s.session.Clone().Result
	s.publish(ctx, types.TypeResultsReady, types.ResultsReadyPayload{
		Result:      out,
		Leaderboard: types.Rows(s.store.All(ctx)),
	})
	s.publishState(ctx)
	return s.session.Clone().Result, true
}

func (s *Service) ignore(ctx context.Context, reason string) bool {
	s.stats.ignoredDecisions++
	metrics.RecordDecisionIgnored(reason)
	s.logger.Debug(ctx, "decision ignored", logger.String("reason", reason))
	return false
}

// Reset discards the session and keeps the leaderboard.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	metrics.RecordReset("session")
	s.logger.Info(ctx, "session reset")
	s.publishState(ctx)
}

// ResetLeaderboard empties the leaderboard and keeps the session.
func (s *Service) ResetLeaderboard(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Reset(ctx)
	metrics.RecordReset("leaderboard")
	s.logger.Info(ctx, "leaderboard reset")
	s.publishState(ctx)
}

// Snapshot returns the current session, leaderboard and scenarios.
func (s *Service) Snapshot(ctx context.Context) types.StatePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(ctx)
}

// Leaderboard returns the ranked leaderboard.
func (s *Service) Leaderboard(ctx context.Context) []types.LeaderboardRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Rows(s.store.All(ctx))
}

// TopLeaderboard returns the best n rows. n must be positive.
func (s *Service) TopLeaderboard(ctx context.Context, n int) ([]types.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	return types.Rows(entries), nil
}

// Sync hands an encoded stateUpdate to deliver while holding the engine lock,
// so no event published after the snapshot can reach deliver's target first.
func (s *Service) Sync(ctx context.Context, deliver func(msg []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := types.Encode(types.TypeStateUpdate, s.snapshotLocked(ctx))
	if err != nil {
		return err
	}
	return deliver(msg)
}

func (s *Service) snapshotLocked(ctx context.Context) types.StatePayload {
	return types.StatePayload{
		Session:      s.session.Clone(),
		Leaderboard:  types.Rows(s.store.All(ctx)),
		Scenarios:    s.catalog.List(),
		TimerSeconds: s.timerSeconds,
	}
}

func (s *Service) publishState(ctx context.Context) {
	s.publish(ctx, types.TypeStateUpdate, s.snapshotLocked(ctx))
}

func (s *Service) publish(ctx context.Context, eventType string, data any) {
	msg, err := types.Encode(eventType, data)
	if err != nil {
		s.logger.Error(ctx, "encode event failed", logger.String("type", eventType), logger.Error(err))
		metrics.RecordErrorByComponent("engine", "encode")
		return
	}
	s.stats.published++
	n := s.publisher.Publish(context.WithoutCancel(ctx), msg)
	s.logger.Debug(ctx, "event published", logger.String("type", eventType), logger.Int("subscribers", n))
}
