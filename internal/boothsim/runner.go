package boothsim

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/pkg/logger"
)

// Run plays cfg.Rounds sessions against the booth and verifies the leaderboard.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only

	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting booth simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("rounds", config.Rounds),
		logger.Float64("accuracy", config.Accuracy),
		logger.Int64("seed", seed),
		logger.Bool("watch", config.Watch))

	client := NewClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Load scenarios
	state, err := client.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("state retrieval failed: %w", err)
	}
	if len(state.Scenarios) == 0 {
		return nil, ErrNoScenarios
	}

	// Step 3: Follow the broadcasts
	var w *watcher
	if config.Watch {
		if w, err = watch(ctx, config.BaseURL); err != nil {
			return nil, err
		}
	}

	// Step 4: Play
	rounds := make([]Round, 0, config.Rounds)
	for i := 1; i <= config.Rounds; i++ {
		sc := state.Scenarios[(i-1)%len(state.Scenarios)]
		r, err := playRound(ctx, client, config, rng, i, sc, stats)
		if err != nil {
			if w != nil {
				w.stop()
			}
			return nil, fmt.Errorf("round %d failed: %w", i, err)
		}
		rounds = append(rounds, r)
	}

	// Step 5: Leaderboard
	rows, err := client.Leaderboard(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.Leaderboard = rows

	if w != nil {
		sleep(ctx, watchSettle)
		stats.Broadcasts = w.stop()
	}

	// Step 6: Verify
	if err := verifyResults(ctx, rounds, stats); err != nil {
		return nil, err
	}

	// Step 7: Save rounds
	if config.OutputFile != "" {
		if err := saveRounds(ctx, config.OutputFile, rounds); err != nil {
			log.Warn(ctx, "failed to save rounds to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// playRound starts sc, scans every tag once plus one repeat, and decides.
func playRound(ctx context.Context, client *Client, config *Config, rng *rand.Rand, n int, sc model.Scenario, stats *Stats) (Round, error) {
	log := logger.Get()
	p := newPlayer(rng, n)

	if _, err := client.Start(ctx, sc.ID, p.Name, string(p.Mode)); err != nil {
		return Round{}, err
	}

	keys := scanOrder(rng, sc)
	for _, key := range keys {
		rep, err := client.Scan(ctx, tagPayload(sc.ID, key))
		if err != nil {
			return Round{}, err
		}
		stats.Scans++
		if !rep.OK {
			return Round{}, fmt.Errorf("%w: scan %s: %s", ErrRejected, key, rep.Message)
		}
		log.Debug(ctx, "tag scanned", logger.String("tag", string(key)), logger.Int("count", rep.TotalScanned))
		sleep(ctx, config.ScanDelay)
	}

	// Scanning a tag twice must be refused.
	if len(keys) > 0 {
		rep, err := client.Scan(ctx, tagPayload(sc.ID, keys[0]))
		if err != nil {
			return Round{}, err
		}
		stats.Scans++
		if rep.OK {
			return Round{}, fmt.Errorf("%w: repeated %s tag was accepted", ErrVerify, keys[0])
		}
		stats.RejectedScans++
	}

	copyAI := rng.Float64() < config.Accuracy
	d := decide(rng, sc.AI, copyAI)
	res, ok, err := client.Decide(ctx, d)
	if err != nil {
		return Round{}, err
	}
	if !ok || res == nil {
		return Round{}, fmt.Errorf("%w: decision ignored", ErrRejected)
	}
	stats.Decisions++
	stats.Rounds++

	// A second decision for the same session is ignored.
	if _, ok, err := client.Decide(ctx, d); err == nil && !ok {
		stats.IgnoredRequests++
	}

	if res.Score > stats.BestScore {
		stats.BestScore = res.Score
	}
	log.Info(ctx, "round finished",
		logger.Int("round", n),
		logger.String("player", p.Name),
		logger.String("scenarioId", sc.ID),
		logger.Bool("copiedAI", copyAI),
		logger.Int("score", res.Score),
		logger.Int("rank", res.Rank))

	return Round{
		Number:     n,
		Player:     p.Name,
		ScenarioID: sc.ID,
		Copied:     copyAI,
		Decision:   d.Decision(),
		Score:      res.Score,
		Elapsed:    res.ElapsedSeconds,
		Rank:       res.Rank,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// saveRounds writes the rounds to filename as a JSON array.
func saveRounds(ctx context.Context, filename string, rounds []Round) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(rounds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rounds: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), logFilePermission); err != nil {
		return fmt.Errorf("failed to write rounds: %w", err)
	}

	logger.Get().Info(ctx, "rounds saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the run summary.
func displayFinalStats(ctx context.Context, stats *Stats) {
	fields := []logger.Field{
		logger.Int("rounds", stats.Rounds),
		logger.Int("scans", stats.Scans),
		logger.Int("rejectedScans", stats.RejectedScans),
		logger.Int("decisions", stats.Decisions),
		logger.Int("ignoredDecisions", stats.IgnoredRequests),
		logger.Int("bestScore", stats.BestScore),
		logger.Int("leaderboardEntries", len(stats.Leaderboard)),
		logger.String("duration", stats.Duration.String()),
	}
	if stats.Broadcasts != nil {
		fields = append(fields, logger.Any("broadcasts", stats.Broadcasts))
	}
	logger.Get().Info(ctx, "final statistics", fields...)

	for _, row := range stats.Leaderboard {
		logger.Get().Info(ctx, "leaderboard",
			logger.Int("rank", row.Rank),
			logger.String("name", row.DisplayName),
			logger.String("scenario", row.ScenarioName),
			logger.Int("score", row.Score),
			logger.Float64("elapsedSeconds", row.ElapsedSeconds))
	}
}
