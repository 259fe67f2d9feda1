package boothsim

import (
	"context"
	"fmt"

	"github.com/okian/triagebooth/internal/domain/types"
	"github.com/okian/triagebooth/pkg/logger"
)

// verifyResults checks the leaderboard against the rounds just played.
func verifyResults(ctx context.Context, rounds []Round, stats *Stats) error {
	logger.Get().Info(ctx, "verifying results")

	if err := verifyLeaderboardOrder(stats.Leaderboard); err != nil {
		return err
	}

	if len(rounds) > 0 {
		if len(stats.Leaderboard) == 0 {
			return fmt.Errorf("%w: leaderboard is empty after %d rounds", ErrVerify, len(rounds))
		}
		if top := stats.Leaderboard[0].Score; top < stats.BestScore {
			return fmt.Errorf("%w: top score %d is below best round score %d", ErrVerify, top, stats.BestScore)
		}
	}

	if stats.Broadcasts != nil {
		if err := verifyBroadcasts(stats.Broadcasts, stats.Rounds); err != nil {
			return err
		}
	}

	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyLeaderboardOrder checks ranks are 1..n and rows are best first:
// higher score, then faster time.
func verifyLeaderboardOrder(rows []types.LeaderboardRow) error {
	for i, row := range rows {
		if row.Rank != i+1 {
			return fmt.Errorf("%w: row %d has rank %d", ErrVerify, i, row.Rank)
		}
		if i == 0 {
			continue
		}
		prev := rows[i-1]
		if row.Score > prev.Score {
			return fmt.Errorf("%w: rank %d scores %d above rank %d with %d",
				ErrVerify, row.Rank, row.Score, prev.Rank, prev.Score)
		}
		if row.Score == prev.Score && row.ElapsedSeconds < prev.ElapsedSeconds {
			return fmt.Errorf("%w: rank %d is faster than rank %d at equal score",
				ErrVerify, row.Rank, prev.Rank)
		}
	}
	return nil
}

// verifyBroadcasts checks each finished round was announced on the relay.
func verifyBroadcasts(counts map[string]int, rounds int) error {
	for _, kind := range []string{types.TypeGameRegistered, types.TypeAllVitalsCollected, types.TypeResultsReady} {
		if counts[kind] < rounds {
			return fmt.Errorf("%w: saw %d %s events for %d rounds", ErrVerify, counts[kind], kind, rounds)
		}
	}
	return nil
}
