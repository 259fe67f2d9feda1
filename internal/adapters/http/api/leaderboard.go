package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/triagebooth/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard reads.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context) []types.LeaderboardRow
	TopLeaderboard(ctx context.Context, n int) ([]types.LeaderboardRow, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetLeaderboard handles GET /api/leaderboard[?limit=N] requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		writeJSON(w, http.StatusOK, h.deps.Leaderboard(r.Context()))
		return
	}

	n, err := strconv.Atoi(limitStr)
	if err != nil || (h.maxLimit > 0 && n > h.maxLimit) {
		writeError(w, http.StatusBadRequest, "bad_request", ErrLimit)
		return
	}
	rows, err := h.deps.TopLeaderboard(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrLimit, err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
