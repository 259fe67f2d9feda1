// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/triagebooth/internal/domain/catalog"
	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
)

const maxBodyBytes = 64 << 10

// Engine is the session engine as seen by the REST facade.
type Engine interface {
	Snapshot(ctx context.Context) types.StatePayload
	Leaderboard(ctx context.Context) []types.LeaderboardRow
	TopLeaderboard(ctx context.Context, n int) ([]types.LeaderboardRow, error)
	SetOperator(ctx context.Context, name, mode string) model.Operator
	StartSession(ctx context.Context, name, mode, scenarioID string) (*model.Session, error)
	Scan(ctx context.Context, raw string) (types.VitalScannedPayload, error)
	Submit(ctx context.Context, d model.Decision) (*model.Result, bool)
	Reset(ctx context.Context)
	ResetLeaderboard(ctx context.Context)
}

// TagSource lists the printable tags.
type TagSource interface {
	Tags() []catalog.Tag
}

// Server wires HTTP routes for the booth API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	gameHandler        *GameHandler
	leaderboardHandler *LeaderboardHandler
	qrHandler          *QRHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(engine Engine, tags TagSource, stats map[string]StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(stats),
		gameHandler:        NewGameHandler(engine),
		leaderboardHandler: NewLeaderboardHandler(engine, maxLimit),
		qrHandler:          NewQRHandler(tags),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/state", MetricsMiddleware(s.gameHandler.HandleState, "state"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/api/scenario", MetricsMiddleware(s.gameHandler.HandleScenario, "scenario"))
	mux.HandleFunc("/api/operator", MetricsMiddleware(s.gameHandler.HandleOperator, "operator"))
	mux.HandleFunc("/api/scan", MetricsMiddleware(s.gameHandler.HandleScan, "scan"))
	mux.HandleFunc("/api/decision", MetricsMiddleware(s.gameHandler.HandleDecision, "decision"))
	mux.HandleFunc("/api/reset", MetricsMiddleware(s.gameHandler.HandleReset, "reset"))
	mux.HandleFunc("/api/reset-leaderboard", MetricsMiddleware(s.gameHandler.HandleResetLeaderboard, "reset_leaderboard"))
	mux.HandleFunc("GET /api/tags/{tag}/qr", MetricsMiddleware(s.qrHandler.HandleQR, "tag_qr"))
}

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// allow rejects requests that do not use method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}
