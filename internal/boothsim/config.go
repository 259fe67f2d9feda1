package boothsim

import (
	"time"

	"github.com/okian/triagebooth/internal/domain/model"
	"github.com/okian/triagebooth/internal/domain/types"
)

// Config holds configuration for a simulated booth run.
type Config struct {
	BaseURL    string        // Base URL of the booth server
	Rounds     int           // Number of play-throughs
	Accuracy   float64       // Share of rounds answered with the AI decision, 0..1
	ScanDelay  time.Duration // Pause between tag scans
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // Random seed; 0 picks one from the clock
	Watch      bool          // Follow the websocket and count broadcasts
	OutputFile string        // Output file for round results
	LogFile    string        // Log file for run output
	Verbose    bool          // Enable verbose logging
}

// Round is the outcome of one play-through.
type Round struct {
	Number     int            `json:"round"`
	Player     string         `json:"player"`
	ScenarioID string         `json:"scenarioId"`
	Copied     bool           `json:"copiedAI"`
	Decision   model.Decision `json:"decision"`
	Score      int            `json:"score"`
	Elapsed    float64        `json:"elapsedSeconds"`
	Rank       int            `json:"rank"`
}

// Stats holds run statistics.
type Stats struct {
	Rounds          int
	Scans           int
	RejectedScans   int
	Decisions       int
	IgnoredRequests int
	BestScore       int
	Leaderboard     []types.LeaderboardRow
	Broadcasts      map[string]int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
