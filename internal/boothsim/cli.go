package boothsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/triagebooth/pkg/logger"
)

// SetupLogging sends logs to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string, verbose bool) error {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "booth_sim_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.Init(logger.WithOutput(io.MultiWriter(os.Stdout, file))); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Triage Booth Simulator
======================

Plays the booth end to end over the REST API: starts a scenario, scans
every tag, submits a decision and checks the leaderboard.

Usage:
  go run ./cmd/booth-sim [options]

Options:
  -url string
        Base URL of the booth (default "http://localhost:3000")
  -rounds int
        Number of play-throughs (default 5)
  -accuracy float
        Share of rounds answered with the AI decision (default 0.5)
  -scan-delay duration
        Pause between tag scans (default 200ms)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed int
        Random seed, 0 uses the clock
  -watch
        Follow /ws and count broadcast events
  -output string
        Output file for round results (default: booth_rounds_TIMESTAMP.json)
  -log string
        Log file (default: booth_sim_TIMESTAMP.log)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # One quick round against a local booth
  go run ./cmd/booth-sim -rounds 1 -scan-delay 0

  # Fill the leaderboard and watch the big-screen feed
  go run ./cmd/booth-sim -rounds 25 -watch -url http://booth.local:3000
`)
}
