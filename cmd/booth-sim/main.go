package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/triagebooth/internal/boothsim"
)

// Default configuration constants.
const (
	defaultRounds   = 5
	defaultAccuracy = 0.5
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:3000", "Base URL of the booth")
		rounds     = flag.Int("rounds", defaultRounds, "Number of play-throughs")
		accuracy   = flag.Float64("accuracy", defaultAccuracy, "Share of rounds answered with the AI decision")
		scanDelay  = flag.Duration("scan-delay", boothsim.DefaultScanDelay, "Pause between tag scans")
		timeout    = flag.Duration("timeout", boothsim.DefaultTimeout, "HTTP request timeout")
		seed       = flag.Int64("seed", 0, "Random seed, 0 uses the clock")
		watch      = flag.Bool("watch", false, "Follow /ws and count broadcast events")
		outputFile = flag.String("output", "", "Output file for round results (default: booth_rounds_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file (default: booth_sim_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		boothsim.ShowHelp()
		return
	}

	if err := boothsim.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)
	defer cancel()

	output := *outputFile
	if output == "" {
		output = "booth_rounds_" + time.Now().Format("20060102_150405") + ".json"
	}

	config := &boothsim.Config{
		BaseURL:    *baseURL,
		Rounds:     *rounds,
		Accuracy:   *accuracy,
		ScanDelay:  *scanDelay,
		Timeout:    *timeout,
		Seed:       *seed,
		Watch:      *watch,
		OutputFile: output,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}

	if _, err := boothsim.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
