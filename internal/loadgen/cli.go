package loadgen

import (
	"fmt"
	"os"

	"github.com/okian/patella/pkg/logger"
)

// SetupLogging initialises the process logger for a run.
func SetupLogging(verbose bool) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithLevel(level)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ShowHelp prints usage information for the load generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Patella Load Generator
======================

Submits synthetic dog postures to a running diagnosis service and reports
how the asynchronous pipeline handled them.

Usage:
  go run ./cmd/loadgen [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -subjects int
        Number of subjects to submit (default 1000)
  -frames int
        Frames per subject (default 3)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -drop float
        Probability that a landmark is missing from a frame (default 0.05)
  -duplicates float
        Share of subjects resubmitted with the same request id (default 0.1)
  -seed int
        Seed for the posture noise, 0 for random
  -poll-timeout duration
        How long to wait for pending diagnoses (default 30s)
  -output string
        Write the generated subjects to this JSON file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Run with default settings
  go run ./cmd/loadgen

  # Heavier run against another host
  go run ./cmd/loadgen -subjects 20000 -workers 32 -url http://localhost:8080
`)
}
