package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/patella/internal/loadgen"
)

// Default configuration constants.
const (
	defaultSubjects       = 1000
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultDrop           = 0.05
	defaultDuplicateRatio = 0.1
	defaultRunTimeout     = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		subjects    = flag.Int("subjects", defaultSubjects, "Number of subjects to submit")
		frames      = flag.Int("frames", loadgen.DefaultFrames, "Frames per subject")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drop        = flag.Float64("drop", defaultDrop, "Probability that a landmark is missing from a frame")
		duplicates  = flag.Float64("duplicates", defaultDuplicateRatio, "Share of subjects resubmitted with the same request id")
		seed        = flag.Int64("seed", 0, "Seed for the posture noise, 0 for random")
		pollTimeout = flag.Duration("poll-timeout", loadgen.DefaultPollTimeout, "How long to wait for pending diagnoses")
		outputFile  = flag.String("output", "", "Write the generated subjects to this JSON file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	if err := loadgen.SetupLogging(*verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	config := &loadgen.Config{
		BaseURL:         *baseURL,
		Subjects:        *subjects,
		Frames:          *frames,
		Workers:         *workers,
		Timeout:         *timeout,
		DropProbability: *drop,
		DuplicateRatio:  *duplicates,
		Seed:            *seed,
		PollTimeout:     *pollTimeout,
		OutputFile:      *outputFile,
		Verbose:         *verbose,
	}

	if err := run(config); err != nil {
		_, _ = os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(config *loadgen.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	_, err := loadgen.Run(ctx, config)
	return err
}
