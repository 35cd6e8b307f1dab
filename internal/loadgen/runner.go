package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/patella/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// ErrModelNotLoaded is returned when the service is up but cannot diagnose.
var ErrModelNotLoaded = errors.New("service has no model loaded")

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("subjects", config.Subjects),
		logger.Int("frames", config.Frames),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Float64("dropProbability", config.DropProbability),
		logger.Float64("duplicateRatio", config.DuplicateRatio),
		logger.Bool("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	subjects, err := generateSubjects(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("subject generation failed: %w", err)
	}

	ids := submitSubjects(ctx, config, subjects, stats)

	if err := collectResults(ctx, config, ids, stats); err != nil {
		return stats, fmt.Errorf("result collection failed: %w", err)
	}

	if err := listDiagnoses(ctx, config, stats); err != nil {
		logger.Get().Warn(ctx, "failed to list diagnoses", logger.Error(err))
	}

	if config.OutputFile != "" {
		if err := saveSubjectsToFile(ctx, config.OutputFile, subjects); err != nil {
			logger.Get().Warn(ctx, "failed to save subjects to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.Unresolved > 0 {
		return stats, fmt.Errorf("%d diagnoses unresolved after %s", stats.Unresolved, config.PollTimeout)
	}
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Frames <= 0 {
		config.Frames = DefaultFrames
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = DefaultPollTimeout
	}
}

// checkServiceHealth verifies the service is running with a model loaded.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	status, body, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check returned status: %d", status)
	}

	var health struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}
	if !health.ModelLoaded {
		return ErrModelNotLoaded
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSubjectsToFile writes the generated subjects as a JSON array.
func saveSubjectsToFile(ctx context.Context, filename string, subjects []Subject) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	raw, err := json.MarshalIndent(subjects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal subjects: %w", err)
	}
	if err := os.WriteFile(filename, raw, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "subjects saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.Submitted > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.Submitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("subjectsGenerated", stats.SubjectsGenerated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("completed", stats.Completed),
		logger.Int("diagnosisFailed", stats.DiagnosisFailed),
		logger.Int("unresolved", stats.Unresolved),
		logger.Int("listed", stats.Listed),
		logger.Any("classes", stats.Classes),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
