package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/patella/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// errUnresolved reports that a diagnosis was still pending when polling gave up.
var errUnresolved = errors.New("diagnosis still pending")

// collectResults polls every accepted diagnosis until it leaves the pending
// state and tallies the outcome.
func collectResults(ctx context.Context, config *Config, ids map[string]string, stats *Stats) error {
	logger.Get().Info(ctx, "collecting results", logger.Int("pending", len(ids)))

	client := newHTTPClient(config.Timeout)
	g, gctx := errgroup.WithContext(ctx)
	pollCtx, cancel := context.WithTimeout(gctx, config.PollTimeout)
	defer cancel()

	var mu sync.Mutex
	stats.Classes = make(map[string]int)

	g.SetLimit(max(config.Workers, 1))
	for _, id := range ids {
		g.Go(func() error {
			rec, err := pollDiagnosis(pollCtx, client, config, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, errUnresolved):
				stats.Unresolved++
				return nil
			case err != nil:
				return err
			case rec.Status == statusFailed:
				stats.DiagnosisFailed++
				logger.Get().Warn(ctx, "diagnosis failed",
					logger.String("id", rec.ID),
					logger.String("error", rec.Error))
			default:
				stats.Completed++
				stats.Classes[rec.Label]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Get().Info(ctx, "results collected",
		logger.Int("completed", stats.Completed),
		logger.Int("failed", stats.DiagnosisFailed),
		logger.Int("unresolved", stats.Unresolved))
	return nil
}

// pollDiagnosis fetches one diagnosis until it is no longer pending.
func pollDiagnosis(ctx context.Context, client *HTTPClient, config *Config, id string) (DiagnosisRecord, error) {
	url := config.BaseURL + "/diagnoses/" + id
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		status, body, err := client.Get(ctx, url)
		switch {
		case ctx.Err() != nil:
			return DiagnosisRecord{}, fmt.Errorf("%s: %w", id, errUnresolved)
		case err != nil:
			return DiagnosisRecord{}, fmt.Errorf("failed to fetch diagnosis %s: %w", id, err)
		case status == http.StatusOK:
			var rec DiagnosisRecord
			if err := json.Unmarshal(body, &rec); err != nil {
				return DiagnosisRecord{}, fmt.Errorf("failed to decode diagnosis %s: %w", id, err)
			}
			return rec, nil
		case status != http.StatusAccepted:
			return DiagnosisRecord{}, fmt.Errorf("diagnosis %s: unexpected status %d", id, status)
		}

		select {
		case <-ctx.Done():
			return DiagnosisRecord{}, fmt.Errorf("%s: %w", id, errUnresolved)
		case <-ticker.C:
		}
	}
}

// listDiagnoses fetches the most recent diagnoses held by the service.
func listDiagnoses(ctx context.Context, config *Config, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/diagnoses?limit=%d", config.BaseURL, max(stats.Accepted, 1))

	status, body, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to list diagnoses: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("list diagnoses failed with status: %d", status)
	}

	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("failed to decode diagnosis list: %w", err)
	}
	stats.Listed = list.Count
	return nil
}
