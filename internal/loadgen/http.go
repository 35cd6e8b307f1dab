package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/patella/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request and returns the status and body.
func (c *HTTPClient) Get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req)
}

// Post sends body as JSON and returns the status and response body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (int, []byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// submission pairs a subject with the outcome of posting it.
type submission struct {
	subject Subject
	outcome string
	id      string
}

// submitSubjects posts subjects concurrently and returns the ids the service
// accepted, keyed by request id.
func submitSubjects(ctx context.Context, config *Config, subjects []Subject, stats *Stats) map[string]string {
	logger.Get().Info(ctx, "submitting subjects",
		logger.Int("subjects", len(subjects)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/diagnoses"

	var submitted, accepted, duplicate, rejected, failed int64

	jobs := make(chan Subject, config.Workers*WorkerChannelMultiplier)
	results := make(chan submission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				if ctx.Err() != nil {
					return
				}
				outcome, id := submitSingle(ctx, client, url, s)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeAccepted:
					atomic.AddInt64(&accepted, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				case outcomeRejected:
					atomic.AddInt64(&rejected, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				if config.Verbose {
					logger.Get().Debug(ctx, "subject submitted",
						logger.String("requestID", s.RequestID),
						logger.String("outcome", outcome))
				}
				results <- submission{subject: s, outcome: outcome, id: id}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range withDuplicates(subjects, config.DuplicateRatio) {
			select {
			case <-ctx.Done():
				return
			case jobs <- s:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ids := make(map[string]string, len(subjects))
	for r := range results {
		if r.outcome == outcomeAccepted {
			ids[r.subject.RequestID] = r.id
		}
	}

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.Rejected = int(atomic.LoadInt64(&rejected))
	stats.Failed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed))
	return ids
}

// withDuplicates appends a resubmission of the leading ratio share of
// subjects.
func withDuplicates(subjects []Subject, ratio float64) []Subject {
	n := int(float64(len(subjects)) * ratio)
	if n <= 0 {
		return subjects
	}
	n = min(n, len(subjects))
	out := make([]Subject, 0, len(subjects)+n)
	out = append(out, subjects...)
	return append(out, subjects[:n]...)
}

// submitSingle posts one subject and classifies the response.
func submitSingle(ctx context.Context, client *HTTPClient, url string, s Subject) (string, string) {
	status, body, err := client.Post(ctx, url, s)
	if err != nil {
		return outcomeFailed, ""
	}

	var ack AckResponse
	_ = json.Unmarshal(body, &ack)

	switch status {
	case http.StatusAccepted:
		return outcomeAccepted, ack.ID
	case http.StatusOK:
		return outcomeDuplicate, ack.ID
	case http.StatusTooManyRequests:
		return outcomeRejected, ""
	default:
		return outcomeFailed, ""
	}
}
