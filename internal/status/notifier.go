package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/xp-sweep/internal/runner"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/logger"
	"github.com/GoSim-25-26J-441/xp-sweep/pkg/utils"
)

// Sweep outcomes reported to the webhook
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// NotificationPayload is the JSON body posted when a sweep ends
type NotificationPayload struct {
	SweepID    string                `json:"sweep_id"`
	Outcome    string                `json:"outcome"`
	Total      int                   `json:"total"`
	Succeeded  int                   `json:"succeeded"`
	Failed     int                   `json:"failed"`
	Skipped    int                   `json:"skipped"`
	DurationMs int64                 `json:"duration_ms"`
	Error      string                `json:"error,omitempty"`
	Stages     []runner.StageSummary `json:"stages"`
	Timestamp  int64                 `json:"timestamp"` // When notification was sent
}

// Notifier posts the end-of-sweep summary to a webhook
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	secret     string
}

func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.BackoffFromConfig("exponential", time.Second, 30*time.Second),
	}
}

// WithBackoff replaces the delay strategy between delivery attempts
func (n *Notifier) WithBackoff(b utils.BackoffStrategy, maxRetries int) *Notifier {
	n.backoff = b
	if maxRetries >= 0 {
		n.maxRetries = maxRetries
	}
	return n
}

// WithSecret sets the X-Sweep-Callback-Secret header value
func (n *Notifier) WithSecret(secret string) *Notifier {
	n.secret = secret
	return n
}

// Outcome classifies the error returned by runner.Driver.Run
func Outcome(runErr error) string {
	switch {
	case runErr == nil:
		return OutcomeSucceeded
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return OutcomeInterrupted
	default:
		return OutcomeFailed
	}
}

// Notify delivers the summary, retrying with backoff. {sweep_id} in the URL
// is replaced by the sweep id.
func (n *Notifier) Notify(ctx context.Context, callbackURL string, summary *runner.Summary, runErr error) error {
	if callbackURL == "" || summary == nil {
		return nil
	}

	finalURL := strings.ReplaceAll(callbackURL, "{sweep_id}", summary.SweepID)
	payload := NotificationPayload{
		SweepID:    summary.SweepID,
		Outcome:    Outcome(runErr),
		Total:      summary.Total(),
		Succeeded:  summary.Succeeded(),
		Failed:     summary.Failed(),
		Skipped:    summary.Skipped(),
		DurationMs: summary.Duration.Milliseconds(),
		Stages:     summary.Stages,
		Timestamp:  time.Now().UTC().UnixMilli(),
	}
	if runErr != nil {
		payload.Error = runErr.Error()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			delay := n.backoff.NextDelay(attempt - 1)
			logger.Debug("retrying notification",
				"callback_url", finalURL,
				"sweep_id", payload.SweepID,
				"attempt", attempt,
				"delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = n.send(ctx, finalURL, body); lastErr == nil {
			logger.Info("notification sent successfully",
				"sweep_id", payload.SweepID,
				"outcome", payload.Outcome)
			return nil
		}
		logger.Warn("notification attempt failed",
			"callback_url", finalURL,
			"sweep_id", payload.SweepID,
			"attempt", attempt+1,
			"error", lastErr)
	}

	return fmt.Errorf("notification failed after %d attempts: %w", n.maxRetries+1, lastErr)
}

func (n *Notifier) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "xp-sweep/1.0")
	if n.secret != "" {
		req.Header.Set("X-Sweep-Callback-Secret", n.secret)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	responseBody := string(bodyBytes)
	if len(responseBody) > 200 {
		responseBody = responseBody[:200] + "..."
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, responseBody)
}
