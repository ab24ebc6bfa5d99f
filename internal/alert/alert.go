// Package alert delivers HMAC-signed webhook notifications when a status
// run ends degraded or unhealthy.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/statusops/idc-monitor/internal/models"
)

const alertPath = "/status/alert"

// Payload is the alert body sent to the webhook.
type Payload struct {
	Timestamp        time.Time           `json:"timestamp"`
	OverallStatus    models.StatusLevel  `json:"overall_status"`
	Message          string              `json:"message"`
	DegradedMode     bool                `json:"degraded_mode"`
	FailedComponents map[string][]string `json:"failed_components,omitempty"`
	OrphanedCount    int                 `json:"orphaned_count"`
	DurationSeconds  float64             `json:"duration_seconds"`
}

// Notifier sends signed alerts for unhealthy status reports.
type Notifier struct {
	webhookURL string
	keyID      string
	secret     string
	httpClient *http.Client
}

// NewNotifier creates an alert notifier.
func NewNotifier(webhookURL, keyID, secret string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		keyID:      keyID,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// retryBackoffs for alert delivery attempts.
var retryBackoffs = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// ShouldAlert reports whether the report warrants a notification: degraded
// mode, or an overall status at CRITICAL or worse.
func ShouldAlert(report *models.StatusReport) bool {
	if report == nil || report.OverallHealth == nil {
		return false
	}
	if degraded, ok := report.OverallHealth.Details["degraded_mode"].(bool); ok && degraded {
		return true
	}
	return report.OverallHealth.Status.Severity() >= models.StatusCritical.Severity()
}

// NotifyReport converts the report to an alert payload and delivers it.
func (n *Notifier) NotifyReport(ctx context.Context, report *models.StatusReport) error {
	payload := Payload{
		Timestamp:       report.Timestamp,
		OverallStatus:   report.OverallHealth.Status,
		Message:         report.OverallHealth.Message,
		DurationSeconds: report.CheckDurationSeconds,
	}
	if degraded, ok := report.OverallHealth.Details["degraded_mode"].(bool); ok {
		payload.DegradedMode = degraded
	}
	if failures, ok := report.OverallHealth.Details["component_failures"].(map[string][]string); ok {
		payload.FailedComponents = failures
	}
	if report.OrphanedAssignmentStatus != nil {
		payload.OrphanedCount = report.OrphanedAssignmentStatus.Count()
	}
	return n.Notify(ctx, payload)
}

// Notify sends the alert with HMAC signing and retry.
func (n *Notifier) Notify(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alert marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoffs); attempt++ {
		if attempt > 0 {
			slog.Warn("retrying alert delivery", "attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoffs[attempt-1]):
			}
		}

		err := n.send(ctx, body)
		if err == nil {
			slog.Info("alert delivered",
				"overall_status", payload.OverallStatus,
				"degraded_mode", payload.DegradedMode,
			)
			return nil
		}
		lastErr = err
		slog.Error("alert delivery failed",
			"attempt", attempt,
			"error", err,
		)
	}
	return fmt.Errorf("alert delivery failed after retries: %w", lastErr)
}

func (n *Notifier) send(ctx context.Context, body []byte) error {
	method := http.MethodPost

	req, err := http.NewRequestWithContext(ctx, method, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range SignPayload(n.keyID, n.secret, method, alertPath, body) {
		req.Header.Set(k, v)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("alert HTTP error: %w", err)
	}
	defer resp.Body.Close()

	// Read and discard body to allow connection reuse.
	_, _ = io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}
