package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// webhookPayload is the JSON body posted for each attempt.
type webhookPayload struct {
	PairingID  string `json:"pairing_id"`
	ReportTime string `json:"report_time"`
	AttemptID  string `json:"attempt_id"`
	Kind       string `json:"kind"`
	At         string `json:"at"`
	Label      string `json:"label"`
	Rings      int    `json:"rings,omitempty"`
}

// Webhook posts each attempt to a configured URL. Any non-2xx response is a
// dispatch failure, deferring the attempt to the next sweep.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook notifier. The timeout bounds a single
// delivery so one slow endpoint cannot stall the sweep.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Dispatch posts one attempt.
func (w *Webhook) Dispatch(ctx context.Context, key core.PairingKey, attempt core.Attempt) error {
	payload := webhookPayload{
		PairingID:  key.PairingID,
		ReportTime: core.FormatTime(key.ReportTime),
		AttemptID:  attempt.ID,
		Kind:       string(attempt.Kind),
		At:         core.FormatTime(attempt.At),
		Label:      attempt.Label,
		Rings:      attempt.Rings,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
