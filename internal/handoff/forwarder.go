package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

// Forwarder delivers handoffs to the case-detail service over HTTP.
type Forwarder struct {
	url    string
	client *http.Client
}

func NewForwarder(url string, client *http.Client) *Forwarder {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
		}
	}
	return &Forwarder{
		url:    url,
		client: client,
	}
}

// Run forwards every handoff from ch until ch is closed or ctx is done.
// Delivery failures are logged and the handoff is dropped.
func (f *Forwarder) Run(ctx context.Context, ch <-chan models.Handoff) {
	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-ch:
			if !ok {
				return
			}
			if err := f.Send(ctx, h); err != nil {
				slog.Error("handoff delivery failed", "handoff_id", h.ID, "case_id", h.CaseID, "error", err)
				continue
			}
			slog.Info("handoff delivered", "handoff_id", h.ID, "case_id", h.CaseID, "patient_id", h.PatientID)
		}
	}
}

func (f *Forwarder) Send(ctx context.Context, h models.Handoff) error {
	body, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("error encoding handoff: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("error doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return nil
}
