package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mr1hm/go-triage-queue/internal/geo"
	"github.com/mr1hm/go-triage-queue/internal/models"
)

type Paths struct {
	AITriage   string
	Booking    string
	Doctor     string
	CaseStatus string
}

// Client reads the emergency feeds, the doctor roster and per-case status
// from the platform backend.
type Client struct {
	baseURL    string
	paths      Paths
	httpClient *http.Client
}

// NewClient uses http.DefaultClient when httpClient is nil. Feed requests
// carry no timeout of their own; callers bound them through ctx.
func NewClient(baseURL string, paths Paths, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		paths:      paths,
		httpClient: httpClient,
	}
}

func (c *Client) FetchAITriage(ctx context.Context) ([]Record, error) {
	return c.fetchRecords(ctx, FeedAITriage, c.paths.AITriage)
}

func (c *Client) FetchBookings(ctx context.Context) ([]Record, error) {
	return c.fetchRecords(ctx, FeedBooking, c.paths.Booking)
}

func (c *Client) fetchRecords(ctx context.Context, feed, path string) ([]Record, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, &IngestionError{Feed: feed, Err: err}
	}

	items, err := decodeList(body)
	if err != nil {
		return nil, &IngestionError{Feed: feed, Err: err}
	}

	records := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := DecodeRecord(item)
		if err != nil {
			slog.Warn("skipping malformed record", "feed", feed, "index", i, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

type doctorRecord struct {
	ID          flexString `json:"id"`
	Latitude    flexFloat  `json:"latitude"`
	Longitude   flexFloat  `json:"longitude"`
	Available   *bool      `json:"available"`
	IsAvailable *bool      `json:"is_available"`
}

// FetchDoctor looks the doctor up in the roster. A record without usable
// coordinates yields a LocationError wrapping ErrNoCoordinates.
func (c *Client) FetchDoctor(ctx context.Context, doctorID string) (models.Doctor, error) {
	body, err := c.get(ctx, c.paths.Doctor+"/"+url.PathEscape(doctorID))
	if err != nil {
		return models.Doctor{}, &LocationError{DoctorID: doctorID, Err: err}
	}

	rec, err := decodeDoctor(unwrapData(body), doctorID)
	if err != nil {
		return models.Doctor{}, &LocationError{DoctorID: doctorID, Err: err}
	}

	doc := models.Doctor{
		ID:        firstNonEmpty(string(rec.ID), doctorID),
		Available: true,
	}
	switch {
	case rec.Available != nil:
		doc.Available = *rec.Available
	case rec.IsAvailable != nil:
		doc.Available = *rec.IsAvailable
	}

	if !rec.Latitude.Valid || !rec.Longitude.Valid {
		return doc, &LocationError{DoctorID: doctorID, Err: ErrNoCoordinates}
	}
	doc.Location = models.Location{Lat: rec.Latitude.Value, Lng: rec.Longitude.Value}
	if !geo.Valid(doc.Location) {
		return doc, &LocationError{DoctorID: doctorID, Err: fmt.Errorf("coordinates out of range: %v", doc.Location)}
	}
	return doc, nil
}

// decodeDoctor accepts a single record or a roster list, picking the entry
// matching id or the first one.
func decodeDoctor(body []byte, id string) (doctorRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []doctorRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return doctorRecord{}, fmt.Errorf("error decoding roster: %w", err)
		}
		if len(list) == 0 {
			return doctorRecord{}, fmt.Errorf("doctor %s not in roster", id)
		}
		for _, d := range list {
			if string(d.ID) == id {
				return d, nil
			}
		}
		return list[0], nil
	}

	var rec doctorRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return doctorRecord{}, fmt.Errorf("error decoding doctor: %w", err)
	}
	return rec, nil
}

// FetchCaseStatus returns the backend's raw status string for one case.
func (c *Client) FetchCaseStatus(ctx context.Context, caseID string) (string, error) {
	body, err := c.get(ctx, c.paths.CaseStatus+"/"+url.PathEscape(caseID)+"/status")
	if err != nil {
		return "", &IngestionError{Feed: FeedCaseStatus, Err: err}
	}

	var resp struct {
		Status             string `json:"status"`
		AppointmentDetails *struct {
			Status string `json:"status"`
		} `json:"appointment_details"`
	}
	if err := json.Unmarshal(unwrapData(body), &resp); err != nil {
		return "", &IngestionError{Feed: FeedCaseStatus, Err: fmt.Errorf("error decoding status: %w", err)}
	}
	if resp.Status == "" && resp.AppointmentDetails != nil {
		resp.Status = resp.AppointmentDetails.Status
	}
	return resp.Status, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading resp.Body: %w", err)
	}
	return body, nil
}

// decodeList accepts a bare JSON array or an object wrapping it in "data".
func decodeList(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(unwrapData(body), &items); err != nil {
		return nil, fmt.Errorf("error decoding feed: %w", err)
	}
	return items, nil
}

func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err == nil && present(wrapper.Data) {
		return wrapper.Data
	}
	return trimmed
}
