package ingestion

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mr1hm/go-triage-queue/internal/geo"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/triage"
)

const (
	DefaultTriggerReason     = "Critical Health Alert"
	AppointmentTriggerReason = "Emergency Appointment"
	DefaultSeverityScore     = 90
	UnknownPatientName       = "Unknown"
	UnknownPatientField      = "?"
)

// Normalizer turns source records into canonical cases. Missing optional
// fields fall back to documented defaults; they are never errors.
type Normalizer struct {
	// DefaultLocation is used when a record carries no usable coordinates.
	DefaultLocation models.Location
	Now             func() time.Time
}

func NewNormalizer(defaultLocation models.Location) *Normalizer {
	return &Normalizer{
		DefaultLocation: defaultLocation,
		Now:             time.Now,
	}
}

// closedBookingStatuses are appointment states the booking service has
// already finished with.
var closedBookingStatuses = map[string]bool{
	"CONSULTATION_ENDED": true,
	"COMPLETED":          true,
}

// NormalizeAll converts records in order. Direct bookings explicitly flagged
// as non-emergency, or already closed by the booking service, are skipped.
func (n *Normalizer) NormalizeAll(records []Record) []models.Case {
	cases := make([]models.Case, 0, len(records))
	for _, rec := range records {
		if b, ok := rec.(DirectBookingRecord); ok && (!isEmergency(b) || isClosed(b)) {
			continue
		}
		c, err := n.Normalize(rec)
		if err != nil {
			slog.Warn("skipping record", "source", rec.Source(), "error", err)
			continue
		}
		cases = append(cases, c)
	}
	return cases
}

// Normalize fails only for unknown variants and for records carrying nothing
// that identifies them across polls.
func (n *Normalizer) Normalize(rec Record) (models.Case, error) {
	var c models.Case
	switch r := rec.(type) {
	case AITriageRecord:
		c = n.fromAITriage(r)
	case DirectBookingRecord:
		c = n.fromDirectBooking(r)
	default:
		return models.Case{}, fmt.Errorf("unsupported record type %T", rec)
	}
	if c.ID == "" {
		return models.Case{}, ErrUnidentifiedRecord
	}
	return c, nil
}

func (n *Normalizer) fromAITriage(r AITriageRecord) models.Case {
	c := n.base(r.envelope)
	if key := firstNonEmpty(string(r.ID), string(r.CaseID), r.fallbackKey()); key != "" {
		c.ID = "ai_" + key
	}
	c.TriggerSource = models.TriggerSourceAITriage
	c.Status = models.StatusPending

	c.TriggerReason = DefaultTriggerReason
	if s := r.Data.Summary; s != nil && s.TriggerReason != "" {
		c.TriggerReason = s.TriggerReason
	}

	c.Patient = profile(r.Data.Patient)
	c.Location = n.location(r.Location, locationOf(r.Data.Patient))
	if c.DetectedAt.IsZero() {
		c.DetectedAt = n.Now()
	}
	return c
}

func (n *Normalizer) fromDirectBooking(r DirectBookingRecord) models.Case {
	c := n.base(r.envelope)
	c.TriggerSource = models.TriggerSourceDirectBooking
	c.TriggerReason = AppointmentTriggerReason
	c.Status = models.StatusPending

	snapshot := r.Data.Patient
	if d := r.details(); d != nil {
		c.AppointmentID = string(d.AppointmentID)
		c.CaseID = firstNonEmpty(c.CaseID, string(d.CaseID))
		if st, ok := models.ParseStatus(d.Status); ok {
			c.Status = st
		}
		if d.PatientSnapshot != nil {
			snapshot = d.PatientSnapshot
		}
		if c.DetectedAt.IsZero() {
			c.DetectedAt = parseTime(d.SlotTime)
		}
	}
	if key := firstNonEmpty(string(r.ID), c.AppointmentID, c.CaseID, r.fallbackKey()); key != "" {
		c.ID = "booking_" + key
	}

	c.Patient = profile(snapshot)
	c.Location = n.location(r.Location, locationOf(snapshot))
	if c.DetectedAt.IsZero() {
		c.DetectedAt = n.Now()
	}
	return c
}

// fallbackKey identifies a record without an id by its patient and creation
// time. Both are needed; either alone could merge distinct emergencies.
func (e envelope) fallbackKey() string {
	patient := firstNonEmpty(string(e.PatientID), string(e.ProfileID))
	if patient == "" || e.CreatedAt == "" {
		return ""
	}
	return patient + "@" + e.CreatedAt
}

// base fills the fields both variants share.
func (n *Normalizer) base(e envelope) models.Case {
	c := models.Case{
		PatientID:     firstNonEmpty(string(e.PatientID), string(e.ProfileID)),
		CaseID:        string(e.CaseID),
		SourceType:    e.SourceType,
		SeverityLevel: models.SeverityHigh,
		SeverityScore: DefaultSeverityScore,
		Vitals:        map[string]any{},
		DetectedAt:    parseTime(e.CreatedAt),
	}

	if s := e.Data.Summary; s != nil {
		if a := s.Assessment; a != nil {
			c.SeverityLevel = triage.ParseLevel(a.Severity)
			if a.SeverityScore.Valid {
				c.SeverityScore = clampScore(a.SeverityScore.Value)
			}
		}
		for k, v := range s.Vitals {
			c.Vitals[k] = v
		}
	}
	return c
}

// location returns the first candidate with finite in-range coordinates, or
// the configured default.
func (n *Normalizer) location(candidates ...*feedLocation) models.Location {
	for _, fl := range candidates {
		if fl == nil || !fl.Latitude.Valid || !fl.Longitude.Valid {
			continue
		}
		loc := models.Location{Lat: fl.Latitude.Value, Lng: fl.Longitude.Value}
		if geo.Valid(loc) {
			return loc
		}
	}
	return n.DefaultLocation
}

func locationOf(p *patientProfile) *feedLocation {
	if p == nil {
		return nil
	}
	return p.Location
}

func profile(p *patientProfile) models.PatientProfile {
	out := models.PatientProfile{
		Name:   UnknownPatientName,
		Age:    UnknownPatientField,
		Gender: UnknownPatientField,
	}
	if p == nil {
		return out
	}
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Age != "" {
		out.Age = string(p.Age)
	}
	if p.Gender != "" {
		out.Gender = p.Gender
	}
	return out
}

func isEmergency(r DirectBookingRecord) bool {
	d := r.details()
	return d == nil || d.IsEmergency == nil || *d.IsEmergency
}

func isClosed(r DirectBookingRecord) bool {
	d := r.details()
	return d != nil && closedBookingStatuses[strings.ToUpper(strings.TrimSpace(d.Status))]
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return DefaultSeverityScore
	}
	return int(math.Round(math.Min(100, math.Max(0, v))))
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
