package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

// Record is one raw item from a source feed. The variants are
// AITriageRecord and DirectBookingRecord.
type Record interface {
	Source() models.TriggerSource
	isRecord()
}

type envelope struct {
	ID         flexString    `json:"id"`
	PatientID  flexString    `json:"patient_id"`
	ProfileID  flexString    `json:"profile_id"`
	CaseID     flexString    `json:"case_id"`
	CreatedAt  string        `json:"created_at"`
	SourceType string        `json:"source_type"`
	Location   *feedLocation `json:"location"`
	Data       recordData    `json:"data"`
}

type recordData struct {
	Summary     *consultationSummary `json:"pre_doctor_consultation_summary"`
	Patient     *patientProfile      `json:"patient_profile"`
	Appointment *appointmentDetails  `json:"appointment_details"`
}

type consultationSummary struct {
	TriggerReason string         `json:"trigger_reason"`
	Assessment    *assessment    `json:"assessment"`
	Vitals        map[string]any `json:"vitals_reported"`
}

type assessment struct {
	Severity      string    `json:"severity"`
	SeverityScore flexFloat `json:"severity_score"`
}

type patientProfile struct {
	Name     string        `json:"name"`
	Age      flexString    `json:"age"`
	Gender   string        `json:"gender"`
	Location *feedLocation `json:"location"`
}

type appointmentDetails struct {
	SlotTime        string          `json:"slot_time"`
	AppointmentID   flexString      `json:"appointment_id"`
	DoctorID        flexString      `json:"doctor_id"`
	Mode            string          `json:"mode"`
	IsEmergency     *bool           `json:"is_emergency"`
	CaseID          flexString      `json:"case_id"`
	Status          string          `json:"status"`
	PatientSnapshot *patientProfile `json:"patient_snapshot"`
}

type feedLocation struct {
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

// AITriageRecord comes from Feed A: emergencies raised by the AI triage
// consultation.
type AITriageRecord struct {
	envelope
}

func (AITriageRecord) Source() models.TriggerSource { return models.TriggerSourceAITriage }
func (AITriageRecord) isRecord()                    {}

// DirectBookingRecord comes from Feed B: emergency appointments booked
// directly by the patient.
type DirectBookingRecord struct {
	envelope
	Appointment *appointmentDetails `json:"appointment_details"`
}

func (DirectBookingRecord) Source() models.TriggerSource { return models.TriggerSourceDirectBooking }
func (DirectBookingRecord) isRecord()                    {}

// details returns the appointment object whether the feed put it on the
// envelope or under data.
func (r DirectBookingRecord) details() *appointmentDetails {
	if r.Appointment != nil {
		return r.Appointment
	}
	return r.Data.Appointment
}

const sourceTypeAppointment = "appointment"

// DecodeRecord picks the record variant from the envelope. Items with
// source_type "appointment" or an appointment_details object are direct
// bookings; everything else is treated as AI triage.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	var probe struct {
		SourceType  string          `json:"source_type"`
		Appointment json.RawMessage `json:"appointment_details"`
		Data        struct {
			Appointment json.RawMessage `json:"appointment_details"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("error decoding record envelope: %w", err)
	}

	if strings.EqualFold(probe.SourceType, sourceTypeAppointment) ||
		present(probe.Appointment) || present(probe.Data.Appointment) {
		var rec DirectBookingRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("error decoding direct booking record: %w", err)
		}
		return rec, nil
	}

	var rec AITriageRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("error decoding ai triage record: %w", err)
	}
	return rec, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// flexString accepts a JSON string or number; backends disagree on whether
// ids and ages are numeric.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or numeric string. Valid is false when the
// field was absent, null or unparsable.
type flexFloat struct {
	Value float64
	Valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			f.Value, f.Valid = parsed, true
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	f.Value, f.Valid = v, true
	return nil
}
