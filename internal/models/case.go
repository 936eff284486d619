package models

import (
	"strings"
	"time"
)

type TriggerSource string

const (
	TriggerSourceAITriage      TriggerSource = "AI_TRIAGE"
	TriggerSourceDirectBooking TriggerSource = "DIRECT_BOOKING"
)

type SeverityLevel string

const (
	SeverityLow      SeverityLevel = "LOW"
	SeverityMedium   SeverityLevel = "MEDIUM"
	SeverityHigh     SeverityLevel = "HIGH"
	SeverityCritical SeverityLevel = "CRITICAL"
	// SeverityUnknown is the zero-weight bucket for labels no feed documents.
	SeverityUnknown SeverityLevel = "UNKNOWN"
)

// CaseStatus is the lifecycle of a case in the queue.
// PENDING -> ACCEPTED -> STABILIZED | ESCALATED.
type CaseStatus string

const (
	StatusPending    CaseStatus = "PENDING"
	StatusAccepted   CaseStatus = "ACCEPTED"
	StatusStabilized CaseStatus = "STABILIZED"
	StatusEscalated  CaseStatus = "ESCALATED"
)

// ParseStatus accepts any casing. ok is false for strings that are not a
// known status.
func ParseStatus(s string) (CaseStatus, bool) {
	st := CaseStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusAccepted, StatusStabilized, StatusEscalated:
		return st, true
	default:
		return "", false
	}
}

func (s CaseStatus) IsTerminal() bool {
	return s == StatusStabilized || s == StatusEscalated
}

// CanTransition reports whether to is a legal next state from s.
func (s CaseStatus) CanTransition(to CaseStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusAccepted
	case StatusAccepted:
		return to == StatusStabilized || to == StatusEscalated
	default:
		return false
	}
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type PatientProfile struct {
	Name   string `json:"name"`
	Age    string `json:"age"`
	Gender string `json:"gender"`
}

type Case struct {
	ID            string         `json:"id"`
	PatientID     string         `json:"patient_id"`
	CaseID        string         `json:"case_id,omitempty"` // correlation id
	AppointmentID string         `json:"appointment_id,omitempty"`
	TriggerSource TriggerSource  `json:"trigger_source"`
	TriggerReason string         `json:"trigger_reason"`
	SeverityLevel SeverityLevel  `json:"severity_level"`
	SeverityScore int            `json:"severity_score"`
	Patient       PatientProfile `json:"patient_profile"`
	Location      Location       `json:"location"`
	Vitals        map[string]any `json:"vitals"`
	DetectedAt    time.Time      `json:"detected_at"`
	Status        CaseStatus     `json:"status"`
	SourceType    string         `json:"source_type"` // raw envelope source_type
}

type Doctor struct {
	ID        string   `json:"id"`
	Location  Location `json:"location"`
	Available bool     `json:"available"`
}
