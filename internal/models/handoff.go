package models

import "time"

// Handoff is the command sent to the case-detail collaborator when a doctor
// accepts a case.
type Handoff struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	AppointmentID *string    `json:"appointment_id"` // set only for direct bookings
	CaseID        string     `json:"case_id"`
	TriggerReason string     `json:"trigger_reason"`
	Status        CaseStatus `json:"status"`
	IssuedAt      time.Time  `json:"issued_at"`
}

type TransitionActor string

const (
	ActorDoctor TransitionActor = "doctor"
	ActorFeed   TransitionActor = "feed"
)

type Transition struct {
	ID        string          `json:"id"`
	CaseID    string          `json:"case_id"` // Case.ID, not the correlation id
	PatientID string          `json:"patient_id"`
	Source    TriggerSource   `json:"source"`
	From      CaseStatus      `json:"from"`
	To        CaseStatus      `json:"to"`
	Actor     TransitionActor `json:"actor"`
	At        time.Time       `json:"at"`
}
