package ingestion

import (
	"errors"
	"fmt"
)

const (
	FeedAITriage   = "ai_triage"
	FeedBooking    = "direct_booking"
	FeedCaseStatus = "case_status"
)

var (
	ErrNoCoordinates = errors.New("doctor record has no coordinates")

	// ErrUnidentifiedRecord means a record has no id, case id or
	// patient-and-creation-time pair to key it by.
	ErrUnidentifiedRecord = errors.New("record has no identifying fields")
)

// IngestionError is a network, status or decode failure while reading a feed.
type IngestionError struct {
	Feed string
	Err  error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for feed %s: %v", e.Feed, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// LocationError means the dispatcher's coordinates could not be resolved.
type LocationError struct {
	DoctorID string
	Err      error
}

func (e *LocationError) Error() string {
	return fmt.Sprintf("location resolution failed for doctor %s: %v", e.DoctorID, e.Err)
}

func (e *LocationError) Unwrap() error { return e.Err }
