package tracker

import "strings"

// Step is a position on the patient-facing progress bar.
type Step int

const (
	StepRequested Step = iota
	StepDoctorAssigned
	StepInConsultation
	StepResolved
)

var stepLabels = [...]string{
	StepRequested:      "Requested",
	StepDoctorAssigned: "Doctor Assigned",
	StepInConsultation: "In Consultation",
	StepResolved:       "Resolved",
}

// Steps lists every label in display order.
func Steps() []string {
	return append([]string(nil), stepLabels[:]...)
}

func (s Step) String() string {
	if s < StepRequested || s > StepResolved {
		return "Unknown"
	}
	return stepLabels[s]
}

var statusSteps = map[string]Step{
	"pending":                 StepRequested,
	"requested":               StepRequested,
	"scheduled":               StepRequested,
	"booked":                  StepRequested,
	"created":                 StepRequested,
	"waiting":                 StepRequested,
	"accepted":                StepDoctorAssigned,
	"confirmed":               StepDoctorAssigned,
	"assigned":                StepDoctorAssigned,
	"in_progress":             StepInConsultation,
	"appointment_in_progress": StepInConsultation,
	"in_consultation":         StepInConsultation,
	"ongoing":                 StepInConsultation,
	"started":                 StepInConsultation,
	"stabilized":              StepResolved,
	"escalated":               StepResolved,
	"completed":               StepResolved,
	"resolved":                StepResolved,
	"closed":                  StepResolved,
	"consultation_ended":      StepResolved,
}

// StepFor maps a backend status string onto a progress step. ok is false for
// statuses the tracker does not know.
func StepFor(status string) (Step, bool) {
	key := strings.ToLower(strings.TrimSpace(status))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	step, ok := statusSteps[key]
	return step, ok
}
