package tracker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mr1hm/go-triage-queue/internal/scheduler"
)

type StatusSource interface {
	FetchCaseStatus(ctx context.Context, caseID string) (string, error)
}

type Progress struct {
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"` // raw backend status
	Step      Step      `json:"step"`
	Label     string    `json:"label"`
	Steps     []string  `json:"steps"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Progress) Done() bool { return p.Step == StepResolved }

// Tracker polls one case's status for the patient-facing progress view.
// Progress only moves forward; failed or unrecognized polls keep the last
// known progress.
type Tracker struct {
	source   StatusSource
	caseID   string
	progress atomic.Pointer[Progress]
	task     *scheduler.Task

	// OnChange, when set, is called from the poll goroutine on the first
	// successful poll and whenever the step advances.
	OnChange func(Progress)
}

func New(source StatusSource, caseID string, interval time.Duration) *Tracker {
	t := &Tracker{
		source: source,
		caseID: caseID,
	}
	t.progress.Store(&Progress{
		CaseID: caseID,
		Step:   StepRequested,
		Label:  StepRequested.String(),
		Steps:  Steps(),
	})
	t.task = &scheduler.Task{
		Name:     "case-tracker:" + caseID,
		Interval: interval,
		Run:      t.Poll,
	}
	return t
}

func (t *Tracker) Start(ctx context.Context) { t.task.Start(ctx) }

func (t *Tracker) Stop() { t.task.Stop() }

func (t *Tracker) Progress() Progress { return *t.progress.Load() }

// Poll fetches the case status once and advances progress.
func (t *Tracker) Poll(ctx context.Context) error {
	status, err := t.source.FetchCaseStatus(ctx, t.caseID)
	if err != nil {
		return err
	}

	step, ok := StepFor(status)
	if !ok {
		slog.Warn("unrecognized case status", "case_id", t.caseID, "status", status)
		return nil
	}

	current := t.Progress()
	if !current.UpdatedAt.IsZero() && step <= current.Step {
		return nil
	}

	next := Progress{
		CaseID:    t.caseID,
		Status:    status,
		Step:      step,
		Label:     step.String(),
		Steps:     Steps(),
		UpdatedAt: time.Now(),
	}
	t.progress.Store(&next)

	if t.OnChange != nil {
		t.OnChange(next)
	}
	return nil
}
