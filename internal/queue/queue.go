package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

var ErrCaseNotFound = errors.New("case not found")

type entry struct {
	c models.Case
	// present is true when the case appeared in the latest sync.
	present bool
}

// Queue tracks the lifecycle of every observed case. Status only moves
// forward: PENDING -> ACCEPTED -> STABILIZED | ESCALATED.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // ingestion order of the latest sync

	now   func() time.Time
	newID func() string
}

func New() *Queue {
	return &Queue{
		entries: make(map[string]*entry),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// stage orders statuses along the lifecycle; both terminal states share the
// last stage so one can never replace the other.
func stage(s models.CaseStatus) int {
	switch s {
	case models.StatusAccepted:
		return 1
	case models.StatusStabilized, models.StatusEscalated:
		return 2
	default:
		return 0
	}
}

// Sync replaces case snapshots with a fresh ingestion result. Local status
// never regresses; a source status further along the lifecycle is adopted
// and reported as feed transitions, one per lifecycle edge, so a jump from
// PENDING to a terminal status is recorded via ACCEPTED. A case first seen
// past PENDING is recorded as having left PENDING the same way. PENDING
// cases missing from cases are forgotten.
func (q *Queue) Sync(cases []models.Case) []models.Transition {
	q.mu.Lock()
	defer q.mu.Unlock()

	var transitions []models.Transition
	seen := make(map[string]bool, len(cases))
	order := make([]string, 0, len(cases))

	for _, c := range cases {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		order = append(order, c.ID)

		e, ok := q.entries[c.ID]
		if !ok {
			if c.Status == "" {
				c.Status = models.StatusPending
			}
			transitions = append(transitions, q.adopt(c, models.StatusPending)...)
			q.entries[c.ID] = &entry{c: c, present: true}
			continue
		}

		local := e.c.Status
		if !local.IsTerminal() && stage(c.Status) > stage(local) {
			transitions = append(transitions, q.adopt(c, local)...)
		} else {
			c.Status = local
		}
		e.c = c
		e.present = true
	}

	for id, e := range q.entries {
		if seen[id] {
			continue
		}
		if e.c.Status == models.StatusPending {
			delete(q.entries, id)
			continue
		}
		e.present = false
	}

	q.order = order
	return transitions
}

// Restore re-applies statuses persisted by an earlier run. Like Sync it only
// moves cases forward.
func (q *Queue) Restore(statuses map[string]models.CaseStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, st := range statuses {
		e, ok := q.entries[id]
		if !ok {
			if st == models.StatusPending {
				continue
			}
			q.entries[id] = &entry{c: models.Case{ID: id, Status: st, Vitals: map[string]any{}}}
			continue
		}
		if !e.c.Status.IsTerminal() && stage(st) > stage(e.c.Status) {
			e.c.Status = st
		}
	}
}

// Active returns the non-terminal cases of the latest sync in ingestion order.
func (q *Queue) Active() []models.Case {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.Case, 0, len(q.order))
	for _, id := range q.order {
		e, ok := q.entries[id]
		if !ok || !e.present || e.c.Status.IsTerminal() {
			continue
		}
		out = append(out, e.c)
	}
	return out
}

func (q *Queue) Get(id string) (models.Case, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return models.Case{}, false
	}
	return e.c, true
}

// Accept moves a PENDING case to ACCEPTED and returns the handoff for the
// case-detail view. changed is false when the case was not PENDING.
func (q *Queue) Accept(id string) (h models.Handoff, t models.Transition, changed bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return h, t, false, ErrCaseNotFound
	}
	if !e.c.Status.CanTransition(models.StatusAccepted) {
		return h, t, false, nil
	}

	t = q.transition(e.c, e.c.Status, models.StatusAccepted, models.ActorDoctor)
	e.c.Status = models.StatusAccepted

	h = models.Handoff{
		ID:            q.newID(),
		PatientID:     e.c.PatientID,
		CaseID:        e.c.CaseID,
		TriggerReason: e.c.TriggerReason,
		Status:        e.c.Status,
		IssuedAt:      t.At,
	}
	if e.c.TriggerSource == models.TriggerSourceDirectBooking && e.c.AppointmentID != "" {
		apptID := e.c.AppointmentID
		h.AppointmentID = &apptID
	}
	return h, t, true, nil
}

func (q *Queue) Stabilize(id string) (models.Transition, bool, error) {
	return q.resolve(id, models.StatusStabilized)
}

func (q *Queue) Escalate(id string) (models.Transition, bool, error) {
	return q.resolve(id, models.StatusEscalated)
}

func (q *Queue) resolve(id string, to models.CaseStatus) (models.Transition, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[id]
	if !ok {
		return models.Transition{}, false, ErrCaseNotFound
	}
	if !e.c.Status.CanTransition(to) {
		return models.Transition{}, false, nil
	}

	t := q.transition(e.c, e.c.Status, to, models.ActorDoctor)
	e.c.Status = to
	return t, true, nil
}

// adopt returns the feed transitions walking c from its local status to the
// source status c carries. Nothing is returned when the source is not ahead.
func (q *Queue) adopt(c models.Case, from models.CaseStatus) []models.Transition {
	if stage(c.Status) <= stage(from) {
		return nil
	}

	var out []models.Transition
	if from == models.StatusPending && c.Status.IsTerminal() {
		out = append(out, q.transition(c, from, models.StatusAccepted, models.ActorFeed))
		from = models.StatusAccepted
	}
	return append(out, q.transition(c, from, c.Status, models.ActorFeed))
}

func (q *Queue) transition(c models.Case, from, to models.CaseStatus, actor models.TransitionActor) models.Transition {
	return models.Transition{
		ID:        q.newID(),
		CaseID:    c.ID,
		PatientID: c.PatientID,
		Source:    c.TriggerSource,
		From:      from,
		To:        to,
		Actor:     actor,
		At:        q.now(),
	}
}
