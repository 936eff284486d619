package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr1hm/go-triage-queue/internal/handoff"
	"github.com/mr1hm/go-triage-queue/internal/ingestion"
	"github.com/mr1hm/go-triage-queue/internal/models"
	"github.com/mr1hm/go-triage-queue/internal/queue"
	"github.com/mr1hm/go-triage-queue/internal/ranking"
	"github.com/mr1hm/go-triage-queue/internal/repository"
	"github.com/mr1hm/go-triage-queue/internal/scheduler"
)

// Feeds is the read side of the platform backend.
type Feeds interface {
	FetchAITriage(ctx context.Context) ([]ingestion.Record, error)
	FetchBookings(ctx context.Context) ([]ingestion.Record, error)
	FetchDoctor(ctx context.Context, doctorID string) (models.Doctor, error)
}

type Options struct {
	DoctorID        string
	DefaultLocation models.Location
	PollInterval    time.Duration
	LocationTimeout time.Duration
}

// Snapshot is one published ranking. It is never mutated after publication.
type Snapshot struct {
	Entries     []ranking.Entry `json:"entries"`
	Origin      models.Location `json:"origin"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type ActionResult struct {
	Case    models.Case     `json:"case"`
	Changed bool            `json:"changed"`
	Handoff *models.Handoff `json:"handoff,omitempty"`
}

// Service runs the dispatcher-facing emergency queue: it resolves the
// dispatcher's location, polls both feeds, ranks the active cases and
// publishes the result, and applies doctor actions.
type Service struct {
	feeds       Feeds
	normalizer  *ingestion.Normalizer
	queue       *queue.Queue
	audit       repository.TransitionRepository
	broadcaster *handoff.Broadcaster
	opts        Options

	origin   atomic.Pointer[models.Location]
	snapshot atomic.Pointer[Snapshot]

	refreshMu sync.Mutex // one ingest cycle at a time
	publishMu sync.Mutex // keeps snapshots ordered with queue state

	task *scheduler.Task
	now  func() time.Time
}

// NewService wires the queue. audit and broadcaster may be nil.
func NewService(feeds Feeds, q *queue.Queue, audit repository.TransitionRepository, broadcaster *handoff.Broadcaster, opts Options) *Service {
	s := &Service{
		feeds:       feeds,
		normalizer:  ingestion.NewNormalizer(opts.DefaultLocation),
		queue:       q,
		audit:       audit,
		broadcaster: broadcaster,
		opts:        opts,
		now:         time.Now,
	}
	s.task = &scheduler.Task{
		Name:     "emergency-queue",
		Interval: opts.PollInterval,
		Prepare:  s.ResolveLocation,
		Run:      s.Refresh,
	}
	return s
}

// Start resolves the dispatcher location and then begins polling. It returns
// immediately.
func (s *Service) Start(ctx context.Context) {
	s.task.Start(ctx)
}

// Stop cancels polling and waits for the in-flight cycle to finish.
func (s *Service) Stop() {
	s.task.Stop()
	slog.Info("emergency queue stopped")
}

// Restore re-applies statuses recorded by earlier runs so that accepted or
// resolved cases do not come back as PENDING.
func (s *Service) Restore(ctx context.Context) error {
	if s.audit == nil {
		return nil
	}
	statuses, err := s.audit.LatestStatuses(ctx)
	if err != nil {
		return err
	}
	s.queue.Restore(statuses)
	slog.Info("restored case statuses", "count", len(statuses))
	return nil
}

// ResolveLocation looks the dispatcher up in the doctor roster, bounded by
// LocationTimeout. Any failure falls back to the default coordinate.
func (s *Service) ResolveLocation(ctx context.Context) {
	loc := s.opts.DefaultLocation
	defer func() { s.origin.Store(&loc) }()

	if s.opts.DoctorID == "" {
		slog.Info("no doctor id configured, using default location", "lat", loc.Lat, "lng", loc.Lng)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.LocationTimeout)
	defer cancel()

	doc, err := s.feeds.FetchDoctor(ctx, s.opts.DoctorID)
	if err != nil {
		slog.Error("location resolution failed, using default location", "doctor_id", s.opts.DoctorID, "error", err)
		return
	}
	loc = doc.Location
	slog.Info("dispatcher location resolved", "doctor_id", doc.ID, "lat", loc.Lat, "lng", loc.Lng)
}

// Origin returns the dispatcher location used for ranking and whether it has
// been resolved yet.
func (s *Service) Origin() (models.Location, bool) {
	if loc := s.origin.Load(); loc != nil {
		return *loc, true
	}
	return s.opts.DefaultLocation, false
}

// Refresh runs one ingest, rank and publish cycle. On failure the queue and
// the published snapshot are left untouched.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if _, ok := s.Origin(); !ok {
		s.ResolveLocation(ctx)
	}

	aiRecords, err := s.feeds.FetchAITriage(ctx)
	if err != nil {
		return err
	}
	bookingRecords, err := s.feeds.FetchBookings(ctx)
	if err != nil {
		return err
	}

	records := make([]ingestion.Record, 0, len(aiRecords)+len(bookingRecords))
	records = append(records, aiRecords...)
	records = append(records, bookingRecords...)

	cases := s.normalizer.NormalizeAll(records)
	s.record(ctx, s.queue.Sync(cases))

	snap := s.publish()
	slog.Debug("poll complete", "records", len(records), "active", len(snap.Entries))
	return nil
}

// Snapshot returns the latest published ranking. Before the first successful
// cycle it is empty.
func (s *Service) Snapshot() Snapshot {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	origin, _ := s.Origin()
	return Snapshot{Entries: []ranking.Entry{}, Origin: origin}
}

func (s *Service) Accept(ctx context.Context, caseID string) (ActionResult, error) {
	h, t, changed, err := s.queue.Accept(caseID)
	if err != nil {
		return ActionResult{}, err
	}

	res := ActionResult{Changed: changed}
	if changed {
		s.record(ctx, []models.Transition{t})
		if s.broadcaster != nil {
			s.broadcaster.Publish(h)
		}
		s.publish()
		res.Handoff = &h
		slog.Info("case accepted", "case_id", caseID, "patient_id", h.PatientID, "source", t.Source)
	}
	res.Case, _ = s.queue.Get(caseID)
	return res, nil
}

func (s *Service) Stabilize(ctx context.Context, caseID string) (ActionResult, error) {
	return s.resolve(ctx, caseID, s.queue.Stabilize)
}

func (s *Service) Escalate(ctx context.Context, caseID string) (ActionResult, error) {
	return s.resolve(ctx, caseID, s.queue.Escalate)
}

func (s *Service) resolve(ctx context.Context, caseID string, apply func(string) (models.Transition, bool, error)) (ActionResult, error) {
	t, changed, err := apply(caseID)
	if err != nil {
		return ActionResult{}, err
	}
	if changed {
		s.record(ctx, []models.Transition{t})
		s.publish()
		slog.Info("case resolved", "case_id", caseID, "status", t.To)
	}
	c, _ := s.queue.Get(caseID)
	return ActionResult{Case: c, Changed: changed}, nil
}

// publish ranks the queue's current active cases and swaps the snapshot in.
func (s *Service) publish() *Snapshot {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	origin, _ := s.Origin()
	snap := &Snapshot{
		Entries:     ranking.Rank(s.queue.Active(), origin),
		Origin:      origin,
		GeneratedAt: s.now(),
	}
	s.snapshot.Store(snap)
	return snap
}

func (s *Service) record(ctx context.Context, transitions []models.Transition) {
	if s.audit == nil {
		return
	}
	for _, t := range transitions {
		if err := s.audit.AddTransition(ctx, t); err != nil {
			slog.Error("error recording transition", "case_id", t.CaseID, "to", t.To, "error", err)
		}
	}
}
