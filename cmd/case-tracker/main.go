package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mr1hm/go-triage-queue/internal/config"
	"github.com/mr1hm/go-triage-queue/internal/ingestion"
	"github.com/mr1hm/go-triage-queue/internal/logging"
	"github.com/mr1hm/go-triage-queue/internal/tracker"
)

// case-tracker follows a single case through its lifecycle and logs each
// step the patient would see.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup("case-tracker", cfg.Logging.Level)

	caseID := cfg.Tracker.CaseID
	if len(os.Args) > 1 {
		caseID = os.Args[1]
	}
	if caseID == "" {
		logging.Fatalf("no case id: set TRACKER_CASE_ID or pass it as an argument")
	}

	client := ingestion.NewClient(cfg.Backend.BaseURL, ingestion.Paths{
		AITriage:   cfg.Backend.AITriagePath,
		Booking:    cfg.Backend.BookingPath,
		Doctor:     cfg.Backend.DoctorPath,
		CaseStatus: cfg.Backend.CaseStatusPath,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := tracker.New(client, caseID, cfg.Tracker.PollInterval)
	done := make(chan struct{})
	t.OnChange = func(p tracker.Progress) {
		slog.Info("case progress", "case_id", p.CaseID, "step", p.Label, "status", p.Status)
		if p.Done() {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}

	slog.Info("tracking case", "case_id", caseID, "interval", cfg.Tracker.PollInterval)
	t.Start(ctx)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case <-done:
		slog.Info("case resolved")
	}
	t.Stop()
}
