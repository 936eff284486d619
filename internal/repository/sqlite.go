package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-triage-queue/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS case_transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			case_id TEXT NOT NULL,
			patient_id TEXT,
			source TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			actor TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_case_transitions_case_id ON case_transitions(case_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) AddTransition(ctx context.Context, t models.Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO case_transitions (id, case_id, patient_id, source, from_status, to_status, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CaseID, t.PatientID, string(t.Source), string(t.From), string(t.To), string(t.Actor), t.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting transition %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListTransitions(ctx context.Context, caseID string) ([]models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, patient_id, source, from_status, to_status, actor, created_at
		FROM case_transitions
		WHERE case_id = ?
		ORDER BY seq ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("error querying transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var t models.Transition
		var patientID sql.NullString
		var source, from, to, actor string
		var createdAt time.Time
		if err := rows.Scan(&t.ID, &t.CaseID, &patientID, &source, &from, &to, &actor, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning transition: %w", err)
		}
		t.PatientID = patientID.String
		t.Source = models.TriggerSource(source)
		t.From = models.CaseStatus(from)
		t.To = models.CaseStatus(to)
		t.Actor = models.TransitionActor(actor)
		t.At = createdAt
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) LatestStatuses(ctx context.Context) (map[string]models.CaseStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_id, to_status
		FROM case_transitions
		WHERE seq IN (SELECT MAX(seq) FROM case_transitions GROUP BY case_id)`)
	if err != nil {
		return nil, fmt.Errorf("error querying latest statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.CaseStatus)
	for rows.Next() {
		var caseID, status string
		if err := rows.Scan(&caseID, &status); err != nil {
			return nil, fmt.Errorf("error scanning status: %w", err)
		}
		out[caseID] = models.CaseStatus(status)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
