package jobs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hkhalifa/versemind/internal/db"
)

// Store persists job records in SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a job store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a queued job for the document and returns it.
func (s *Store) Create(ctx context.Context, documentID string) (*Job, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, document_id, status) VALUES (?, ?, ?)`,
		id, documentID, StatusQueued,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the job, or nil if it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, stage, progress, status, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)

	var j Job
	err := row.Scan(&j.ID, &j.DocumentID, &j.Stage, &j.Progress, &j.Status,
		&j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	return &j, nil
}

// ListByDocument returns the document's jobs, newest first.
func (s *Store) ListByDocument(ctx context.Context, documentID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, stage, progress, status, error, created_at, updated_at
		 FROM jobs WHERE document_id = ? ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.Stage, &j.Progress, &j.Status,
			&j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateProgress records the job's current stage and progress.
// Progress is clamped to [0, 1] to satisfy the schema check.
func (s *Store) UpdateProgress(ctx context.Context, id, stage string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET stage = ?, progress = ?, updated_at = datetime('now') WHERE id = ?`,
		stage, progress, id)
	if err != nil {
		return fmt.Errorf("updating job progress: %w", err)
	}
	return nil
}

// UpdateStatus transitions the job's status. The error detail is kept
// only for failed jobs.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errDetail string) error {
	if status != StatusFailed {
		errDetail = ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?`,
		status, errDetail, id)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}
