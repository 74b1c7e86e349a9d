package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hkhalifa/versemind/internal/db"
)

// Store manages persistence of documents in the metadata database.
type Store struct {
	db *db.DB
}

// NewStore creates a new document store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new document with status queued.
func (s *Store) Create(ctx context.Context, doc Document) (*Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = StatusQueued
	}
	if doc.MediaType == "" {
		doc.MediaType = "application/octet-stream"
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	if doc.Metadata == nil {
		meta = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, category, size, media_type, status, owner, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.Category, doc.Size, doc.MediaType, doc.Status, doc.Owner, string(meta), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return &doc, nil
}

// Get retrieves a document by ID. Returns nil if not found.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, size, media_type, status, owner, error, metadata, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// List returns documents matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT id, name, category, size, media_type, status, owner, error, metadata, created_at, updated_at
		 FROM documents WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Owner != "" {
		query += " AND owner = ?"
		args = append(args, filter.Owner)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateStatus transitions a document's lifecycle status. The error
// detail is stored for failed documents and cleared otherwise.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errDetail string) error {
	if status != StatusFailed {
		errDetail = ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, errDetail, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return nil
}

// Delete removes a document together with its fragment and job rows.
// The child rows are deleted by direct statements in one transaction,
// so the FTS triggers on fragments always run and lexical search never
// serves content from a deleted document.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("deleting document fragments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("deleting document jobs: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("document %s not found", id)
	}
	return tx.Commit()
}

// Stats returns corpus-level counts by status.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats.Total += count
		switch status {
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		default:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row *sql.Row) (*Document, error) {
	doc, err := scanDocumentRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return doc, err
}

func scanDocumentRows(row scannable) (*Document, error) {
	var doc Document
	var meta string
	err := row.Scan(&doc.ID, &doc.Name, &doc.Category, &doc.Size, &doc.MediaType,
		&doc.Status, &doc.Owner, &doc.Error, &meta, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling document metadata: %w", err)
		}
	}
	return &doc, nil
}
