package fragments

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hkhalifa/versemind/internal/db"
)

// StoredFragment is a fragment row with its denormalized parent fields
// and the parent's declared size, read live from the documents table.
type StoredFragment struct {
	Fragment
	DocName     string `json:"doc_name"`
	DocCategory string `json:"doc_category"`
	DocSize     int64  `json:"doc_size"`
}

// LexicalHit is one full-text search match, best first.
type LexicalHit struct {
	DocumentID string
	Seq        int
	// Score is the negated bm25 value, so higher is better.
	Score float64
}

// Key returns the hit's fragment identifier.
func (h LexicalHit) Key() string {
	return Key(h.DocumentID, h.Seq)
}

// Store persists fragments in the metadata database and serves lexical
// (full-text) search over their content.
type Store struct {
	db *db.DB
}

// NewStore creates a new fragment store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Upsert writes fragments keyed by (document_id, seq), replacing any
// prior row for the same key. Retried stage executions are therefore
// safe: re-storing a generation never duplicates rows.
func (s *Store) Upsert(ctx context.Context, frags []Fragment, docName, docCategory string) error {
	if len(frags) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning fragment upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fragments (document_id, seq, content, citation, citation_meta, doc_name, doc_category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, seq) DO UPDATE SET
		     content = excluded.content,
		     citation = excluded.citation,
		     citation_meta = excluded.citation_meta,
		     doc_name = excluded.doc_name,
		     doc_category = excluded.doc_category`)
	if err != nil {
		return fmt.Errorf("preparing fragment upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, f := range frags {
		meta, err := json.Marshal(f.Citation)
		if err != nil {
			return fmt.Errorf("marshalling citation for %s: %w", f.Key(), err)
		}
		if _, err := stmt.ExecContext(ctx,
			f.DocumentID, f.Seq, f.Content, f.Citation.Display(), string(meta), docName, docCategory, now,
		); err != nil {
			return fmt.Errorf("upserting fragment %s: %w", f.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fragment upsert: %w", err)
	}
	return nil
}

// DeleteByDocument purges a document's fragment generation.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM fragments WHERE document_id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("deleting fragments for %s: %w", documentID, err)
	}
	return nil
}

// CountByDocument returns the current generation's fragment count.
func (s *Store) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM fragments WHERE document_id = ?`, documentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting fragments for %s: %w", documentID, err)
	}
	return count, nil
}

// GetByKeys fetches fragment rows for the given fragment identifiers.
// Missing keys are absent from the result, not an error.
func (s *Store) GetByKeys(ctx context.Context, keys []string) (map[string]StoredFragment, error) {
	result := make(map[string]StoredFragment, len(keys))
	for _, key := range keys {
		docID, seq, err := ParseKey(key)
		if err != nil {
			return nil, err
		}

		var f StoredFragment
		var meta string
		err = s.db.QueryRowContext(ctx,
			`SELECT f.document_id, f.seq, f.content, f.citation_meta, f.doc_name, f.doc_category, d.size
			 FROM fragments f JOIN documents d ON d.id = f.document_id
			 WHERE f.document_id = ? AND f.seq = ?`, docID, seq,
		).Scan(&f.DocumentID, &f.Seq, &f.Content, &meta, &f.DocName, &f.DocCategory, &f.DocSize)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetching fragment %s: %w", key, err)
		}
		if err := json.Unmarshal([]byte(meta), &f.Citation); err != nil {
			return nil, fmt.Errorf("unmarshalling citation for %s: %w", key, err)
		}
		result[key] = f
	}
	return result, nil
}

// SearchLexical returns the top full-text matches for the query,
// ranked by bm25. An empty or symbol-only query yields no hits.
func (s *Store) SearchLexical(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT f.document_id, f.seq, bm25(fragments_fts) AS rank
		 FROM fragments_fts
		 JOIN fragments f ON f.rowid = fragments_fts.rowid
		 WHERE fragments_fts MATCH ?
		 ORDER BY rank ASC, f.document_id ASC, f.seq ASC
		 LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var rank float64
		if err := rows.Scan(&h.DocumentID, &h.Seq, &rank); err != nil {
			return nil, fmt.Errorf("scanning lexical hit: %w", err)
		}
		h.Score = -rank
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery converts free text into a safe FTS5 MATCH expression:
// each word is quoted and the words are OR-ed together.
func ftsQuery(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !isWordRune(r)
	})
	if len(words) == 0 {
		return ""
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " OR ")
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r > 127:
		// Keep non-ASCII letters so non-English scripture is searchable.
		return true
	}
	return false
}
