package fragments

import (
	"fmt"
	"strconv"
	"strings"
)

// Fragment is one atomic retrievable unit of text derived from a document.
// Sequence indices are contiguous from 0 within one generation.
type Fragment struct {
	DocumentID string   `json:"document_id"`
	Seq        int      `json:"seq"`
	Content    string   `json:"content"`
	Citation   Citation `json:"citation"`
}

// Key returns the fragment's stable identifier, shared between the
// relational store and the vector store.
func (f Fragment) Key() string {
	return Key(f.DocumentID, f.Seq)
}

// Key builds the canonical fragment identifier for a document and
// sequence index.
func Key(documentID string, seq int) string {
	return documentID + ":" + strconv.Itoa(seq)
}

// ParseKey splits a fragment identifier back into document ID and
// sequence index.
func ParseKey(key string) (documentID string, seq int, err error) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("malformed fragment key %q", key)
	}
	seq, err = strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed fragment key %q", key)
	}
	return key[:i], seq, nil
}

// Citation locates a fragment inside its source document. Versed
// fragments use book/chapter/verse-range; free-form fragments use
// source name, page and paragraph.
type Citation struct {
	Book       string `json:"book,omitempty"`
	Chapter    string `json:"chapter,omitempty"`
	VerseStart int    `json:"verse_start,omitempty"`
	VerseEnd   int    `json:"verse_end,omitempty"`
	Source     string `json:"source,omitempty"`
	Page       int    `json:"page,omitempty"`
	Paragraph  int    `json:"paragraph,omitempty"`
}

// Display renders the citation as human-readable reference text.
func (c Citation) Display() string {
	if c.Book != "" {
		if c.VerseStart == c.VerseEnd {
			return fmt.Sprintf("%s %s:%d", c.Book, c.Chapter, c.VerseStart)
		}
		return fmt.Sprintf("%s %s:%d-%d", c.Book, c.Chapter, c.VerseStart, c.VerseEnd)
	}
	return fmt.Sprintf("%s, p.%d §%d", c.Source, c.Page, c.Paragraph)
}

// ValidationError reports input that could not be parsed into fragments.
// It is surfaced synchronously to the uploader; no job is run against
// malformed content.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
