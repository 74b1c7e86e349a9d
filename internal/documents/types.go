package documents

import "time"

// Category identifies the structure of an uploaded document.
type Category string

const (
	// CategoryVersed is structured scripture content: books, chapters, verses.
	CategoryVersed Category = "versed"
	// CategoryFreeform is plain prose without internal structure.
	CategoryFreeform Category = "freeform"
)

// Valid reports whether c is a recognized category.
func (c Category) Valid() bool {
	return c == CategoryVersed || c == CategoryFreeform
}

// Status is the lifecycle state of a document.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document represents one uploaded unit of content.
type Document struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Category  Category          `json:"category"`
	Size      int64             `json:"size"`
	MediaType string            `json:"media_type"`
	Status    Status            `json:"status"`
	Owner     string            `json:"owner"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Status   Status
	Category Category
	Owner    string
	Limit    int
	Offset   int
}

// Stats summarizes the document corpus.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}
