package ports

import (
	"context"
	"time"

	"janmat/internal/domain/parse"
)

// EventFilter narrows parsed-event listings for analytics and review queues.
// Absent fields mean no restriction, never an empty result.
type EventFilter struct {
	EventCode    string
	ReviewStatus parse.ReviewStatus
	NeedsReview  *bool
	From         time.Time
	To           time.Time
}

// ParsedEventRepository stores consensus output keyed by post id. Saving over
// an existing post appends the prior record to an immutable revision history
// before replacing the current row.
type ParsedEventRepository interface {
	Save(ctx context.Context, event parse.ParsedEvent) error
	Get(ctx context.Context, postID string) (parse.ParsedEvent, error)
	List(ctx context.Context, filter EventFilter) ([]parse.ParsedEvent, error)
	Revisions(ctx context.Context, postID string) ([]parse.ParsedEvent, error)
}

// CorrectionRecord is one applied human-review decision, deduplicated by its
// idempotency key.
type CorrectionRecord struct {
	IdempotencyKey string
	PostID         string
	Reviewer       string
	SessionID      string
	Field          string
	Category       string
	EntryCode      string
	Value          string
	CreatedAt      time.Time
}

// CorrectionRepository stores review feedback events. Create reports whether
// the record was newly inserted; a replayed idempotency key inserts nothing.
type CorrectionRepository interface {
	Create(ctx context.Context, record CorrectionRecord) (inserted bool, err error)
	DistinctSessions(ctx context.Context, category string, entryCode string) ([]string, error)
}
