package ports

import (
	"context"
	"errors"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/vocab"
)

var (
	ErrEntryNotFound = errors.New("reference entry not found")
	ErrEventNotFound = errors.New("parsed event not found")
)

// ReferenceFilter narrows reference vocabulary listings. Zero fields mean no
// restriction.
type ReferenceFilter struct {
	Category       vocab.Category
	ApprovalStatus vocab.ApprovalStatus
	Provenance     vocab.Provenance
	ActiveOnly     bool
}

// ReferenceStore is the read/write contract over the reference vocabulary.
// Upsert is keyed on (category, canonical code): concurrent writers converge
// on one row, usage counts only ever grow.
type ReferenceStore interface {
	List(ctx context.Context, filter ReferenceFilter) ([]vocab.Entry, error)
	FindByCode(ctx context.Context, category vocab.Category, code string) (vocab.Entry, error)
	Upsert(ctx context.Context, entry vocab.Entry) (vocab.Entry, error)
	IncrementUsage(ctx context.Context, category vocab.Category, code string, delta int) error
	SetApproval(ctx context.Context, category vocab.Category, code string, status vocab.ApprovalStatus) error
	Deactivate(ctx context.Context, category vocab.Category, code string) error
}

// GeoRepository persists gazetteer nodes.
type GeoRepository interface {
	ListNodes(ctx context.Context) ([]geo.GazetteerRecord, error)
	UpsertNode(ctx context.Context, record geo.GazetteerRecord) (uint64, error)
}

// RefSnapshot is an immutable view of the full reference dataset taken at one
// point in time. Parses in flight keep reading the snapshot they started
// with; a vocabulary write publishes a fresh one.
type RefSnapshot struct {
	Version   uint64
	Entries   map[vocab.Category][]vocab.Entry
	Gazetteer *geo.Gazetteer
}

// EntriesFor returns the approved, active entries of one category.
func (s *RefSnapshot) EntriesFor(category vocab.Category) []vocab.Entry {
	if s == nil || s.Entries == nil {
		return nil
	}
	return s.Entries[category]
}

// SnapshotProvider hands out the current reference snapshot and rebuilds it
// after writes.
type SnapshotProvider interface {
	Current(ctx context.Context) (*RefSnapshot, error)
	Refresh(ctx context.Context) (*RefSnapshot, error)
}
