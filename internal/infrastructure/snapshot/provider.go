package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/geo"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/ports"
)

// Provider caches an immutable reference snapshot behind an atomic pointer.
// Readers never block on vocabulary writes: a write rebuilds a fresh
// snapshot and swaps the pointer, while in-flight parses keep the one they
// loaded.
type Provider struct {
	refs    ports.ReferenceStore
	geoRepo ports.GeoRepository

	current atomic.Pointer[ports.RefSnapshot]
	version atomic.Uint64
}

var _ ports.SnapshotProvider = (*Provider)(nil)

func NewProvider(refs ports.ReferenceStore, geoRepo ports.GeoRepository) *Provider {
	return &Provider{refs: refs, geoRepo: geoRepo}
}

func (p *Provider) Current(ctx context.Context) (*ports.RefSnapshot, error) {
	if snap := p.current.Load(); snap != nil {
		return snap, nil
	}
	return p.Refresh(ctx)
}

// Refresh rebuilds the snapshot from storage and publishes it. Only active
// approved entries are visible to extractors; pending learned vocabulary
// stays out of the parse path until promoted.
func (p *Provider) Refresh(ctx context.Context) (*ports.RefSnapshot, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "snapshot.provider"))

	entries, err := p.refs.List(ctx, ports.ReferenceFilter{
		ApprovalStatus: vocab.ApprovalApproved,
		ActiveOnly:     true,
	})
	if err != nil {
		return nil, errs.Wrap(err, "list reference entries")
	}

	byCategory := make(map[vocab.Category][]vocab.Entry)
	for _, entry := range entries {
		byCategory[entry.Category] = append(byCategory[entry.Category], entry)
	}

	records, err := p.geoRepo.ListNodes(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list geo nodes")
	}

	snap := &ports.RefSnapshot{
		Version:   p.version.Add(1),
		Entries:   byCategory,
		Gazetteer: geo.BuildGazetteer(records),
	}
	p.current.Store(snap)

	logging.Info(logCtx, "reference snapshot published",
		slog.Uint64("version", snap.Version),
		slog.Int("entries", len(entries)),
		slog.Int("geo_nodes", snap.Gazetteer.Len()),
	)
	return snap, nil
}
