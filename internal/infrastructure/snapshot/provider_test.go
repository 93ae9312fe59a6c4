package snapshot

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/vocab"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "janmat/internal/infrastructure/persistence/sqlite/repository"
	"janmat/internal/ports"
)

func setupProvider(t *testing.T) (*Provider, ports.ReferenceStore, ports.GeoRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.ReferenceEntry{}, &model.GeoNode{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	refs := sqliterepo.NewReferenceRepository(db)
	geoRepo := sqliterepo.NewGeoNodeRepository(db)
	return NewProvider(refs, geoRepo), refs, geoRepo
}

func upsertEntry(t *testing.T, refs ports.ReferenceStore, entry vocab.Entry) {
	t.Helper()
	if _, err := refs.Upsert(context.Background(), entry); err != nil {
		t.Fatalf("upsert %s: %v", entry.Code, err)
	}
}

func TestCurrentLoadsLazily(t *testing.T) {
	provider, refs, _ := setupProvider(t)
	ctx := context.Background()

	upsertEntry(t, refs, vocab.Entry{
		Code: "baithak", Category: vocab.CategoryEventType, NameHI: "बैठक",
		IsActive: true, Provenance: vocab.ProvenanceSeeded, ApprovalStatus: vocab.ApprovalApproved,
	})

	snap, err := provider.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if snap.Version != 1 {
		t.Fatalf("version %d, want 1", snap.Version)
	}
	if got := len(snap.EntriesFor(vocab.CategoryEventType)); got != 1 {
		t.Fatalf("entries %d, want 1", got)
	}

	again, err := provider.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if again != snap {
		t.Fatalf("repeated reads must share the published snapshot")
	}
}

func TestRefreshExcludesPendingAndInactive(t *testing.T) {
	provider, refs, _ := setupProvider(t)
	ctx := context.Background()

	upsertEntry(t, refs, vocab.Entry{
		Code: "approved", Category: vocab.CategoryScheme, NameHI: "स्वीकृत",
		IsActive: true, Provenance: vocab.ProvenanceSeeded, ApprovalStatus: vocab.ApprovalApproved,
	})
	upsertEntry(t, refs, vocab.Entry{
		Code: "pending", Category: vocab.CategoryScheme, NameHI: "लंबित",
		IsActive: true, Provenance: vocab.ProvenanceLearned, ApprovalStatus: vocab.ApprovalPending,
	})
	upsertEntry(t, refs, vocab.Entry{
		Code: "retired", Category: vocab.CategoryScheme, NameHI: "निष्क्रिय",
		IsActive: false, Provenance: vocab.ProvenanceSeeded, ApprovalStatus: vocab.ApprovalApproved,
	})

	snap, err := provider.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	schemes := snap.EntriesFor(vocab.CategoryScheme)
	if len(schemes) != 1 || schemes[0].Code != "approved" {
		t.Fatalf("published schemes %+v", schemes)
	}
}

func TestRefreshPublishesNewVersionWithoutDisturbingHolders(t *testing.T) {
	provider, refs, geoRepo := setupProvider(t)
	ctx := context.Background()

	held, err := provider.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if held.Gazetteer.Len() != 0 {
		t.Fatalf("empty store should publish an empty gazetteer")
	}

	upsertEntry(t, refs, vocab.Entry{
		Code: "rally", Category: vocab.CategoryEventType, NameHI: "रैली",
		IsActive: true, Provenance: vocab.ProvenanceSeeded, ApprovalStatus: vocab.ApprovalApproved,
	})
	if _, err := geoRepo.UpsertNode(ctx, geo.GazetteerRecord{
		Node: geo.Node{Type: geo.LevelDistrict, Name: "रायपुर"},
	}); err != nil {
		t.Fatalf("upsert node: %v", err)
	}

	fresh, err := provider.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.Version != held.Version+1 {
		t.Fatalf("version %d after %d", fresh.Version, held.Version)
	}
	if fresh.Gazetteer.Len() != 1 {
		t.Fatalf("fresh gazetteer %d nodes", fresh.Gazetteer.Len())
	}

	// The snapshot loaded before the write is immutable for its holder.
	if held.Gazetteer.Len() != 0 || len(held.EntriesFor(vocab.CategoryEventType)) != 0 {
		t.Fatalf("held snapshot mutated")
	}

	current, err := provider.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if current != fresh {
		t.Fatalf("current must serve the latest published snapshot")
	}
}

func TestRefreshRequiresContext(t *testing.T) {
	provider, _, _ := setupProvider(t)
	var ctx context.Context
	if _, err := provider.Refresh(ctx); err == nil {
		t.Fatalf("nil context must fail")
	}
}
