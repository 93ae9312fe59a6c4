package learning

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"janmat/internal/domain/parse"
	"janmat/internal/domain/vocab"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "janmat/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "janmat/internal/infrastructure/persistence/sqlite/uow"
	"janmat/internal/infrastructure/snapshot"
	"janmat/internal/ports"
)

func setupService(t *testing.T) (*Service, ports.ReferenceStore, ports.ParsedEventRepository) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.ReferenceEntry{},
		&model.GeoNode{},
		&model.ParsedEvent{},
		&model.ParsedEventRevision{},
		&model.CorrectionEvent{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	refs := sqliterepo.NewReferenceRepository(db)
	geoRepo := sqliterepo.NewGeoNodeRepository(db)
	events := sqliterepo.NewEventRepository(db)
	corrections := sqliterepo.NewCorrectionEventRepository(db)
	uow := sqliteuow.NewUnitOfWork(db)
	snapshots := snapshot.NewProvider(refs, geoRepo)

	return NewService(refs, corrections, events, snapshots, uow, 2), refs, events
}

func savedEvent(t *testing.T, events ports.ParsedEventRepository, postID string) parse.ParsedEvent {
	t.Helper()
	event := parse.ParsedEvent{
		PostID:       postID,
		EventType:    "बैठक",
		EventCode:    "baithak",
		Schemes:      []string{"मनरेगा"},
		NeedsReview:  true,
		ReviewStatus: parse.ReviewPending,
	}
	if err := events.Save(context.Background(), event); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func TestApproveMarksEventReviewed(t *testing.T) {
	svc, _, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")

	result, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:   "post-1",
		Reviewer: "asha",
		Decision: DecisionApprove,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !result.Applied || result.ReviewStatus != parse.ReviewApproved {
		t.Fatalf("unexpected result: %+v", result)
	}

	got, err := events.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReviewStatus != parse.ReviewApproved || got.NeedsReview {
		t.Fatalf("event not marked approved: %+v", got)
	}
}

func TestCorrectionCreatesPendingEntry(t *testing.T) {
	svc, refs, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")

	result, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:    "post-1",
		Reviewer:  "asha",
		SessionID: "s1",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{Schemes: []string{"मनरेगा", "नई योजना"}},
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if !result.Applied || result.Duplicate {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.NewPending) != 1 {
		t.Fatalf("expected one new pending entry, got %v", result.NewPending)
	}

	entry, err := refs.FindByCode(ctx, vocab.CategoryScheme, result.NewPending[0])
	if err != nil {
		t.Fatalf("find learned entry: %v", err)
	}
	if entry.Provenance != vocab.ProvenanceLearned || entry.ApprovalStatus != vocab.ApprovalPending {
		t.Fatalf("learned entry in wrong state: %+v", entry)
	}
	if entry.UsageCount != 1 {
		t.Fatalf("usage count %d, want 1", entry.UsageCount)
	}

	got, err := events.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReviewStatus != parse.ReviewCorrected || got.NeedsReview {
		t.Fatalf("event not marked corrected: %+v", got)
	}

	revisions, err := events.Revisions(ctx, "post-1")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("correction must append a revision, got %d", len(revisions))
	}
}

func TestCorrectionReplayIsIdempotent(t *testing.T) {
	svc, refs, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")

	// The published entry keeps its canonical Hindi name; the reviewer writes
	// an alias, so the stored event never equals the submitted value and a
	// blind retry re-diffs the same correction.
	if _, err := refs.Upsert(ctx, vocab.Entry{
		Code:           "rally",
		Category:       vocab.CategoryEventType,
		NameHI:         "रैली",
		Aliases:        []string{"विशाल रैली"},
		IsActive:       true,
		Provenance:     vocab.ProvenanceSeeded,
		ApprovalStatus: vocab.ApprovalApproved,
	}); err != nil {
		t.Fatalf("seed vocab: %v", err)
	}

	input := CorrectionInput{
		PostID:    "post-1",
		Reviewer:  "asha",
		SessionID: "s1",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{EventType: "विशाल रैली"},
	}

	first, err := svc.SubmitCorrection(ctx, input)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Duplicate || len(first.NewPending) != 0 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	got, err := events.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EventType != "रैली" || got.EventCode != "rally" {
		t.Fatalf("alias correction should join the canonical entry: %+v", got)
	}

	second, err := svc.SubmitCorrection(ctx, input)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("replay should be flagged duplicate: %+v", second)
	}
	if len(second.NewPending) != 0 || len(second.Promoted) != 0 {
		t.Fatalf("replay must not learn again: %+v", second)
	}

	entry, err := refs.FindByCode(ctx, vocab.CategoryEventType, "rally")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry.UsageCount != 1 {
		t.Fatalf("replay must not increment usage, got %d", entry.UsageCount)
	}

	revisions, err := events.Revisions(ctx, "post-1")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("replay must not append revisions, got %d", len(revisions))
	}
}

func TestTypeOnlyCorrectionKeepsSchemeJoinsIntact(t *testing.T) {
	svc, refs, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")

	if _, err := refs.Upsert(ctx, vocab.Entry{
		Code:           "manrega",
		Category:       vocab.CategoryScheme,
		NameHI:         "मनरेगा",
		NameEN:         "MGNREGA",
		IsActive:       true,
		Provenance:     vocab.ProvenanceSeeded,
		ApprovalStatus: vocab.ApprovalApproved,
	}); err != nil {
		t.Fatalf("seed vocab: %v", err)
	}

	// Two event-type corrections in a row; neither touches the schemes, so
	// each rewrite re-matches the same scheme against the snapshot.
	for _, eventType := range []string{"रैली", "यात्रा"} {
		if _, err := svc.SubmitCorrection(ctx, CorrectionInput{
			PostID:    "post-1",
			Reviewer:  "asha",
			SessionID: "s1",
			Decision:  DecisionCorrect,
			Fields:    CorrectedFields{EventType: eventType},
		}); err != nil {
			t.Fatalf("correct to %q: %v", eventType, err)
		}
	}

	got, err := events.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.MatchedSchemeIDs) != 1 {
		t.Fatalf("scheme IDs must not accumulate across rewrites: %v", got.MatchedSchemeIDs)
	}
	if len(got.SchemeLabelsEN) != 1 || got.SchemeLabelsEN[0] != "MGNREGA" {
		t.Fatalf("scheme labels must not accumulate across rewrites: %v", got.SchemeLabelsEN)
	}
}

func TestPromotionAfterTwoDistinctSessions(t *testing.T) {
	svc, refs, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")
	savedEvent(t, events, "post-2")
	savedEvent(t, events, "post-3")

	first, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:    "post-1",
		Reviewer:  "asha",
		SessionID: "s1",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{Schemes: []string{"नई योजना"}},
	})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if len(first.Promoted) != 0 {
		t.Fatalf("one session must not promote: %+v", first)
	}
	code := first.NewPending[0]

	// Same reviewer, same sitting, different post: still one session.
	sameSession, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:    "post-2",
		Reviewer:  "asha",
		SessionID: "s1",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{Schemes: []string{"नई योजना"}},
	})
	if err != nil {
		t.Fatalf("same session: %v", err)
	}
	if len(sameSession.Promoted) != 0 {
		t.Fatalf("same session must not promote: %+v", sameSession)
	}

	second, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:    "post-3",
		Reviewer:  "ravi",
		SessionID: "s2",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{Schemes: []string{"नई योजना"}},
	})
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if len(second.Promoted) != 1 || second.Promoted[0] != code {
		t.Fatalf("second distinct session should promote %q: %+v", code, second)
	}

	entry, err := refs.FindByCode(ctx, vocab.CategoryScheme, code)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if entry.ApprovalStatus != vocab.ApprovalApproved {
		t.Fatalf("entry not approved: %+v", entry)
	}
}

func TestCorrectionMatchingExistingVocabDoesNotLearn(t *testing.T) {
	svc, refs, events := setupService(t)
	ctx := context.Background()
	savedEvent(t, events, "post-1")

	if _, err := refs.Upsert(ctx, vocab.Entry{
		Code:           "rally",
		Category:       vocab.CategoryEventType,
		NameHI:         "रैली",
		NameEN:         "Rally",
		IsActive:       true,
		Provenance:     vocab.ProvenanceSeeded,
		ApprovalStatus: vocab.ApprovalApproved,
	}); err != nil {
		t.Fatalf("seed vocab: %v", err)
	}

	result, err := svc.SubmitCorrection(ctx, CorrectionInput{
		PostID:    "post-1",
		Reviewer:  "asha",
		SessionID: "s1",
		Decision:  DecisionCorrect,
		Fields:    CorrectedFields{EventType: "रैली"},
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if len(result.NewPending) != 0 {
		t.Fatalf("correction to a known value must not create entries: %+v", result)
	}

	got, err := events.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EventCode != "rally" || got.EventTypeEN != "Rally" {
		t.Fatalf("corrected event should join the existing vocab: %+v", got)
	}
}

func TestCorrectionUnknownPost(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.SubmitCorrection(context.Background(), CorrectionInput{
		PostID:   "nahi-hai",
		Reviewer: "asha",
		Decision: DecisionApprove,
	})
	if err == nil {
		t.Fatalf("unknown post must fail")
	}
}
