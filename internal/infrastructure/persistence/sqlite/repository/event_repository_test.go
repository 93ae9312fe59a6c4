package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/ports"
)

func sampleEvent(postID string) parse.ParsedEvent {
	return parse.ParsedEvent{
		PostID:      postID,
		EventType:   "बैठक",
		EventTypeEN: "Meeting",
		EventCode:   "baithak",
		Locations: []geo.Resolution{
			{
				RawMention: "रायगढ़",
				Path: geo.Path{
					{ID: 1, Type: geo.LevelDistrict, Name: "रायगढ़"},
				},
			},
			{
				RawMention: "नवागांव",
				Ambiguous:  true,
				Candidates: []geo.Path{
					{{ID: 1, Type: geo.LevelDistrict, Name: "रायगढ़"}, {ID: 5, Type: geo.LevelVillage, Name: "नवागांव"}},
					{{ID: 2, Type: geo.LevelDistrict, Name: "रायपुर"}, {ID: 9, Type: geo.LevelVillage, Name: "नवागांव"}},
				},
			},
		},
		People:            []string{"रमन सिंह"},
		Schemes:           []string{"मनरेगा"},
		GeneratedHashtags: []string{"#बैठक"},
		OverallConfidence: 0.72,
		ReviewStatus:      parse.ReviewPending,
		Reasoning:         "majority vote",
		ParsedAt:          time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		ParsedBy:          "hosted+local+rule",
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	repo := NewEventRepository(setupDB(t))
	ctx := context.Background()

	if err := repo.Save(ctx, sampleEvent("post-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EventType != "बैठक" || got.EventCode != "baithak" {
		t.Fatalf("event fields lost: %+v", got)
	}
	if len(got.Locations) != 2 {
		t.Fatalf("locations lost: %+v", got.Locations)
	}
	if !got.Locations[0].Resolved() {
		t.Fatalf("resolved location lost: %+v", got.Locations[0])
	}
	if !got.Locations[1].Ambiguous || len(got.Locations[1].Candidates) != 2 {
		t.Fatalf("ambiguity not preserved: %+v", got.Locations[1])
	}
	if !got.ParsedAt.Equal(sampleEvent("post-1").ParsedAt) {
		t.Fatalf("parsed_at drifted: %v", got.ParsedAt)
	}
}

func TestSaveAppendsRevisionOnUpdate(t *testing.T) {
	repo := NewEventRepository(setupDB(t))
	ctx := context.Background()

	original := sampleEvent("post-1")
	if err := repo.Save(ctx, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	corrected := original
	corrected.EventType = "रैली"
	corrected.EventCode = "rally"
	corrected.ReviewStatus = parse.ReviewCorrected
	if err := repo.Save(ctx, corrected); err != nil {
		t.Fatalf("save corrected: %v", err)
	}

	current, err := repo.Get(ctx, "post-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.EventCode != "rally" {
		t.Fatalf("current row not updated: %+v", current)
	}

	revisions, err := repo.Revisions(ctx, "post-1")
	if err != nil {
		t.Fatalf("revisions: %v", err)
	}
	if len(revisions) != 1 {
		t.Fatalf("expected 1 prior revision, got %d", len(revisions))
	}
	if revisions[0].EventCode != "baithak" {
		t.Fatalf("prior revision should hold the original, got %+v", revisions[0])
	}
}

func TestListFilters(t *testing.T) {
	repo := NewEventRepository(setupDB(t))
	ctx := context.Background()

	early := sampleEvent("post-early")
	early.ParsedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	late := sampleEvent("post-late")
	late.ParsedAt = time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	late.EventCode = "rally"
	late.NeedsReview = true

	for _, event := range []parse.ParsedEvent{early, late} {
		if err := repo.Save(ctx, event); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	byCode, err := repo.List(ctx, ports.EventFilter{EventCode: "rally"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byCode) != 1 || byCode[0].PostID != "post-late" {
		t.Fatalf("event code filter wrong: %+v", byCode)
	}

	needsReview := true
	flagged, err := repo.List(ctx, ports.EventFilter{NeedsReview: &needsReview})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flagged) != 1 || flagged[0].PostID != "post-late" {
		t.Fatalf("needs_review filter wrong: %+v", flagged)
	}

	windowed, err := repo.List(ctx, ports.EventFilter{
		From: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(windowed) != 1 || windowed[0].PostID != "post-late" {
		t.Fatalf("window filter wrong: %+v", windowed)
	}
}

func TestGetUnknownPost(t *testing.T) {
	repo := NewEventRepository(setupDB(t))

	_, err := repo.Get(context.Background(), "nahi-hai")
	if !errors.Is(err, ports.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestCorrectionCreateIsIdempotent(t *testing.T) {
	repo := NewCorrectionEventRepository(setupDB(t))
	ctx := context.Background()

	record := ports.CorrectionRecord{
		IdempotencyKey: "key-1",
		PostID:         "post-1",
		Reviewer:       "asha",
		SessionID:      "asha@2026-08-20",
		Field:          "schemes",
		Category:       "scheme",
		EntryCode:      "manrega",
		Value:          "मनरेगा",
	}

	inserted, err := repo.Create(ctx, record)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert should report inserted")
	}

	replayed, err := repo.Create(ctx, record)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed {
		t.Fatalf("replay with the same idempotency key must be a no-op")
	}
}

func TestDistinctSessionsCountsOncePerSession(t *testing.T) {
	repo := NewCorrectionEventRepository(setupDB(t))
	ctx := context.Background()

	records := []ports.CorrectionRecord{
		{IdempotencyKey: "k1", SessionID: "s1", Category: "scheme", EntryCode: "manrega"},
		{IdempotencyKey: "k2", SessionID: "s1", Category: "scheme", EntryCode: "manrega"},
		{IdempotencyKey: "k3", SessionID: "s2", Category: "scheme", EntryCode: "manrega"},
		{IdempotencyKey: "k4", SessionID: "s3", Category: "scheme", EntryCode: "anya"},
	}
	for _, record := range records {
		if _, err := repo.Create(ctx, record); err != nil {
			t.Fatalf("create %s: %v", record.IdempotencyKey, err)
		}
	}

	sessions, err := repo.DistinctSessions(ctx, "scheme", "manrega")
	if err != nil {
		t.Fatalf("distinct sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 distinct sessions, got %v", sessions)
	}
}
