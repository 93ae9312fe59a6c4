package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/vocab"
	"janmat/internal/infrastructure/extractor/rule"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "janmat/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "janmat/internal/infrastructure/persistence/sqlite/uow"
	"janmat/internal/infrastructure/snapshot"
	"janmat/internal/ports"
	"janmat/internal/usecase/geoquery"
	"janmat/internal/usecase/learning"
	"janmat/internal/usecase/parsing"
	"janmat/internal/usecase/vocabadmin"
)

// newTestServer wires the full stack on an in-memory database with the rule
// extractor as the only parse layer.
func newTestServer(t *testing.T) *httptest.Server {
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

	seedVocabulary(t, refs, geoRepo)
	if _, err := snapshots.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh snapshot: %v", err)
	}

	parser := parsing.NewService(
		[]ports.Extractor{rule.New(snapshots)},
		snapshots, events, parsing.Options{},
	)
	reviews := learning.NewService(refs, corrections, events, snapshots, uow, 2)
	queries := geoquery.NewService(events, snapshots)
	vocabSvc := vocabadmin.NewService(refs, geoRepo, snapshots, uow)

	server := httptest.NewServer(NewServer(parser, reviews, queries, vocabSvc, Options{}).Router())
	t.Cleanup(server.Close)
	return server
}

func seedVocabulary(t *testing.T, refs ports.ReferenceStore, geoRepo ports.GeoRepository) {
	t.Helper()
	ctx := context.Background()

	entries := []vocab.Entry{
		{Code: "baithak", Category: vocab.CategoryEventType, NameHI: "बैठक", NameEN: "Meeting"},
		{Code: "manrega", Category: vocab.CategoryScheme, NameHI: "मनरेगा", NameEN: "MGNREGA"},
	}
	for _, entry := range entries {
		entry.IsActive = true
		entry.Provenance = vocab.ProvenanceSeeded
		entry.ApprovalStatus = vocab.ApprovalApproved
		if _, err := refs.Upsert(ctx, entry); err != nil {
			t.Fatalf("seed entry %s: %v", entry.Code, err)
		}
	}

	districtID, err := geoRepo.UpsertNode(ctx, geo.GazetteerRecord{
		Node: geo.Node{Type: geo.LevelDistrict, Name: "रायपुर", Code: "CG-RAI"},
	})
	if err != nil {
		t.Fatalf("seed district: %v", err)
	}
	if _, err := geoRepo.UpsertNode(ctx, geo.GazetteerRecord{
		Node:     geo.Node{Type: geo.LevelAssembly, Name: "रायपुर ग्रामीण"},
		ParentID: districtID,
	}); err != nil {
		t.Fatalf("seed assembly: %v", err)
	}
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestParseEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/parse", map[string]string{
		"post_id": "p1",
		"text":    "रायपुर में मनरेगा पर बैठक हुई",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var event parsedEventResponse
	decodeBody(t, resp, &event)
	if event.PostID != "p1" || event.EventCode != "baithak" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.Schemes) != 1 || event.Schemes[0] != "मनरेगा" {
		t.Fatalf("schemes %v", event.Schemes)
	}
	if len(event.Locations) != 1 || event.Locations[0].Path != "रायपुर" {
		t.Fatalf("locations %+v", event.Locations)
	}
	if event.ParsedBy != "rule" {
		t.Fatalf("parsed_by %q", event.ParsedBy)
	}
}

func TestParseEndpointRejectsMissingPostID(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/parse", map[string]string{"text": "कुछ"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	var body errorResponse
	decodeBody(t, resp, &body)
	if body.Error == "" {
		t.Fatalf("error body missing")
	}
}

func TestCorrectionEndpointApprove(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/parse", map[string]string{
		"post_id": "p1",
		"text":    "बैठक हुई",
	})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/corrections", map[string]string{
		"post_id":  "p1",
		"reviewer": "asha",
		"decision": "approve",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var result correctionResponse
	decodeBody(t, resp, &result)
	if !result.Applied || result.ReviewStatus != "approved" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCorrectionThenPendingVocab(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/parse", map[string]string{
		"post_id": "p1",
		"text":    "बैठक हुई",
	})
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/api/corrections", map[string]any{
		"post_id":  "p1",
		"reviewer": "asha",
		"decision": "correct",
		"schemes":  []string{"नई योजना"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var result correctionResponse
	decodeBody(t, resp, &result)
	if len(result.NewPending) != 1 {
		t.Fatalf("new pending %v", result.NewPending)
	}

	getResp, err := http.Get(server.URL + "/api/vocab/pending?category=scheme")
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", getResp.StatusCode)
	}
	var pending []pendingEntryResponse
	decodeBody(t, getResp, &pending)
	if len(pending) != 1 || pending[0].Code != result.NewPending[0] {
		t.Fatalf("pending %+v", pending)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	server := newTestServer(t)

	for _, post := range []map[string]string{
		{"post_id": "p1", "text": "रायपुर में बैठक"},
		{"post_id": "p2", "text": "कहीं दूर बैठक"},
	} {
		resp := postJSON(t, server.URL+"/api/parse", post)
		resp.Body.Close()
	}

	resp, err := http.Get(server.URL + "/api/analytics/summary")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	var summary summaryResponse
	decodeBody(t, resp, &summary)
	if summary.TotalPosts != 2 {
		t.Fatalf("total %d, want 2", summary.TotalPosts)
	}
	if summary.UnresolvedPosts != 1 {
		t.Fatalf("unresolved %d, want 1", summary.UnresolvedPosts)
	}
	if len(summary.Districts) != 1 || summary.Districts[0].Name != "रायपुर" {
		t.Fatalf("districts %+v", summary.Districts)
	}
}

func TestSummaryEndpointRejectsBadDate(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/analytics/summary?from=yesterday")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestDistrictEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := postJSON(t, server.URL+"/api/parse", map[string]string{
		"post_id": "p1",
		"text":    "रायपुर में बैठक",
	})
	resp.Body.Close()

	getResp, err := http.Get(server.URL + "/api/analytics/districts/" + "रायपुर")
	if err != nil {
		t.Fatalf("get district: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", getResp.StatusCode)
	}
	var drill drilldownResponse
	decodeBody(t, getResp, &drill)
	if drill.District != "रायपुर" || drill.Posts != 1 {
		t.Fatalf("drilldown %+v", drill)
	}
}

func TestDistrictEndpointNotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/analytics/districts/" + "जशपुर")
	if err != nil {
		t.Fatalf("get district: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}
