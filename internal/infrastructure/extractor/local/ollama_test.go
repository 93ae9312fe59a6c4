package local

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"janmat/internal/domain/parse"
	"janmat/internal/ports"
)

type stubSnapshots struct{}

func (stubSnapshots) Current(context.Context) (*ports.RefSnapshot, error) {
	return &ports.RefSnapshot{Version: 1}, nil
}

func (stubSnapshots) Refresh(context.Context) (*ports.RefSnapshot, error) {
	return &ports.RefSnapshot{Version: 1}, nil
}

func newTestExtractor(serverURL string) *Extractor {
	return New(Options{BaseURL: serverURL, Model: "test-model", Timeout: 2 * time.Second}, stubSnapshots{})
}

func TestExtractDecodesChatResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("stream must be disabled")
		}
		if req.Format != "json" {
			t.Errorf("format %q, want json", req.Format)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{
				Role:    "assistant",
				Content: `{"event_type":"रैली","confidence":0.75}`,
			},
		})
	}))
	defer server.Close()

	got := newTestExtractor(server.URL).Extract(context.Background(), "रायपुर में रैली")

	if got.Status != parse.StatusOK {
		t.Fatalf("status %s reason %q", got.Status, got.Reason)
	}
	if got.Source != parse.SourceLocal {
		t.Fatalf("source %s", got.Source)
	}
	if got.EventType != "रैली" || got.Confidence != 0.75 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExtractServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	got := newTestExtractor(server.URL).Extract(context.Background(), "पोस्ट")
	if got.Status != parse.StatusUnavailable {
		t.Fatalf("status %s, want unavailable", got.Status)
	}
}

func TestExtractConnectionRefusedIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	got := newTestExtractor(server.URL).Extract(context.Background(), "पोस्ट")
	if got.Status != parse.StatusUnavailable {
		t.Fatalf("status %s, want unavailable", got.Status)
	}
}

func TestExtractEngineErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Error: "model not found"})
	}))
	defer server.Close()

	got := newTestExtractor(server.URL).Extract(context.Background(), "पोस्ट")
	if got.Status != parse.StatusUnavailable || got.Reason != "model not found" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestExtractMalformedModelOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{
			Message: chatMessage{Role: "assistant", Content: "मैं समझ नहीं पाया"},
		})
	}))
	defer server.Close()

	got := newTestExtractor(server.URL).Extract(context.Background(), "पोस्ट")
	if got.Status != parse.StatusMalformed {
		t.Fatalf("free-text output must fail closed, got %s", got.Status)
	}
}

func TestExtractTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	e := New(Options{BaseURL: server.URL, Model: "m", Timeout: 50 * time.Millisecond}, stubSnapshots{})
	got := e.Extract(context.Background(), "पोस्ट")
	if got.Status != parse.StatusUnavailable || got.Reason != "timeout" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
