// Package local wraps a locally hosted language model behind an
// Ollama-compatible chat API. No external rate limit applies, but calls are
// bounded by a timeout and fail closed on malformed output.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/parse"
	"janmat/internal/errs"
	"janmat/internal/infrastructure/extractor"
	"janmat/internal/ports"
)

type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Extractor struct {
	opts      Options
	client    *http.Client
	snapshots ports.SnapshotProvider
}

var _ ports.Extractor = (*Extractor)(nil)

func New(opts Options, snapshots ports.SnapshotProvider) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}

	return &Extractor{
		opts:      opts,
		client:    &http.Client{Timeout: opts.Timeout},
		snapshots: snapshots,
	}
}

func (e *Extractor) Source() parse.Source {
	return parse.SourceLocal
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

func (e *Extractor) Extract(ctx context.Context, text string) parse.PartialResult {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "extractor.local"))

	snap, _ := e.snapshots.Current(ctx)

	body, err := json.Marshal(chatRequest{
		Model: e.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extractor.BuildSystemPrompt(snap)},
			{Role: "user", Content: text},
		},
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return parse.Unavailable(parse.SourceLocal, "encode request")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.opts.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return parse.Unavailable(parse.SourceLocal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		reason := "request failed"
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() != nil {
			reason = "timeout"
		}
		logging.Warn(logCtx, "local model call failed", slog.Any("err", errs.Loggable(err)))
		return parse.Unavailable(parse.SourceLocal, reason)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn(logCtx, "local model returned non-200", slog.Int("status", resp.StatusCode))
		return parse.Unavailable(parse.SourceLocal, "http "+resp.Status)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return parse.Malformed(parse.SourceLocal, "response envelope is not JSON")
	}
	if decoded.Error != "" {
		return parse.Unavailable(parse.SourceLocal, decoded.Error)
	}

	result := extractor.DecodeModelOutput(parse.SourceLocal, decoded.Message.Content)
	if result.Status == parse.StatusMalformed {
		logging.Warn(logCtx, "local model output malformed", slog.String("reason", result.Reason))
	}
	return result
}
