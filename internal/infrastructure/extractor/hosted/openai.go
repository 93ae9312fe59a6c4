// Package hosted wraps the hosted large-language-model API. Every call is
// admitted by a shared token bucket so sustained batch load stays under the
// provider's requests-per-minute ceiling; transient failures retry with
// exponential backoff; quota exhaustion is a distinct first-class outcome so
// the consensus engine can drop to two layers instead of blocking.
package hosted

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/parse"
	"janmat/internal/errs"
	"janmat/internal/infrastructure/extractor"
	"janmat/internal/infrastructure/ratelimit"
	"janmat/internal/ports"
)

// ErrQuotaExhausted marks the hard quota ceiling, distinct from a failed
// request.
var ErrQuotaExhausted = errors.New("hosted model quota exhausted")

const (
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonRateLimited    = "rate_limited"
)

type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxRetries   int
	QuotaCeiling int
	// WaitForSlot selects the scheduling policy when the bucket is empty:
	// true blocks until a token refills, false reports rate_limited so the
	// caller proceeds with two-layer consensus.
	WaitForSlot bool
}

type Extractor struct {
	opts      Options
	client    openai.Client
	bucket    *ratelimit.Bucket
	snapshots ports.SnapshotProvider

	used atomic.Int64
}

var _ ports.Extractor = (*Extractor)(nil)

func New(opts Options, bucket *ratelimit.Bucket, snapshots ports.SnapshotProvider) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// The SDK retries on its own; backoff is handled here instead so the
		// token bucket sees every request.
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Extractor{
		opts:      opts,
		client:    openai.NewClient(clientOpts...),
		bucket:    bucket,
		snapshots: snapshots,
	}
}

func (e *Extractor) Source() parse.Source {
	return parse.SourceHosted
}

// QuotaRemaining reports how many calls are left under the configured
// ceiling; negative means unlimited.
func (e *Extractor) QuotaRemaining() int {
	if e.opts.QuotaCeiling <= 0 {
		return -1
	}
	remaining := e.opts.QuotaCeiling - int(e.used.Load())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e *Extractor) Extract(ctx context.Context, text string) parse.PartialResult {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "extractor.hosted"))

	if e.QuotaRemaining() == 0 {
		return parse.Unavailable(parse.SourceHosted, ReasonQuotaExhausted)
	}

	if e.bucket != nil {
		if e.opts.WaitForSlot {
			if err := e.bucket.Acquire(ctx); err != nil {
				return parse.Unavailable(parse.SourceHosted, "cancelled while rate limited")
			}
		} else if !e.bucket.TryAcquire() {
			return parse.Unavailable(parse.SourceHosted, ReasonRateLimited)
		}
	}

	snap, _ := e.snapshots.Current(ctx)
	system := extractor.BuildSystemPrompt(snap)

	backoffDelay := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return parse.Unavailable(parse.SourceHosted, "cancelled during backoff")
			case <-time.After(backoffDelay):
			}
			backoffDelay *= 2
		}

		if !e.reserveAttempt() {
			logging.Warn(logCtx, "hosted model quota exhausted")
			return parse.Unavailable(parse.SourceHosted, ReasonQuotaExhausted)
		}

		content, err := e.complete(ctx, system, text)
		if err == nil {
			return extractor.DecodeModelOutput(parse.SourceHosted, content)
		}
		if errors.Is(err, ErrQuotaExhausted) {
			logging.Warn(logCtx, "hosted model quota exhausted")
			return parse.Unavailable(parse.SourceHosted, ReasonQuotaExhausted)
		}
		if ctx.Err() != nil {
			return parse.Unavailable(parse.SourceHosted, "cancelled")
		}

		lastErr = err
		logging.Warn(logCtx, "hosted model call failed",
			slog.Int("attempt", attempt+1),
			slog.Any("err", errs.Loggable(err)),
		)
	}

	reason := "request failed"
	if lastErr != nil {
		reason = "request failed: " + lastErr.Error()
	}
	return parse.Unavailable(parse.SourceHosted, reason)
}

// reserveAttempt claims one call against the quota ceiling. Every request
// put on the wire counts, retries included, so the ceiling holds even when
// a call is retried after transient failures.
func (e *Extractor) reserveAttempt() bool {
	if e.opts.QuotaCeiling <= 0 {
		e.used.Add(1)
		return true
	}
	for {
		used := e.used.Load()
		if used >= int64(e.opts.QuotaCeiling) {
			return false
		}
		if e.used.CompareAndSwap(used, used+1) {
			return true
		}
	}
}

func (e *Extractor) complete(ctx context.Context, system, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	completion, err := e.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			// 429 with an insufficient-quota code is a hard stop; a plain
			// 429 is the per-minute limiter and worth retrying.
			if apiErr.StatusCode == 429 && strings.Contains(strings.ToLower(apiErr.Error()), "quota") {
				return "", ErrQuotaExhausted
			}
		}
		return "", errs.Wrap(err, "hosted completion")
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("hosted completion returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}
