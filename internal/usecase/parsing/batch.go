package parsing

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/parse"
	"janmat/internal/errs"
)

// BatchResult is one element of the ParseBatch output stream.
type BatchResult struct {
	Input ParseInput
	Event parse.ParsedEvent
	Err   error
}

// ParseBatch parses posts with a bounded worker pool and streams results as
// they complete. Order is not preserved: posts are independent. Cancelling
// ctx stops admission of new posts; results for posts already in flight are
// either fully persisted or dropped.
func (s *Service) ParseBatch(ctx context.Context, posts []ParseInput) (<-chan BatchResult, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.parsing"),
		slog.Int("batch_size", len(posts)),
	)
	logging.Info(logCtx, "batch parse started", slog.Int("workers", s.workers))

	out := make(chan BatchResult, s.workers)

	go func() {
		defer close(out)

		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)

		for _, post := range posts {
			if groupCtx.Err() != nil {
				break
			}
			post := post
			g.Go(func() error {
				event, err := s.Parse(groupCtx, post)
				select {
				case out <- BatchResult{Input: post, Event: event, Err: err}:
				case <-groupCtx.Done():
				}
				// Per-post failures are reported on the stream, not used to
				// abort the group.
				return nil
			})
		}

		_ = g.Wait()
		logging.Info(logCtx, "batch parse finished")
	}()

	return out, nil
}
