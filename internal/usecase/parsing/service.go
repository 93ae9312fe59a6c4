package parsing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/ports"
)

// Service runs the three-layer consensus parse for posts and persists the
// outcome.
type Service struct {
	extractors []ports.Extractor
	snapshots  ports.SnapshotProvider
	events     ports.ParsedEventRepository
	settings   parse.Settings
	workers    int
}

type Options struct {
	Settings parse.Settings
	Workers  int
}

func NewService(extractors []ports.Extractor, snapshots ports.SnapshotProvider, events ports.ParsedEventRepository, opts Options) *Service {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Service{
		extractors: extractors,
		snapshots:  snapshots,
		events:     events,
		settings:   opts.Settings,
		workers:    workers,
	}
}

type ParseInput struct {
	PostID string
	Text   string
}

// Parse is the single-post synchronous entry point. It always returns a
// ParsedEvent for a valid post id: extractor failures degrade the consensus,
// they never surface as errors.
func (s *Service) Parse(ctx context.Context, input ParseInput) (parse.ParsedEvent, error) {
	if ctx == nil {
		return parse.ParsedEvent{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return parse.ParsedEvent{}, errs.Wrap(err, "check context")
	}

	postID := strings.TrimSpace(input.PostID)
	if postID == "" {
		return parse.ParsedEvent{}, errors.New("post id is required")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.parsing"),
		slog.String("post_id", postID),
	)

	event := s.parseOne(logCtx, postID, input.Text)

	// A cancelled batch must not persist half-formed results.
	if err := ctx.Err(); err != nil {
		return parse.ParsedEvent{}, errs.Wrap(err, "cancelled before persist")
	}
	if err := s.events.Save(ctx, event); err != nil {
		return parse.ParsedEvent{}, errs.Wrap(err, "persist parsed event")
	}

	logging.Info(logCtx, "post parsed",
		slog.String("event_type", event.EventType),
		slog.Float64("confidence", event.OverallConfidence),
		slog.Bool("needs_review", event.NeedsReview),
		slog.String("parsed_by", event.ParsedBy),
	)
	return event, nil
}

func (s *Service) parseOne(ctx context.Context, postID, text string) parse.ParsedEvent {
	if strings.TrimSpace(text) == "" {
		return parse.ParsedEvent{
			PostID:       postID,
			EventType:    parse.UnknownEventType,
			EventTypeEN:  vocab.UnknownEventEN,
			EventCode:    vocab.UnknownEventCode,
			NeedsReview:  true,
			ReviewStatus: parse.ReviewPending,
			Reasoning:    "post text is empty",
			ParsedAt:     time.Now(),
			ParsedBy:     "none",
		}
	}

	results := s.runExtractors(ctx, text)
	outcome := parse.Merge(results, s.settings)
	return s.enrich(ctx, postID, outcome)
}

// runExtractors fans the post out to every configured layer concurrently and
// waits for all of them; each extractor bounds its own call with a timeout,
// so the wait is bounded too.
func (s *Service) runExtractors(ctx context.Context, text string) []parse.PartialResult {
	results := make([]parse.PartialResult, len(s.extractors))

	var wg sync.WaitGroup
	for i, ex := range s.extractors {
		wg.Add(1)
		go func(i int, ex ports.Extractor) {
			defer wg.Done()
			results[i] = ex.Extract(ctx, text)
		}(i, ex)
	}
	wg.Wait()

	return results
}

// enrich joins the consensus outcome against the reference snapshot: event
// and scheme foreign keys, bilingual labels, geo resolution, hashtags.
func (s *Service) enrich(ctx context.Context, postID string, outcome parse.Outcome) parse.ParsedEvent {
	event := parse.ParsedEvent{
		PostID:            postID,
		EventType:         outcome.EventType,
		EventTypeEN:       outcome.EventTypeEN,
		EventCode:         vocab.UnknownEventCode,
		People:            outcome.People,
		Organizations:     outcome.Organizations,
		Schemes:           outcome.Schemes,
		EventDate:         outcome.EventDate,
		OverallConfidence: outcome.OverallConfidence,
		NeedsReview:       outcome.NeedsReview,
		ReviewStatus:      parse.ReviewPending,
		Reasoning:         outcome.Reasoning,
		ParsedAt:          time.Now(),
		ParsedBy:          outcome.ParsedBy,
	}

	snap, err := s.snapshots.Current(ctx)
	if err != nil {
		logging.Warn(ctx, "reference snapshot unavailable, storing unenriched result",
			slog.Any("err", errs.Loggable(err)))
		for _, raw := range outcome.Locations {
			event.Locations = append(event.Locations, geo.Resolution{RawMention: raw})
		}
		return event
	}

	if outcome.EventType != parse.UnknownEventType {
		for _, entry := range snap.EntriesFor(vocab.CategoryEventType) {
			if entry.Matches(outcome.EventType) {
				event.EventType = entry.NameHI
				event.EventTypeEN = entry.NameEN
				event.EventCode = entry.Code
				event.MatchedEventID = entry.ID
				break
			}
		}
		if event.EventCode == vocab.UnknownEventCode {
			// Outside the closed vocabulary: keep the surface form and
			// flag for review so the learning loop can pick it up.
			event.NeedsReview = true
		}
	}

	for _, scheme := range outcome.Schemes {
		for _, entry := range snap.EntriesFor(vocab.CategoryScheme) {
			if entry.Matches(scheme) {
				event.MatchedSchemeIDs = append(event.MatchedSchemeIDs, entry.ID)
				if entry.NameEN != "" {
					event.SchemeLabelsEN = append(event.SchemeLabelsEN, entry.NameEN)
				}
				break
			}
		}
	}

	event.Locations = resolveLocations(snap, outcome.Locations)

	event.GeneratedHashtags = parse.GenerateHashtags(
		event.EventType, event.EventTypeEN, event.Schemes, event.ResolvedDistricts(),
	)
	return event
}

// resolveLocations resolves every mention, using the other mentions of the
// same post as disambiguation hints.
func resolveLocations(snap *ports.RefSnapshot, mentions []string) []geo.Resolution {
	if snap.Gazetteer == nil {
		out := make([]geo.Resolution, 0, len(mentions))
		for _, raw := range mentions {
			out = append(out, geo.Resolution{RawMention: raw})
		}
		return out
	}

	out := make([]geo.Resolution, 0, len(mentions))
	for i, mention := range mentions {
		hints := make([]string, 0, len(mentions)-1)
		hints = append(hints, mentions[:i]...)
		hints = append(hints, mentions[i+1:]...)
		out = append(out, snap.Gazetteer.Resolve(mention, hints))
	}
	return out
}
