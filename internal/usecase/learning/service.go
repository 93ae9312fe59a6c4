// Package learning converts human review decisions into reference-store
// mutations: pending vocabulary from corrections, promotion after enough
// independent confirmations, and an append-only rewrite of the corrected
// event.
package learning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"janmat/internal/bootstrap/logging"
	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/ports"
)

type Service struct {
	refs        ports.ReferenceStore
	corrections ports.CorrectionRepository
	events      ports.ParsedEventRepository
	snapshots   ports.SnapshotProvider
	uow         ports.UnitOfWork

	promotionThreshold int
}

func NewService(
	refs ports.ReferenceStore,
	corrections ports.CorrectionRepository,
	events ports.ParsedEventRepository,
	snapshots ports.SnapshotProvider,
	uow ports.UnitOfWork,
	promotionThreshold int,
) *Service {
	if promotionThreshold < 1 {
		promotionThreshold = 1
	}
	return &Service{
		refs:               refs,
		corrections:        corrections,
		events:             events,
		snapshots:          snapshots,
		uow:                uow,
		promotionThreshold: promotionThreshold,
	}
}

// Decision is the reviewer's verdict on a parsed event.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionCorrect Decision = "correct"
	DecisionReject  Decision = "reject"
	DecisionSkip    Decision = "skip"
)

// CorrectedFields carries only the fields the reviewer changed. Nil slices
// and empty strings mean "unchanged".
type CorrectedFields struct {
	EventType     string
	Locations     []string
	People        []string
	Organizations []string
	Schemes       []string
}

type CorrectionInput struct {
	PostID    string
	Reviewer  string
	SessionID string
	Decision  Decision
	Fields    CorrectedFields
}

type CorrectionResult struct {
	Applied      bool
	Duplicate    bool
	NewPending   []string
	Promoted     []string
	ReviewStatus parse.ReviewStatus
}

// SubmitCorrection applies one review decision. Replaying the identical
// decision is a no-op: every field correction carries an idempotency key and
// duplicates increment nothing.
func (s *Service) SubmitCorrection(ctx context.Context, input CorrectionInput) (CorrectionResult, error) {
	if ctx == nil {
		return CorrectionResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return CorrectionResult{}, errs.Wrap(err, "check context")
	}

	postID := strings.TrimSpace(input.PostID)
	if postID == "" {
		return CorrectionResult{}, errors.New("post id is required")
	}
	reviewer := strings.TrimSpace(input.Reviewer)
	if reviewer == "" {
		return CorrectionResult{}, errors.New("reviewer is required")
	}
	session := strings.TrimSpace(input.SessionID)
	if session == "" {
		// One reviewer sitting is one session; derive a daily bucket when
		// the caller does not supply an explicit session id.
		session = reviewer + "@" + time.Now().UTC().Format("2006-01-02")
	}

	decision := input.Decision
	if decision == "" {
		decision = DecisionCorrect
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.learning"),
		slog.String("post_id", postID),
		slog.String("reviewer", reviewer),
		slog.String("decision", string(decision)),
	)

	event, err := s.events.Get(ctx, postID)
	if err != nil {
		return CorrectionResult{}, errs.Wrap(err, "load parsed event")
	}

	out := CorrectionResult{}

	switch decision {
	case DecisionApprove, DecisionReject, DecisionSkip:
		event.ReviewStatus = statusFor(decision)
		event.NeedsReview = false
		if err := s.events.Save(ctx, event); err != nil {
			return CorrectionResult{}, errs.Wrap(err, "persist review decision")
		}
		out.Applied = true
		out.ReviewStatus = event.ReviewStatus
		return out, nil
	case DecisionCorrect:
		// handled below
	default:
		return CorrectionResult{}, fmt.Errorf("unknown review decision %q", decision)
	}

	changes := diffFields(event, input.Fields)
	if len(changes) == 0 && input.Fields.EventType == "" {
		logging.Info(logCtx, "correction contained no field changes")
	}

	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		anyInserted := false
		for _, change := range changes {
			inserted, applyErr := s.applyChange(txCtx, postID, reviewer, session, change, &out)
			if applyErr != nil {
				return applyErr
			}
			anyInserted = anyInserted || inserted
		}
		out.Duplicate = len(changes) > 0 && !anyInserted

		// A replay of an already-applied correction rewrites nothing; skip
		// the save so the revision history records real edits only.
		if event.ReviewStatus == parse.ReviewCorrected && (len(changes) == 0 || out.Duplicate) {
			out.ReviewStatus = event.ReviewStatus
			return nil
		}

		corrected := s.correctedEvent(txCtx, event, input.Fields)
		if saveErr := s.events.Save(txCtx, corrected); saveErr != nil {
			return errs.Wrap(saveErr, "persist corrected event")
		}
		out.ReviewStatus = corrected.ReviewStatus
		return nil
	})
	if err != nil {
		return CorrectionResult{}, errs.Wrap(err, "apply correction")
	}
	out.Applied = true

	// Publish the updated vocabulary; in-flight parses keep their snapshot.
	if _, refreshErr := s.snapshots.Refresh(ctx); refreshErr != nil {
		logging.Warn(logCtx, "snapshot refresh after correction failed",
			slog.Any("err", errs.Loggable(refreshErr)))
	}

	logging.Info(logCtx, "correction applied",
		slog.Int("new_pending", len(out.NewPending)),
		slog.Int("promoted", len(out.Promoted)),
		slog.Bool("duplicate", out.Duplicate),
	)
	return out, nil
}

type fieldChange struct {
	Field    string
	Category vocab.Category
	Value    string
}

// diffFields lists corrected values that differ from the parsed originals.
func diffFields(event parse.ParsedEvent, fields CorrectedFields) []fieldChange {
	var changes []fieldChange

	if v := strings.TrimSpace(fields.EventType); v != "" && vocab.Normalize(v) != vocab.Normalize(event.EventType) {
		changes = append(changes, fieldChange{Field: "event_type", Category: vocab.CategoryEventType, Value: v})
	}

	changes = append(changes, diffSet("locations", vocab.CategoryLocation, locationMentions(event), fields.Locations)...)
	changes = append(changes, diffSet("people_mentioned", vocab.CategoryPerson, event.People, fields.People)...)
	changes = append(changes, diffSet("organizations", vocab.CategoryOrg, event.Organizations, fields.Organizations)...)
	changes = append(changes, diffSet("schemes_mentioned", vocab.CategoryScheme, event.Schemes, fields.Schemes)...)

	return changes
}

func diffSet(field string, category vocab.Category, original, corrected []string) []fieldChange {
	if corrected == nil {
		return nil
	}

	have := make(map[string]struct{}, len(original))
	for _, v := range original {
		have[vocab.Normalize(v)] = struct{}{}
	}

	var changes []fieldChange
	for _, v := range corrected {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := have[vocab.Normalize(v)]; ok {
			continue
		}
		changes = append(changes, fieldChange{Field: field, Category: category, Value: v})
	}
	return changes
}

func locationMentions(event parse.ParsedEvent) []string {
	out := make([]string, 0, len(event.Locations))
	for _, loc := range event.Locations {
		out = append(out, loc.RawMention)
	}
	return out
}

// applyChange records one corrected value: the idempotent correction event,
// the pending reference entry, and promotion when enough distinct sessions
// have confirmed it.
func (s *Service) applyChange(ctx context.Context, postID, reviewer, session string, change fieldChange, out *CorrectionResult) (bool, error) {
	code := s.resolveCode(ctx, change.Category, change.Value)
	if code == "" {
		return false, nil
	}

	inserted, err := s.corrections.Create(ctx, ports.CorrectionRecord{
		IdempotencyKey: correctionKey(postID, reviewer, session, change.Field, change.Value),
		PostID:         postID,
		Reviewer:       reviewer,
		SessionID:      session,
		Field:          change.Field,
		Category:       string(change.Category),
		EntryCode:      code,
		Value:          change.Value,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return false, errs.Wrap(err, "record correction event")
	}
	if !inserted {
		return false, nil
	}

	existing, err := s.refs.FindByCode(ctx, change.Category, code)
	switch {
	case errors.Is(err, ports.ErrEntryNotFound):
		if _, upsertErr := s.refs.Upsert(ctx, vocab.Entry{
			Code:           code,
			Category:       change.Category,
			NameHI:         change.Value,
			IsActive:       true,
			Provenance:     vocab.ProvenanceLearned,
			ApprovalStatus: vocab.ApprovalPending,
		}); upsertErr != nil {
			return false, errs.Wrap(upsertErr, "create learned entry")
		}
		out.NewPending = append(out.NewPending, code)
	case err != nil:
		return false, errs.Wrap(err, "lookup reference entry")
	}

	if err := s.refs.IncrementUsage(ctx, change.Category, code, 1); err != nil {
		return false, errs.Wrap(err, "increment usage")
	}

	// Promotion requires confirmations from independent sessions, so one
	// reviewer's repeated typo in a single sitting cannot pollute the
	// shared vocabulary.
	if existing.ApprovalStatus != vocab.ApprovalApproved {
		sessions, sessErr := s.corrections.DistinctSessions(ctx, string(change.Category), code)
		if sessErr != nil {
			return false, errs.Wrap(sessErr, "count confirming sessions")
		}
		if vocab.ShouldPromote(sessions, s.promotionThreshold) {
			if promoteErr := s.refs.SetApproval(ctx, change.Category, code, vocab.ApprovalApproved); promoteErr != nil {
				return false, errs.Wrap(promoteErr, "promote learned entry")
			}
			out.Promoted = append(out.Promoted, code)
		}
	}

	return true, nil
}

// resolveCode maps a corrected value onto the canonical code of an already
// published entry when one matches, so corrections that spell a known
// synonym count toward that entry instead of spawning a duplicate.
func (s *Service) resolveCode(ctx context.Context, category vocab.Category, value string) string {
	if snap, err := s.snapshots.Current(ctx); err == nil {
		for _, entry := range snap.EntriesFor(category) {
			if entry.Matches(value) {
				return entry.Code
			}
		}
	}
	return vocab.CodeFor(value)
}

// correctedEvent rewrites the event with the reviewer's fields, regenerates
// hashtags, and re-resolves corrected locations.
func (s *Service) correctedEvent(ctx context.Context, event parse.ParsedEvent, fields CorrectedFields) parse.ParsedEvent {
	if v := strings.TrimSpace(fields.EventType); v != "" {
		event.EventType = v
		event.EventTypeEN = ""
		event.EventCode = vocab.CodeFor(v)
		event.MatchedEventID = 0
	}
	if fields.People != nil {
		event.People = fields.People
	}
	if fields.Organizations != nil {
		event.Organizations = fields.Organizations
	}
	if fields.Schemes != nil {
		event.Schemes = fields.Schemes
		event.SchemeLabelsEN = nil
		event.MatchedSchemeIDs = nil
	}

	snap, err := s.snapshots.Current(ctx)
	if err == nil {
		if v := strings.TrimSpace(fields.EventType); v != "" {
			for _, entry := range snap.EntriesFor(vocab.CategoryEventType) {
				if entry.Matches(v) {
					event.EventType = entry.NameHI
					event.EventTypeEN = entry.NameEN
					event.EventCode = entry.Code
					event.MatchedEventID = entry.ID
					break
				}
			}
		}
		// The scheme joins are rebuilt from scratch on every rewrite; the
		// loop must never append onto the persisted ones.
		event.MatchedSchemeIDs = nil
		event.SchemeLabelsEN = nil
		for _, scheme := range event.Schemes {
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
	}

	if fields.Locations != nil {
		event.Locations = nil
		for i, mention := range fields.Locations {
			mention = strings.TrimSpace(mention)
			if mention == "" {
				continue
			}
			if err == nil && snap.Gazetteer != nil {
				hints := make([]string, 0, len(fields.Locations)-1)
				hints = append(hints, fields.Locations[:i]...)
				hints = append(hints, fields.Locations[i+1:]...)
				event.Locations = append(event.Locations, snap.Gazetteer.Resolve(mention, hints))
			} else {
				event.Locations = append(event.Locations, geo.Resolution{RawMention: mention})
			}
		}
	}

	event.GeneratedHashtags = parse.GenerateHashtags(
		event.EventType, event.EventTypeEN, event.Schemes, event.ResolvedDistricts(),
	)
	event.ReviewStatus = parse.ReviewCorrected
	event.NeedsReview = false
	return event
}

func statusFor(decision Decision) parse.ReviewStatus {
	switch decision {
	case DecisionApprove:
		return parse.ReviewApproved
	case DecisionReject:
		return parse.ReviewRejected
	case DecisionSkip:
		return parse.ReviewSkipped
	}
	return parse.ReviewPending
}

// correctionKey is the idempotency key for one field correction: replaying
// the same decision from the same session hashes identically.
func correctionKey(postID, reviewer, session, field, value string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		postID, reviewer, session, field, vocab.Normalize(value),
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
