package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/errs"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	"janmat/internal/ports"
)

type EventRepository struct {
	db *gorm.DB
}

var _ ports.ParsedEventRepository = (*EventRepository)(nil)

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Save upserts the current row for the post. When a row already exists it is
// first copied into parsed_event_revisions, so correction history is
// append-only and an approved record's past is never overwritten.
func (r *EventRepository) Save(ctx context.Context, event parse.ParsedEvent) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	postID := strings.TrimSpace(event.PostID)
	if postID == "" {
		return errors.New("post id is required")
	}

	row, err := toEventRow(event)
	if err != nil {
		return err
	}

	var existing model.ParsedEvent
	switch findErr := db.Where("post_id = ?", postID).Take(&existing).Error; {
	case findErr == nil:
		priorJSON, marshalErr := json.Marshal(existing)
		if marshalErr != nil {
			return errs.Wrap(marshalErr, "serialize prior revision")
		}
		revision := model.ParsedEventRevision{
			PostID:       postID,
			Revision:     existing.Revision,
			RecordJSON:   string(priorJSON),
			ReviewStatus: existing.ReviewStatus,
			CreatedAt:    nowUTCString(),
		}
		if err := db.Create(&revision).Error; err != nil {
			return errs.Wrap(err, "append event revision")
		}

		row.ID = existing.ID
		row.Revision = existing.Revision + 1
		if err := db.Model(&model.ParsedEvent{}).
			Where("id = ?", existing.ID).
			Select("*").Omit("id").Updates(&row).Error; err != nil {
			return errs.Wrap(err, "update parsed event")
		}
		return nil
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		row.Revision = 1
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert parsed event")
		}
		return nil
	default:
		return errs.Wrap(findErr, "query parsed event")
	}
}

func (r *EventRepository) Get(ctx context.Context, postID string) (parse.ParsedEvent, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return parse.ParsedEvent{}, err
	}

	var row model.ParsedEvent
	if err := db.Where("post_id = ?", strings.TrimSpace(postID)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return parse.ParsedEvent{}, ports.ErrEventNotFound
		}
		return parse.ParsedEvent{}, errs.Wrap(err, "query parsed event")
	}
	return fromEventRow(row)
}

func (r *EventRepository) List(ctx context.Context, filter ports.EventFilter) ([]parse.ParsedEvent, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ParsedEvent{})
	if filter.EventCode != "" {
		query = query.Where("event_code = ?", filter.EventCode)
	}
	if filter.ReviewStatus != "" {
		query = query.Where("review_status = ?", string(filter.ReviewStatus))
	}
	if filter.NeedsReview != nil {
		query = query.Where("needs_review = ?", *filter.NeedsReview)
	}
	if !filter.From.IsZero() {
		query = query.Where("parsed_at >= ?", filter.From.UTC().Format(time.RFC3339Nano))
	}
	if !filter.To.IsZero() {
		query = query.Where("parsed_at < ?", filter.To.UTC().Format(time.RFC3339Nano))
	}

	var rows []model.ParsedEvent
	if err := query.Order("parsed_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query parsed events")
	}

	events := make([]parse.ParsedEvent, 0, len(rows))
	for _, row := range rows {
		event, mapErr := fromEventRow(row)
		if mapErr != nil {
			return nil, mapErr
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *EventRepository) Revisions(ctx context.Context, postID string) ([]parse.ParsedEvent, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ParsedEventRevision
	if err := db.
		Where("post_id = ?", strings.TrimSpace(postID)).
		Order("revision asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query event revisions")
	}

	events := make([]parse.ParsedEvent, 0, len(rows))
	for _, rev := range rows {
		var row model.ParsedEvent
		if err := json.Unmarshal([]byte(rev.RecordJSON), &row); err != nil {
			return nil, errs.Wrap(err, "decode event revision")
		}
		event, mapErr := fromEventRow(row)
		if mapErr != nil {
			return nil, mapErr
		}
		events = append(events, event)
	}
	return events, nil
}

type CorrectionEventRepository struct {
	db *gorm.DB
}

var _ ports.CorrectionRepository = (*CorrectionEventRepository)(nil)

func NewCorrectionEventRepository(db *gorm.DB) *CorrectionEventRepository {
	return &CorrectionEventRepository{db: db}
}

// Create inserts the correction unless its idempotency key was already seen.
func (r *CorrectionEventRepository) Create(ctx context.Context, record ports.CorrectionRecord) (bool, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(record.IdempotencyKey) == "" {
		return false, errors.New("idempotency key is required")
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := model.CorrectionEvent{
		IdempotencyKey: record.IdempotencyKey,
		PostID:         record.PostID,
		Reviewer:       record.Reviewer,
		SessionID:      record.SessionID,
		Field:          record.Field,
		Category:       record.Category,
		EntryCode:      record.EntryCode,
		Value:          record.Value,
		CreatedAt:      createdAt.UTC().Format(time.RFC3339Nano),
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert correction event")
	}
	return result.RowsAffected > 0, nil
}

func (r *CorrectionEventRepository) DistinctSessions(ctx context.Context, category string, entryCode string) ([]string, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var sessions []string
	if err := db.Model(&model.CorrectionEvent{}).
		Distinct("session_id").
		Where("category = ? AND entry_code = ?", category, entryCode).
		Order("session_id asc").
		Pluck("session_id", &sessions).Error; err != nil {
		return nil, errs.Wrap(err, "query correction sessions")
	}
	return sessions, nil
}

// storedNode and storedResolution are the JSON shapes for location columns.
type storedNode struct {
	ID      uint64 `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Code    string `json:"code,omitempty"`
	IsUrban bool   `json:"is_urban,omitempty"`
}

type storedResolution struct {
	Raw        string         `json:"raw"`
	Ambiguous  bool           `json:"ambiguous,omitempty"`
	Path       []storedNode   `json:"path,omitempty"`
	Candidates [][]storedNode `json:"candidates,omitempty"`
}

func toStoredPath(path geo.Path) []storedNode {
	out := make([]storedNode, 0, len(path))
	for _, node := range path {
		out = append(out, storedNode{
			ID:      node.ID,
			Type:    string(node.Type),
			Name:    node.Name,
			Code:    node.Code,
			IsUrban: node.IsUrban,
		})
	}
	return out
}

func fromStoredPath(nodes []storedNode) geo.Path {
	out := make(geo.Path, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, geo.Node{
			ID:      node.ID,
			Type:    geo.Level(node.Type),
			Name:    node.Name,
			Code:    node.Code,
			IsUrban: node.IsUrban,
		})
	}
	return out
}

func marshalResolutions(resolutions []geo.Resolution) (string, error) {
	if len(resolutions) == 0 {
		return "[]", nil
	}

	stored := make([]storedResolution, 0, len(resolutions))
	for _, res := range resolutions {
		item := storedResolution{
			Raw:       res.RawMention,
			Ambiguous: res.Ambiguous,
			Path:      toStoredPath(res.Path),
		}
		for _, candidate := range res.Candidates {
			item.Candidates = append(item.Candidates, toStoredPath(candidate))
		}
		stored = append(stored, item)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return "", errs.Wrap(err, "serialize locations")
	}
	return string(raw), nil
}

func unmarshalResolutions(raw string) ([]geo.Resolution, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}

	var stored []storedResolution
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, errs.Wrap(err, "decode locations")
	}

	out := make([]geo.Resolution, 0, len(stored))
	for _, item := range stored {
		res := geo.Resolution{
			RawMention: item.Raw,
			Ambiguous:  item.Ambiguous,
			Path:       fromStoredPath(item.Path),
		}
		for _, candidate := range item.Candidates {
			res.Candidates = append(res.Candidates, fromStoredPath(candidate))
		}
		out = append(out, res)
	}
	return out, nil
}

func marshalIDs(ids []uint64) string {
	if len(ids) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func unmarshalIDs(raw string) []uint64 {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []uint64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func toEventRow(event parse.ParsedEvent) (model.ParsedEvent, error) {
	locationsJSON, err := marshalResolutions(event.Locations)
	if err != nil {
		return model.ParsedEvent{}, err
	}

	parsedAt := event.ParsedAt
	if parsedAt.IsZero() {
		parsedAt = time.Now()
	}

	return model.ParsedEvent{
		PostID:            strings.TrimSpace(event.PostID),
		EventType:         event.EventType,
		EventTypeEN:       event.EventTypeEN,
		EventCode:         event.EventCode,
		LocationsJSON:     locationsJSON,
		PeopleJSON:        marshalStrings(event.People),
		OrganizationsJSON: marshalStrings(event.Organizations),
		SchemesJSON:       marshalStrings(event.Schemes),
		SchemeLabelsJSON:  marshalStrings(event.SchemeLabelsEN),
		SchemeIDsJSON:     marshalIDs(event.MatchedSchemeIDs),
		MatchedEventID:    event.MatchedEventID,
		HashtagsJSON:      marshalStrings(event.GeneratedHashtags),
		EventDate:         event.EventDate,
		OverallConfidence: event.OverallConfidence,
		NeedsReview:       event.NeedsReview,
		ReviewStatus:      string(event.ReviewStatus),
		Reasoning:         event.Reasoning,
		ParsedAt:          parsedAt.UTC().Format(time.RFC3339Nano),
		ParsedBy:          event.ParsedBy,
	}, nil
}

func fromEventRow(row model.ParsedEvent) (parse.ParsedEvent, error) {
	locations, err := unmarshalResolutions(row.LocationsJSON)
	if err != nil {
		return parse.ParsedEvent{}, err
	}

	parsedAt, err := time.Parse(time.RFC3339Nano, row.ParsedAt)
	if err != nil {
		parsedAt = time.Time{}
	}

	return parse.ParsedEvent{
		PostID:            row.PostID,
		EventType:         row.EventType,
		EventTypeEN:       row.EventTypeEN,
		EventCode:         row.EventCode,
		Locations:         locations,
		People:            unmarshalStrings(row.PeopleJSON),
		Organizations:     unmarshalStrings(row.OrganizationsJSON),
		Schemes:           unmarshalStrings(row.SchemesJSON),
		SchemeLabelsEN:    unmarshalStrings(row.SchemeLabelsJSON),
		MatchedSchemeIDs:  unmarshalIDs(row.SchemeIDsJSON),
		MatchedEventID:    row.MatchedEventID,
		GeneratedHashtags: unmarshalStrings(row.HashtagsJSON),
		EventDate:         row.EventDate,
		OverallConfidence: row.OverallConfidence,
		NeedsReview:       row.NeedsReview,
		ReviewStatus:      parse.ReviewStatus(row.ReviewStatus),
		Reasoning:         row.Reasoning,
		ParsedAt:          parsedAt,
		ParsedBy:          row.ParsedBy,
	}, nil
}
