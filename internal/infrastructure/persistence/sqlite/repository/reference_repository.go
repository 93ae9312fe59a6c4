package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"janmat/internal/domain/vocab"
	"janmat/internal/errs"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	"janmat/internal/ports"
)

type ReferenceRepository struct {
	db *gorm.DB
}

var _ ports.ReferenceStore = (*ReferenceRepository)(nil)

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) List(ctx context.Context, filter ports.ReferenceFilter) ([]vocab.Entry, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ReferenceEntry{})
	if filter.Category != "" {
		query = query.Where("category = ?", string(filter.Category))
	}
	if filter.ApprovalStatus != "" {
		query = query.Where("approval_status = ?", string(filter.ApprovalStatus))
	}
	if filter.Provenance != "" {
		query = query.Where("provenance = ?", string(filter.Provenance))
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var rows []model.ReferenceEntry
	if err := query.Order("category asc, code asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reference entries")
	}

	entries := make([]vocab.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapReferenceEntry(row))
	}
	return entries, nil
}

func (r *ReferenceRepository) FindByCode(ctx context.Context, category vocab.Category, code string) (vocab.Entry, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return vocab.Entry{}, err
	}

	var row model.ReferenceEntry
	if err := db.
		Where("category = ? AND code = ?", string(category), strings.TrimSpace(code)).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vocab.Entry{}, ports.ErrEntryNotFound
		}
		return vocab.Entry{}, errs.Wrap(err, "query reference entry by code")
	}
	return mapReferenceEntry(row), nil
}

// Upsert converges on (category, code). Metadata is last-writer-wins;
// usage_count stays monotonic because increments go through IncrementUsage,
// not through this method.
func (r *ReferenceRepository) Upsert(ctx context.Context, entry vocab.Entry) (vocab.Entry, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return vocab.Entry{}, err
	}

	code := strings.TrimSpace(entry.Code)
	if code == "" {
		return vocab.Entry{}, errors.New("entry code is required")
	}
	if !entry.Category.Valid() {
		return vocab.Entry{}, errors.New("entry category is invalid")
	}

	now := nowUTCString()
	row := model.ReferenceEntry{
		Category:       string(entry.Category),
		Code:           code,
		NameHI:         strings.TrimSpace(entry.NameHI),
		NameEN:         strings.TrimSpace(entry.NameEN),
		AliasesJSON:    marshalStrings(entry.Aliases),
		IsActive:       entry.IsActive,
		UsageCount:     entry.UsageCount,
		Provenance:     string(entry.Provenance),
		ApprovalStatus: string(entry.ApprovalStatus),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "category"}, {Name: "code"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name_hi":      row.NameHI,
			"name_en":      row.NameEN,
			"aliases_json": row.AliasesJSON,
			"is_active":    row.IsActive,
			"updated_at":   now,
		}),
	}).Create(&row).Error; err != nil {
		return vocab.Entry{}, errs.Wrap(err, "upsert reference entry")
	}

	return r.FindByCode(ctx, entry.Category, code)
}

func (r *ReferenceRepository) IncrementUsage(ctx context.Context, category vocab.Category, code string, delta int) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}
	if delta < 0 {
		return errors.New("usage delta must be non-negative")
	}

	result := db.Model(&model.ReferenceEntry{}).
		Where("category = ? AND code = ?", string(category), strings.TrimSpace(code)).
		UpdateColumn("usage_count", gorm.Expr("usage_count + ?", delta))
	if result.Error != nil {
		return errs.Wrap(result.Error, "increment usage count")
	}
	if result.RowsAffected == 0 {
		return ports.ErrEntryNotFound
	}
	return nil
}

func (r *ReferenceRepository) SetApproval(ctx context.Context, category vocab.Category, code string, status vocab.ApprovalStatus) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.ReferenceEntry{}).
		Where("category = ? AND code = ?", string(category), strings.TrimSpace(code)).
		Updates(map[string]any{
			"approval_status": string(status),
			"updated_at":      nowUTCString(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "set approval status")
	}
	if result.RowsAffected == 0 {
		return ports.ErrEntryNotFound
	}
	return nil
}

// Deactivate retires an entry without deleting it so historic parsed events
// keep valid references.
func (r *ReferenceRepository) Deactivate(ctx context.Context, category vocab.Category, code string) error {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return err
	}

	result := db.Model(&model.ReferenceEntry{}).
		Where("category = ? AND code = ?", string(category), strings.TrimSpace(code)).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": nowUTCString(),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "deactivate reference entry")
	}
	if result.RowsAffected == 0 {
		return ports.ErrEntryNotFound
	}
	return nil
}

func mapReferenceEntry(row model.ReferenceEntry) vocab.Entry {
	return vocab.Entry{
		ID:             row.ID,
		Code:           row.Code,
		Category:       vocab.Category(row.Category),
		NameHI:         row.NameHI,
		NameEN:         row.NameEN,
		Aliases:        unmarshalStrings(row.AliasesJSON),
		IsActive:       row.IsActive,
		UsageCount:     row.UsageCount,
		Provenance:     vocab.Provenance(row.Provenance),
		ApprovalStatus: vocab.ApprovalStatus(row.ApprovalStatus),
	}
}
