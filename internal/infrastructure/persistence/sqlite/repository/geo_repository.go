package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"janmat/internal/domain/geo"
	"janmat/internal/errs"
	"janmat/internal/infrastructure/persistence/sqlite/model"
	"janmat/internal/ports"
)

type GeoNodeRepository struct {
	db *gorm.DB
}

var _ ports.GeoRepository = (*GeoNodeRepository)(nil)

func NewGeoNodeRepository(db *gorm.DB) *GeoNodeRepository {
	return &GeoNodeRepository{db: db}
}

func (r *GeoNodeRepository) ListNodes(ctx context.Context) ([]geo.GazetteerRecord, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.GeoNode
	if err := db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query geo nodes")
	}

	records := make([]geo.GazetteerRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, geo.GazetteerRecord{
			Node: geo.Node{
				ID:      row.ID,
				Type:    geo.Level(row.Type),
				Name:    row.Name,
				Code:    row.Code,
				IsUrban: row.IsUrban,
			},
			ParentID: row.ParentID,
			Aliases:  unmarshalStrings(row.AliasesJSON),
		})
	}
	return records, nil
}

// UpsertNode converges on (parent, name) and returns the row id, so seed
// reloads are idempotent.
func (r *GeoNodeRepository) UpsertNode(ctx context.Context, record geo.GazetteerRecord) (uint64, error) {
	db, err := dbFrom(ctx, r.db)
	if err != nil {
		return 0, err
	}

	name := strings.TrimSpace(record.Node.Name)
	if name == "" {
		return 0, errors.New("geo node name is required")
	}
	if !record.Node.Type.Valid() {
		return 0, errors.New("geo node type is invalid")
	}

	// Urban flag is a property of the node type, kept consistent on write.
	isUrban := record.Node.Type == geo.LevelULB

	row := model.GeoNode{
		ParentID:    record.ParentID,
		Type:        string(record.Node.Type),
		Name:        name,
		Code:        strings.TrimSpace(record.Node.Code),
		IsUrban:     isUrban,
		AliasesJSON: marshalStrings(record.Aliases),
		CreatedAt:   nowUTCString(),
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "parent_id"}, {Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"type":         row.Type,
			"code":         row.Code,
			"is_urban":     row.IsUrban,
			"aliases_json": row.AliasesJSON,
		}),
	}).Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "upsert geo node")
	}

	var stored model.GeoNode
	if err := db.
		Where("parent_id = ? AND name = ?", record.ParentID, name).
		Take(&stored).Error; err != nil {
		return 0, errs.Wrap(err, "read back geo node")
	}
	return stored.ID, nil
}
