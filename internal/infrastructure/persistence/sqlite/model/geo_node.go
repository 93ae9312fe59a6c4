package model

type GeoNode struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	ParentID    uint64 `gorm:"column:parent_id;not null;default:0;uniqueIndex:idx_geo_parent_name"`
	Type        string `gorm:"column:type;type:text;not null;index"`
	Name        string `gorm:"column:name;type:text;not null;uniqueIndex:idx_geo_parent_name"`
	Code        string `gorm:"column:code;type:text;not null;default:''"`
	IsUrban     bool   `gorm:"column:is_urban;not null;default:0"`
	AliasesJSON string `gorm:"column:aliases_json;type:text;not null;default:'[]'"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (GeoNode) TableName() string {
	return "geo_nodes"
}
