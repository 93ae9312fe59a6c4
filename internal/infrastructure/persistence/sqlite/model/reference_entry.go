package model

type ReferenceEntry struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Category       string `gorm:"column:category;type:text;not null;uniqueIndex:idx_reference_category_code"`
	Code           string `gorm:"column:code;type:text;not null;uniqueIndex:idx_reference_category_code"`
	NameHI         string `gorm:"column:name_hi;type:text;not null"`
	NameEN         string `gorm:"column:name_en;type:text;not null"`
	AliasesJSON    string `gorm:"column:aliases_json;type:text;not null;default:'[]'"`
	IsActive       bool   `gorm:"column:is_active;not null;default:1"`
	UsageCount     int    `gorm:"column:usage_count;not null;default:0"`
	Provenance     string `gorm:"column:provenance;type:text;not null"`
	ApprovalStatus string `gorm:"column:approval_status;type:text;not null;index"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt      string `gorm:"column:updated_at;type:text;not null"`
}

func (ReferenceEntry) TableName() string {
	return "reference_entries"
}
