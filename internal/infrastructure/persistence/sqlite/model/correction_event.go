package model

type CorrectionEvent struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	IdempotencyKey string `gorm:"column:idempotency_key;type:text;not null;uniqueIndex"`
	PostID         string `gorm:"column:post_id;type:text;not null;index"`
	Reviewer       string `gorm:"column:reviewer;type:text;not null"`
	SessionID      string `gorm:"column:session_id;type:text;not null"`
	Field          string `gorm:"column:field;type:text;not null"`
	Category       string `gorm:"column:category;type:text;not null;index:idx_correction_entry"`
	EntryCode      string `gorm:"column:entry_code;type:text;not null;index:idx_correction_entry"`
	Value          string `gorm:"column:value;type:text;not null"`
	CreatedAt      string `gorm:"column:created_at;type:text;not null"`
}

func (CorrectionEvent) TableName() string {
	return "correction_events"
}
