package model

type ParsedEvent struct {
	ID                uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	PostID            string  `gorm:"column:post_id;type:text;not null;uniqueIndex"`
	Revision          int     `gorm:"column:revision;not null;default:1"`
	EventType         string  `gorm:"column:event_type;type:text;not null"`
	EventTypeEN       string  `gorm:"column:event_type_en;type:text;not null;default:''"`
	EventCode         string  `gorm:"column:event_code;type:text;not null;index"`
	LocationsJSON     string  `gorm:"column:locations_json;type:text;not null;default:'[]'"`
	PeopleJSON        string  `gorm:"column:people_json;type:text;not null;default:'[]'"`
	OrganizationsJSON string  `gorm:"column:organizations_json;type:text;not null;default:'[]'"`
	SchemesJSON       string  `gorm:"column:schemes_json;type:text;not null;default:'[]'"`
	SchemeLabelsJSON  string  `gorm:"column:scheme_labels_json;type:text;not null;default:'[]'"`
	SchemeIDsJSON     string  `gorm:"column:scheme_ids_json;type:text;not null;default:'[]'"`
	MatchedEventID    uint64  `gorm:"column:matched_event_id;not null;default:0"`
	HashtagsJSON      string  `gorm:"column:hashtags_json;type:text;not null;default:'[]'"`
	EventDate         string  `gorm:"column:event_date;type:text;not null;default:''"`
	OverallConfidence float64 `gorm:"column:overall_confidence;not null;default:0"`
	NeedsReview       bool    `gorm:"column:needs_review;not null;default:0;index"`
	ReviewStatus      string  `gorm:"column:review_status;type:text;not null;index"`
	Reasoning         string  `gorm:"column:reasoning;type:text;not null;default:''"`
	ParsedAt          string  `gorm:"column:parsed_at;type:text;not null;index"`
	ParsedBy          string  `gorm:"column:parsed_by;type:text;not null;default:''"`
}

func (ParsedEvent) TableName() string {
	return "parsed_events"
}

// ParsedEventRevision is the append-only audit trail: the full prior row
// serialized at the moment it was superseded.
type ParsedEventRevision struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	PostID       string `gorm:"column:post_id;type:text;not null;index"`
	Revision     int    `gorm:"column:revision;not null"`
	RecordJSON   string `gorm:"column:record_json;type:text;not null"`
	ReviewStatus string `gorm:"column:review_status;type:text;not null"`
	CreatedAt    string `gorm:"column:created_at;type:text;not null"`
}

func (ParsedEventRevision) TableName() string {
	return "parsed_event_revisions"
}
