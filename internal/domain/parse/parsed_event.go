package parse

import (
	"time"

	"janmat/internal/domain/geo"
)

// ReviewStatus is the human-review lifecycle of a ParsedEvent.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewCorrected ReviewStatus = "corrected"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewSkipped   ReviewStatus = "skipped"
)

// ParsedEvent is the consensus output for one post. Once approved it is
// superseded only by an explicit correction, which appends a new revision
// rather than overwriting history.
type ParsedEvent struct {
	PostID string

	EventType   string
	EventTypeEN string
	EventCode   string

	Locations          []geo.Resolution
	People             []string
	Organizations      []string
	Schemes            []string
	SchemeLabelsEN     []string
	MatchedSchemeIDs   []uint64
	MatchedEventID     uint64
	GeneratedHashtags  []string
	EventDate          string

	OverallConfidence float64
	NeedsReview       bool
	ReviewStatus      ReviewStatus
	Reasoning         string

	ParsedAt time.Time
	ParsedBy string
}

// ResolvedDistricts lists distinct district names across resolved locations,
// in first-mention order.
func (e ParsedEvent) ResolvedDistricts() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, loc := range e.Locations {
		district, ok := loc.Path.District()
		if !ok {
			continue
		}
		if _, dup := seen[district.Name]; dup {
			continue
		}
		seen[district.Name] = struct{}{}
		out = append(out, district.Name)
	}
	return out
}
