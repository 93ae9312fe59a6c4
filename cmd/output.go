package cmd

import (
	"janmat/internal/domain/parse"
)

type locationSummary struct {
	RawMention string   `json:"raw_mention"`
	Path       string   `json:"path,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Ambiguous  bool     `json:"ambiguous,omitempty"`
}

type parsedEventSummary struct {
	PostID            string            `json:"post_id"`
	EventType         string            `json:"event_type"`
	EventTypeEN       string            `json:"event_type_en"`
	EventCode         string            `json:"event_code"`
	Locations         []locationSummary `json:"locations,omitempty"`
	People            []string          `json:"people,omitempty"`
	Organizations     []string          `json:"organizations,omitempty"`
	Schemes           []string          `json:"schemes,omitempty"`
	GeneratedHashtags []string          `json:"generated_hashtags,omitempty"`
	EventDate         string            `json:"event_date,omitempty"`
	OverallConfidence float64           `json:"overall_confidence"`
	NeedsReview       bool              `json:"needs_review"`
	Reasoning         string            `json:"reasoning,omitempty"`
	ParsedBy          string            `json:"parsed_by"`
}

func eventSummary(event parse.ParsedEvent) parsedEventSummary {
	locations := make([]locationSummary, 0, len(event.Locations))
	for _, loc := range event.Locations {
		ls := locationSummary{
			RawMention: loc.RawMention,
			Ambiguous:  loc.Ambiguous,
		}
		if loc.Resolved() {
			ls.Path = loc.Path.String()
		}
		for _, candidate := range loc.Candidates {
			ls.Candidates = append(ls.Candidates, candidate.String())
		}
		locations = append(locations, ls)
	}

	return parsedEventSummary{
		PostID:            event.PostID,
		EventType:         event.EventType,
		EventTypeEN:       event.EventTypeEN,
		EventCode:         event.EventCode,
		Locations:         locations,
		People:            event.People,
		Organizations:     event.Organizations,
		Schemes:           event.Schemes,
		GeneratedHashtags: event.GeneratedHashtags,
		EventDate:         event.EventDate,
		OverallConfidence: event.OverallConfidence,
		NeedsReview:       event.NeedsReview,
		Reasoning:         event.Reasoning,
		ParsedBy:          event.ParsedBy,
	}
}
