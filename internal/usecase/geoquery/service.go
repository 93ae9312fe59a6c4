// Package geoquery serves the drilldown analytics consumed by the (external)
// dashboard: counts of distinct posts per administrative node, filterable by
// date range and event type.
package geoquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/errs"
	"janmat/internal/ports"
)

// ErrDistrictNotFound marks drilldown requests naming a district the
// gazetteer does not know.
var ErrDistrictNotFound = errors.New("district not found")

type Service struct {
	events    ports.ParsedEventRepository
	snapshots ports.SnapshotProvider
}

func NewService(events ports.ParsedEventRepository, snapshots ports.SnapshotProvider) *Service {
	return &Service{events: events, snapshots: snapshots}
}

// Filters narrow the analytics window. Zero values mean no restriction,
// never an empty result.
type Filters struct {
	From      time.Time
	To        time.Time
	EventCode string
}

type Summary struct {
	TotalPosts      int             `json:"total_posts"`
	UnresolvedPosts int             `json:"unresolved_posts"`
	Districts       []geo.NodeCount `json:"districts"`
}

type Drilldown struct {
	District   geo.Node        `json:"district"`
	Posts      int             `json:"posts"`
	Assemblies []geo.NodeCount `json:"assemblies"`
	Blocks     []geo.NodeCount `json:"blocks"`
	Leaves     []geo.NodeCount `json:"leaves"`
}

// SummaryByDistrict aggregates district-level counts over the filtered
// events. A post mentioning two districts contributes one count to each.
func (s *Service) SummaryByDistrict(ctx context.Context, filters Filters) (Summary, error) {
	if ctx == nil {
		return Summary{}, errors.New("context is required")
	}

	posts, unresolved, total, err := s.load(ctx, filters)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		TotalPosts:      total,
		UnresolvedPosts: unresolved,
		Districts:       geo.Aggregate(posts, geo.LevelDistrict),
	}, nil
}

// ByDistrict drills one district down to assemblies, blocks and leaf units.
func (s *Service) ByDistrict(ctx context.Context, district string, filters Filters) (Drilldown, error) {
	if ctx == nil {
		return Drilldown{}, errors.New("context is required")
	}
	district = strings.TrimSpace(district)
	if district == "" {
		return Drilldown{}, errors.New("district is required")
	}

	snap, err := s.snapshots.Current(ctx)
	if err != nil {
		return Drilldown{}, errs.Wrap(err, "load reference snapshot")
	}
	if snap.Gazetteer == nil {
		return Drilldown{}, errors.New("gazetteer is not loaded")
	}

	var node geo.Node
	found := false
	for _, rec := range snap.Gazetteer.Lookup(district) {
		if rec.Node.Type == geo.LevelDistrict {
			node = rec.Node
			found = true
			break
		}
	}
	if !found {
		return Drilldown{}, fmt.Errorf("district %q: %w", district, ErrDistrictNotFound)
	}

	posts, _, _, err := s.load(ctx, filters)
	if err != nil {
		return Drilldown{}, err
	}

	districtCounts := geo.AggregateUnder(posts, node.ID, geo.LevelDistrict)
	out := Drilldown{
		District:   node,
		Assemblies: geo.AggregateUnder(posts, node.ID, geo.LevelAssembly),
		Blocks:     geo.AggregateUnder(posts, node.ID, geo.LevelBlock),
		Leaves:     geo.AggregateUnder(posts, node.ID, geo.LevelVillage),
	}
	if len(districtCounts) > 0 {
		out.Posts = districtCounts[0].Posts
	}
	return out, nil
}

// load pulls the filtered events and projects them onto resolved geo paths.
func (s *Service) load(ctx context.Context, filters Filters) (posts []geo.PostLocations, unresolved int, total int, err error) {
	events, err := s.events.List(ctx, ports.EventFilter{
		EventCode: filters.EventCode,
		From:      filters.From,
		To:        filters.To,
	})
	if err != nil {
		return nil, 0, 0, errs.Wrap(err, "list parsed events")
	}

	for _, event := range events {
		paths := resolvedPaths(event)
		if len(paths) == 0 {
			unresolved++
			continue
		}
		posts = append(posts, geo.PostLocations{PostID: event.PostID, Paths: paths})
	}
	return posts, unresolved, len(events), nil
}

func resolvedPaths(event parse.ParsedEvent) []geo.Path {
	var out []geo.Path
	for _, loc := range event.Locations {
		if loc.Resolved() {
			out = append(out, loc.Path)
		}
	}
	return out
}
