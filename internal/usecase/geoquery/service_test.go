package geoquery

import (
	"context"
	"errors"
	"testing"
	"time"

	"janmat/internal/domain/geo"
	"janmat/internal/domain/parse"
	"janmat/internal/ports"
)

type stubEvents struct {
	events     []parse.ParsedEvent
	lastFilter ports.EventFilter
}

func (s *stubEvents) Save(context.Context, parse.ParsedEvent) error { return nil }
func (s *stubEvents) Get(context.Context, string) (parse.ParsedEvent, error) {
	return parse.ParsedEvent{}, ports.ErrEventNotFound
}
func (s *stubEvents) List(_ context.Context, filter ports.EventFilter) ([]parse.ParsedEvent, error) {
	s.lastFilter = filter
	return s.events, nil
}
func (s *stubEvents) Revisions(context.Context, string) ([]parse.ParsedEvent, error) {
	return nil, nil
}

type stubSnapshots struct {
	snap *ports.RefSnapshot
}

func (s *stubSnapshots) Current(context.Context) (*ports.RefSnapshot, error) { return s.snap, nil }
func (s *stubSnapshots) Refresh(context.Context) (*ports.RefSnapshot, error) { return s.snap, nil }

func queryGazetteer() *geo.Gazetteer {
	return geo.BuildGazetteer([]geo.GazetteerRecord{
		{Node: geo.Node{ID: 1, Type: geo.LevelDistrict, Name: "रायपुर"}},
		{Node: geo.Node{ID: 2, Type: geo.LevelAssembly, Name: "रायपुर ग्रामीण"}, ParentID: 1},
		{Node: geo.Node{ID: 3, Type: geo.LevelBlock, Name: "धरसींवा"}, ParentID: 2},
		{Node: geo.Node{ID: 4, Type: geo.LevelVillage, Name: "नवागांव"}, ParentID: 3},
		{Node: geo.Node{ID: 10, Type: geo.LevelDistrict, Name: "बिलासपुर"}},
	})
}

func pathTo(t *testing.T, g *geo.Gazetteer, nodeID uint64) geo.Path {
	t.Helper()
	path, ok := g.PathTo(nodeID)
	if !ok {
		t.Fatalf("no path to node %d", nodeID)
	}
	return path
}

func locatedEvent(postID string, paths ...geo.Path) parse.ParsedEvent {
	event := parse.ParsedEvent{PostID: postID}
	for _, p := range paths {
		leaf := p[len(p)-1]
		event.Locations = append(event.Locations, geo.Resolution{
			RawMention: leaf.Name,
			Path:       p,
		})
	}
	return event
}

func TestSummaryCountsDistinctPostsPerDistrict(t *testing.T) {
	g := queryGazetteer()
	events := &stubEvents{events: []parse.ParsedEvent{
		locatedEvent("p1", pathTo(t, g, 4)),
		// Two mentions inside the same district still count once.
		locatedEvent("p2", pathTo(t, g, 3), pathTo(t, g, 4)),
		locatedEvent("p3", pathTo(t, g, 10)),
		{PostID: "p4", Locations: []geo.Resolution{{RawMention: "कहीं"}}},
	}}
	svc := NewService(events, &stubSnapshots{snap: &ports.RefSnapshot{Gazetteer: g}})

	summary, err := svc.SummaryByDistrict(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalPosts != 4 {
		t.Fatalf("total %d, want 4", summary.TotalPosts)
	}
	if summary.UnresolvedPosts != 1 {
		t.Fatalf("unresolved %d, want 1", summary.UnresolvedPosts)
	}
	if len(summary.Districts) != 2 {
		t.Fatalf("districts %v", summary.Districts)
	}
	if summary.Districts[0].Node.Name != "रायपुर" || summary.Districts[0].Posts != 2 {
		t.Fatalf("first district %+v", summary.Districts[0])
	}
	if summary.Districts[1].Node.Name != "बिलासपुर" || summary.Districts[1].Posts != 1 {
		t.Fatalf("second district %+v", summary.Districts[1])
	}
}

func TestSummaryPassesFiltersThrough(t *testing.T) {
	g := queryGazetteer()
	events := &stubEvents{}
	svc := NewService(events, &stubSnapshots{snap: &ports.RefSnapshot{Gazetteer: g}})

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	if _, err := svc.SummaryByDistrict(context.Background(), Filters{
		From: from, To: to, EventCode: "rally",
	}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if events.lastFilter.EventCode != "rally" || !events.lastFilter.From.Equal(from) || !events.lastFilter.To.Equal(to) {
		t.Fatalf("filter not forwarded: %+v", events.lastFilter)
	}
}

func TestDrilldownBreaksDistrictIntoLevels(t *testing.T) {
	g := queryGazetteer()
	events := &stubEvents{events: []parse.ParsedEvent{
		locatedEvent("p1", pathTo(t, g, 4)),
		locatedEvent("p2", pathTo(t, g, 3)),
		locatedEvent("p3", pathTo(t, g, 10)),
	}}
	svc := NewService(events, &stubSnapshots{snap: &ports.RefSnapshot{Gazetteer: g}})

	drill, err := svc.ByDistrict(context.Background(), "रायपुर", Filters{})
	if err != nil {
		t.Fatalf("drilldown: %v", err)
	}
	if drill.District.ID != 1 {
		t.Fatalf("district %+v", drill.District)
	}
	if drill.Posts != 2 {
		t.Fatalf("district posts %d, want 2", drill.Posts)
	}
	if len(drill.Assemblies) != 1 || drill.Assemblies[0].Posts != 2 {
		t.Fatalf("assemblies %+v", drill.Assemblies)
	}
	if len(drill.Blocks) != 1 || drill.Blocks[0].Posts != 2 {
		t.Fatalf("blocks %+v", drill.Blocks)
	}
	// Only p1 reaches village depth.
	if len(drill.Leaves) != 1 || drill.Leaves[0].Posts != 1 {
		t.Fatalf("leaves %+v", drill.Leaves)
	}
}

func TestDrilldownUnknownDistrict(t *testing.T) {
	g := queryGazetteer()
	svc := NewService(&stubEvents{}, &stubSnapshots{snap: &ports.RefSnapshot{Gazetteer: g}})

	_, err := svc.ByDistrict(context.Background(), "जशपुर", Filters{})
	if !errors.Is(err, ErrDistrictNotFound) {
		t.Fatalf("err = %v, want ErrDistrictNotFound", err)
	}
}
