package geo

import (
	"sort"

	"janmat/internal/domain/vocab"
)

// GazetteerRecord is one gazetteer row as stored: a node plus its parent
// chain identifiers and known aliases.
type GazetteerRecord struct {
	Node     Node
	ParentID uint64
	Aliases  []string
}

// Gazetteer is an immutable in-memory index over the administrative
// hierarchy. Build once, share across concurrent parses; a vocabulary update
// swaps in a whole new Gazetteer.
type Gazetteer struct {
	byID     map[uint64]GazetteerRecord
	byName   map[string][]uint64
	children map[uint64][]uint64
}

func BuildGazetteer(records []GazetteerRecord) *Gazetteer {
	g := &Gazetteer{
		byID:     make(map[uint64]GazetteerRecord, len(records)),
		byName:   make(map[string][]uint64),
		children: make(map[uint64][]uint64),
	}

	for _, rec := range records {
		g.byID[rec.Node.ID] = rec
		if rec.ParentID != 0 {
			g.children[rec.ParentID] = append(g.children[rec.ParentID], rec.Node.ID)
		}

		names := append([]string{rec.Node.Name}, rec.Aliases...)
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			key := vocab.Normalize(name)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			g.byName[key] = append(g.byName[key], rec.Node.ID)
		}
	}

	return g
}

// PathTo walks parent links from the node up to its district and returns the
// full chain top-down.
func (g *Gazetteer) PathTo(nodeID uint64) (Path, bool) {
	var reversed []Node
	id := nodeID
	for id != 0 {
		rec, ok := g.byID[id]
		if !ok {
			return nil, false
		}
		reversed = append(reversed, rec.Node)
		id = rec.ParentID

		if len(reversed) > 8 {
			// Malformed parent cycle; refuse rather than loop.
			return nil, false
		}
	}

	path := make(Path, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, true
}

// Lookup returns every node whose name or alias normalizes to the mention.
func (g *Gazetteer) Lookup(mention string) []GazetteerRecord {
	ids := g.byName[vocab.Normalize(mention)]
	if len(ids) == 0 {
		return nil
	}

	records := make([]GazetteerRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, g.byID[id])
	}

	// Most specific first, then stable by name for deterministic candidate
	// ranking.
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].Node.Type.depth(), records[j].Node.Type.depth()
		if di != dj {
			return di > dj
		}
		return records[i].Node.Name < records[j].Node.Name
	})
	return records
}

// Names returns every distinct normalized name key in the gazetteer. The
// rule extractor scans posts against this set.
func (g *Gazetteer) Names() []string {
	out := make([]string, 0, len(g.byName))
	for name := range g.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *Gazetteer) Len() int {
	return len(g.byID)
}
