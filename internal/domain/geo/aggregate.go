package geo

import "sort"

// PostLocations pairs a post with the geo paths it resolved to.
type PostLocations struct {
	PostID string
	Paths  []Path
}

// NodeCount is one drilldown bucket: a node and the number of distinct posts
// touching it.
type NodeCount struct {
	Node  Node
	Posts int
}

// Aggregate counts distinct posts per node at the requested level. A post
// whose paths touch two districts contributes one count to each; repeated
// mentions of the same node inside one post count once. Village and ULB
// leaves share the bottom drilldown level.
func Aggregate(posts []PostLocations, level Level) []NodeCount {
	type bucket struct {
		node  Node
		posts map[string]struct{}
	}
	buckets := make(map[uint64]*bucket)

	for _, post := range posts {
		for _, path := range post.Paths {
			node, ok := path.At(level)
			if !ok {
				continue
			}
			b := buckets[node.ID]
			if b == nil {
				b = &bucket{node: node, posts: make(map[string]struct{})}
				buckets[node.ID] = b
			}
			b.posts[post.PostID] = struct{}{}
		}
	}

	out := make([]NodeCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, NodeCount{Node: b.node, Posts: len(b.posts)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Posts != out[j].Posts {
			return out[i].Posts > out[j].Posts
		}
		return out[i].Node.Name < out[j].Node.Name
	})
	return out
}

// AggregateUnder restricts aggregation to paths passing through the given
// ancestor node, for drilldown one level at a time.
func AggregateUnder(posts []PostLocations, ancestorID uint64, level Level) []NodeCount {
	filtered := make([]PostLocations, 0, len(posts))
	for _, post := range posts {
		var kept []Path
		for _, path := range post.Paths {
			for _, node := range path {
				if node.ID == ancestorID {
					kept = append(kept, path)
					break
				}
			}
		}
		if len(kept) > 0 {
			filtered = append(filtered, PostLocations{PostID: post.PostID, Paths: kept})
		}
	}
	return Aggregate(filtered, level)
}
