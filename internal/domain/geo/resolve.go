package geo

// Resolution is the outcome of resolving one raw location mention.
// Exactly one of the three shapes holds:
//   - resolved: Path set, Ambiguous false
//   - ambiguous: Candidates ranked, Ambiguous true, Path empty
//   - unresolved: Path and Candidates empty
//
// Ambiguity is preserved for human disambiguation, never silently guessed.
type Resolution struct {
	RawMention string
	Path       Path
	Candidates []Path
	Ambiguous  bool
}

func (r Resolution) Resolved() bool {
	return len(r.Path) > 0 && !r.Ambiguous
}

// Resolve maps a raw mention onto the hierarchy. hints are other mentions
// from the same post; when the mention is ambiguous across districts, a hint
// naming one candidate's district or assembly selects that candidate.
func (g *Gazetteer) Resolve(rawMention string, hints []string) Resolution {
	out := Resolution{RawMention: rawMention}

	records := g.Lookup(rawMention)
	if len(records) == 0 {
		return out
	}

	// Lookup orders most-specific-first; collect full paths for every
	// candidate at the best (deepest) level.
	bestDepth := records[0].Node.Type.depth()
	var candidates []Path
	for _, rec := range records {
		if rec.Node.Type.depth() != bestDepth {
			break
		}
		if path, ok := g.PathTo(rec.Node.ID); ok {
			candidates = append(candidates, path)
		}
	}

	if len(candidates) == 0 {
		return out
	}
	if len(candidates) == 1 {
		out.Path = candidates[0]
		return out
	}

	if picked, ok := disambiguate(candidates, hints, g); ok {
		out.Path = picked
		return out
	}

	out.Candidates = candidates
	out.Ambiguous = true
	return out
}

// disambiguate returns the single candidate whose district or assembly is
// named by a hint. Zero or multiple hinted candidates keep the ambiguity.
func disambiguate(candidates []Path, hints []string, g *Gazetteer) (Path, bool) {
	hintNodes := make(map[uint64]struct{})
	for _, hint := range hints {
		for _, rec := range g.Lookup(hint) {
			if rec.Node.Type == LevelDistrict || rec.Node.Type == LevelAssembly {
				hintNodes[rec.Node.ID] = struct{}{}
			}
		}
	}
	if len(hintNodes) == 0 {
		return nil, false
	}

	var picked Path
	matches := 0
	for _, candidate := range candidates {
		for _, node := range candidate {
			if _, ok := hintNodes[node.ID]; ok {
				picked = candidate
				matches++
				break
			}
		}
	}

	if matches == 1 {
		return picked, true
	}
	return nil, false
}
