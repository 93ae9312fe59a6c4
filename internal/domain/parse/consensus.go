package parse

import (
	"fmt"
	"sort"
	"strings"

	"janmat/internal/domain/vocab"
)

// Agreement classifies how the scalar vote resolved.
type Agreement string

const (
	AgreementPerfect  Agreement = "perfect"
	AgreementMajority Agreement = "majority"
	AgreementFallback Agreement = "fallback"
	AgreementNone     Agreement = "none"
)

// Settings are the consensus tuning knobs. Zero values are replaced with the
// documented defaults so a zero Settings is still usable in tests.
type Settings struct {
	ReviewThreshold float64
	HighConfidence  float64
	MajorityPenalty float64
	FallbackPenalty float64
}

func (s Settings) withDefaults() Settings {
	if s.ReviewThreshold == 0 {
		s.ReviewThreshold = 0.65
	}
	if s.HighConfidence == 0 {
		s.HighConfidence = 0.8
	}
	if s.MajorityPenalty == 0 {
		s.MajorityPenalty = 0.85
	}
	if s.FallbackPenalty == 0 {
		s.FallbackPenalty = 0.6
	}
	return s
}

// Outcome is the merged decision across extractors, before vocabulary and
// geo enrichment.
type Outcome struct {
	EventType   string
	EventTypeEN string
	EventDate   string

	Locations     []string
	People        []string
	Organizations []string
	Schemes       []string

	WinnerSource      Source
	Agreement         Agreement
	AvailableCount    int
	OverallConfidence float64
	NeedsReview       bool
	Reasoning         string
	ParsedBy          string
}

// Merge runs the consensus protocol over whatever extractors answered. It
// always returns an Outcome: zero available layers degrade to the unknown
// classification flagged for review, never an error.
func Merge(results []PartialResult, settings Settings) Outcome {
	settings = settings.withDefaults()

	available := make([]PartialResult, 0, len(results))
	var failures []string
	for _, r := range results {
		if r.Available() {
			available = append(available, r)
		} else if r.Source != "" {
			failures = append(failures, fmt.Sprintf("%s:%s", r.Source, firstNonEmpty(r.Reason, string(r.Status))))
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		return available[i].Source.preference() > available[j].Source.preference()
	})

	out := Outcome{
		EventType:      UnknownEventType,
		Agreement:      AgreementNone,
		AvailableCount: len(available),
		ParsedBy:       parsedBy(available),
	}

	winner, agreement, voteRatio := voteEventType(available)
	out.Agreement = agreement
	if winner != nil {
		out.EventType = winner.EventType
		out.EventTypeEN = winner.EventTypeEN
		out.EventDate = winner.EventDate
		out.WinnerSource = winner.Source
		out.Reasoning = winner.Reasoning
	}
	if out.EventDate == "" {
		for _, r := range available {
			if r.EventDate != "" {
				out.EventDate = r.EventDate
				break
			}
		}
	}

	out.Locations = mergeSet(available, settings, func(r PartialResult) []string { return r.Locations })
	out.People = mergeSet(available, settings, func(r PartialResult) []string { return r.People })
	out.Organizations = mergeSet(available, settings, func(r PartialResult) []string { return r.Organizations })
	out.Schemes = mergeSet(available, settings, func(r PartialResult) []string { return r.Schemes })

	out.OverallConfidence = overallConfidence(available, winner, agreement, voteRatio, settings)

	out.NeedsReview = out.OverallConfidence < settings.ReviewThreshold ||
		len(available) < 2 ||
		agreement == AgreementFallback ||
		agreement == AgreementNone

	if out.Reasoning == "" {
		out.Reasoning = insufficientSignal(len(available), failures)
	}

	return out
}

// voteEventType runs the scalar majority vote. Returns the winning result,
// the agreement class, and winning votes over voters.
func voteEventType(available []PartialResult) (*PartialResult, Agreement, float64) {
	voters := make([]PartialResult, 0, len(available))
	for _, r := range available {
		if r.HasEventType() {
			voters = append(voters, r)
		}
	}
	if len(voters) == 0 {
		return nil, AgreementNone, 0
	}

	votes := make(map[string]int, len(voters))
	for _, r := range voters {
		votes[vocab.Normalize(r.EventType)]++
	}

	bestKey := ""
	bestCount := 0
	for key, count := range votes {
		if count > bestCount {
			bestKey, bestCount = key, count
		}
	}

	if bestCount >= 2 {
		// available is preference-ordered, so the first matching voter is
		// the most reliable holder of the majority value.
		for i := range voters {
			if vocab.Normalize(voters[i].EventType) == bestKey {
				agreement := AgreementMajority
				if bestCount == 3 {
					agreement = AgreementPerfect
				}
				return &voters[i], agreement, float64(bestCount) / float64(len(voters))
			}
		}
	}

	// No majority: prefer hosted, then local, then rule. voters inherits the
	// preference order of available.
	return &voters[0], AgreementFallback, 1 / float64(len(voters))
}

// mergeSet unions a set field across extractors, keeping a value only when
// at least two layers report it, or when the hosted layer alone reports it
// at high self-confidence. Singleton low-confidence values are dropped so one
// hallucinating layer cannot pollute the output.
func mergeSet(available []PartialResult, settings Settings, field func(PartialResult) []string) []string {
	type candidate struct {
		display string
		sources map[Source]struct{}
		hosted  bool
		order   int
	}
	candidates := make(map[string]*candidate)
	order := 0

	for _, r := range available {
		for _, value := range field(r) {
			key := vocab.Normalize(value)
			if key == "" {
				continue
			}
			c := candidates[key]
			if c == nil {
				c = &candidate{sources: make(map[Source]struct{}), order: order}
				candidates[key] = c
				order++
			}
			if _, seen := c.sources[r.Source]; !seen {
				c.sources[r.Source] = struct{}{}
				// Higher-preference sources come first; keep the first form
				// seen as the display form.
				if c.display == "" {
					c.display = strings.TrimSpace(value)
				}
			}
			if r.Source == SourceHosted && r.Confidence >= settings.HighConfidence {
				c.hosted = true
			}
		}
	}

	kept := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.sources) >= 2 || c.hosted {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].order < kept[j].order })

	out := make([]string, 0, len(kept))
	for _, c := range kept {
		out = append(out, c.display)
	}
	return out
}

// overallConfidence blends the vote agreement ratio with the voters'
// reliability-weighted self-reported confidence, then applies the agreement
// penalty. Non-voting layers abstained and do not dilute the blend.
func overallConfidence(available []PartialResult, winner *PartialResult, agreement Agreement, voteRatio float64, settings Settings) float64 {
	if winner == nil || len(available) == 0 {
		return 0
	}

	weightSum := 0.0
	confSum := 0.0
	for _, r := range available {
		if !r.HasEventType() {
			continue
		}
		w := r.Source.ReliabilityWeight()
		weightSum += w
		confSum += w * clamp01(r.Confidence)
	}
	if weightSum == 0 {
		return 0
	}

	base := 0.5*voteRatio + 0.5*(confSum/weightSum)

	switch agreement {
	case AgreementPerfect:
		// full weight
	case AgreementMajority:
		base *= settings.MajorityPenalty
	case AgreementFallback:
		base *= settings.FallbackPenalty
	default:
		return 0
	}

	return clamp01(base)
}

func insufficientSignal(availableCount int, failures []string) string {
	if availableCount == 0 {
		msg := "insufficient signal: no extraction layer was available"
		if len(failures) > 0 {
			msg += " (" + strings.Join(failures, ", ") + ")"
		}
		return msg
	}
	return fmt.Sprintf("insufficient signal: %d layer(s) answered but none proposed an event type", availableCount)
}

func parsedBy(available []PartialResult) string {
	if len(available) == 0 {
		return "none"
	}
	names := make([]string, 0, len(available))
	for _, r := range available {
		names = append(names, string(r.Source))
	}
	return strings.Join(names, "+")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
