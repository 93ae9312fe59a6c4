// Package rule implements the deterministic extraction layer: pattern and
// alias matching against the reference snapshot. It is always available and
// never fails; on no match it returns the unknown classification with
// confidence zero.
package rule

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"janmat/internal/domain/parse"
	"janmat/internal/domain/vocab"
	"janmat/internal/ports"
)

type Extractor struct {
	snapshots ports.SnapshotProvider
}

var _ ports.Extractor = (*Extractor)(nil)

func New(snapshots ports.SnapshotProvider) *Extractor {
	return &Extractor{snapshots: snapshots}
}

func (e *Extractor) Source() parse.Source {
	return parse.SourceRule
}

func (e *Extractor) Extract(ctx context.Context, text string) parse.PartialResult {
	normalized := vocab.Normalize(text)
	if normalized == "" {
		return unknown("empty post text")
	}

	snap, err := e.snapshots.Current(ctx)
	if err != nil {
		// The rule layer stays usable without a snapshot; it just cannot
		// match anything.
		return unknown("reference snapshot unavailable")
	}

	haystack := " " + normalized + " "

	eventEntry, eventAlias := matchFirst(haystack, snap.EntriesFor(vocab.CategoryEventType))
	schemes := matchAll(haystack, snap.EntriesFor(vocab.CategoryScheme))
	locations := matchGazetteer(haystack, snap)
	people := matchAll(haystack, snap.EntriesFor(vocab.CategoryPerson))
	people = append(people, honorificNames(text)...)
	people = dedupe(people)
	orgs := matchAll(haystack, snap.EntriesFor(vocab.CategoryOrg))
	orgs = append(orgs, orgSuffixNames(text)...)
	orgs = dedupe(orgs)

	result := parse.PartialResult{
		Source:        parse.SourceRule,
		Status:        parse.StatusOK,
		EventType:     parse.UnknownEventType,
		Locations:     locations,
		People:        people,
		Organizations: orgs,
		Schemes:       schemes,
	}

	matched := 0
	if eventEntry != nil {
		result.EventType = eventEntry.NameHI
		result.EventTypeEN = eventEntry.NameEN
		result.Reasoning = fmt.Sprintf("alias %q matched event type %q", eventAlias, eventEntry.NameHI)
		matched++
	}
	if len(schemes) > 0 {
		matched++
	}
	if len(locations) > 0 {
		matched++
	}
	if len(people)+len(orgs) > 0 {
		matched++
	}

	if matched > 0 {
		// Rules are the least reliable layer; confidence is capped well
		// below the model extractors.
		result.Confidence = 0.3 + 0.075*float64(matched)
		if result.Confidence > 0.6 {
			result.Confidence = 0.6
		}
	}
	if result.Reasoning == "" {
		if matched > 0 {
			result.Reasoning = "alias matches without an event type"
		} else {
			result.Reasoning = "no reference alias matched"
		}
	}

	return result
}

func unknown(reason string) parse.PartialResult {
	return parse.PartialResult{
		Source:    parse.SourceRule,
		Status:    parse.StatusOK,
		EventType: parse.UnknownEventType,
		Reasoning: reason,
	}
}

// containsWord reports whether needle occurs in haystack on word boundaries.
// haystack carries sentinel spaces at both ends.
func containsWord(haystack, needle string) bool {
	return needle != "" && strings.Contains(haystack, " "+needle+" ")
}

func entryKeys(entry vocab.Entry) []string {
	keys := make([]string, 0, len(entry.Aliases)+2)
	for _, raw := range append([]string{entry.NameHI, entry.NameEN}, entry.Aliases...) {
		if key := vocab.Normalize(raw); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func matchFirst(haystack string, entries []vocab.Entry) (*vocab.Entry, string) {
	for i := range entries {
		for _, key := range entryKeys(entries[i]) {
			if containsWord(haystack, key) {
				return &entries[i], key
			}
		}
	}
	return nil, ""
}

func matchAll(haystack string, entries []vocab.Entry) []string {
	var names []string
	for _, entry := range entries {
		for _, key := range entryKeys(entry) {
			if containsWord(haystack, key) {
				names = append(names, entry.NameHI)
				break
			}
		}
	}
	return names
}

func matchGazetteer(haystack string, snap *ports.RefSnapshot) []string {
	if snap.Gazetteer == nil {
		return nil
	}
	var out []string
	for _, name := range snap.Gazetteer.Names() {
		if containsWord(haystack, name) {
			out = append(out, name)
		}
	}
	return out
}

// Hindi honorifics that introduce a person name.
var honorifics = []string{"श्री", "श्रीमती", "डॉ", "डॉ॰", "पं", "कुमारी", "सुश्री"}

// honorificNames pulls person names introduced by an honorific: the
// honorific plus the following run of up to two capital-agnostic Devanagari
// tokens.
func honorificNames(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",;:!?()\"'", r)
	})

	var out []string
	for i, token := range tokens {
		cleaned := strings.TrimRight(token, ".।॰")
		if !isHonorific(cleaned) {
			continue
		}
		var nameParts []string
		for j := i + 1; j < len(tokens) && len(nameParts) < 2; j++ {
			next := strings.TrimRight(tokens[j], ".।")
			if next == "" || isHonorific(next) || !isDevanagariWord(next) {
				break
			}
			nameParts = append(nameParts, next)
		}
		if len(nameParts) > 0 {
			out = append(out, strings.Join(nameParts, " "))
		}
	}
	return out
}

func isHonorific(token string) bool {
	for _, h := range honorifics {
		if token == h {
			return true
		}
	}
	return false
}

func isDevanagariWord(token string) bool {
	for _, r := range token {
		if !unicode.In(r, unicode.Devanagari) {
			return false
		}
	}
	return token != ""
}

// Organization suffixes: a Devanagari token run ending in one of these is
// treated as an organization mention.
var orgSuffixes = []string{"पार्टी", "संगठन", "समिति", "मोर्चा", "परिषद", "संघ", "सभा"}

func orgSuffixNames(text string) []string {
	tokens := strings.Fields(text)

	var out []string
	for i, token := range tokens {
		cleaned := strings.TrimRight(token, ".,।!?")
		for _, suffix := range orgSuffixes {
			if cleaned != suffix {
				continue
			}
			// Take up to two preceding Devanagari tokens as the org name.
			start := i
			for j := i - 1; j >= 0 && start > i-2; j-- {
				prev := strings.TrimRight(tokens[j], ".,।")
				if !isDevanagariWord(prev) || isHonorific(prev) {
					break
				}
				start = j
			}
			if start < i {
				parts := append([]string{}, tokens[start:i]...)
				parts = append(parts, cleaned)
				out = append(out, strings.Join(parts, " "))
			}
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		key := vocab.Normalize(v)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
