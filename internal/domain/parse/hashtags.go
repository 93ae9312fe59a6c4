package parse

import (
	"strings"
	"unicode"
)

// GenerateHashtags derives discovery hashtags from the final fields of an
// event: event type labels (both languages), scheme names, and resolved
// district names. Output is deduplicated and non-authoritative.
func GenerateHashtags(eventHI, eventEN string, schemes, districts []string) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(raw string) {
		tag := hashtagForm(raw)
		if tag == "" {
			return
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, "#"+tag)
	}

	add(eventHI)
	add(eventEN)
	for _, scheme := range schemes {
		add(scheme)
	}
	for _, district := range districts {
		add(district)
	}
	return out
}

// hashtagForm joins words without separators, title-casing Latin words.
// Devanagari words are joined as-is.
func hashtagForm(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == '#'
	})
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, word := range fields {
		runes := []rune(word)
		if len(runes) > 0 && runes[0] < 0x80 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		for _, r := range runes {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
