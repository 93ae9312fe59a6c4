package extractor

import (
	"fmt"
	"strings"

	"janmat/internal/domain/vocab"
	"janmat/internal/ports"
)

// BuildSystemPrompt renders the instruction both model extractors send. The
// known event types and scheme names from the current reference snapshot
// steer classification toward the closed vocabulary.
func BuildSystemPrompt(snap *ports.RefSnapshot) string {
	var b strings.Builder

	b.WriteString("आप हिंदी राजनीतिक सोशल-मीडिया पोस्ट से संरचित तथ्य निकालने वाले विश्लेषक हैं।\n")
	b.WriteString("You extract structured facts from short Hindi political social-media posts.\n\n")
	b.WriteString("Return exactly one JSON object, no prose, with these fields:\n")
	b.WriteString(`{"event_type":"","event_type_en":"","locations":[],"people":[],"organizations":[],"schemes":[],"event_date":"","confidence":0.0,"reasoning":""}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- event_type: the Hindi name of the event class; use \"" + vocab.UnknownEventHI + "\" when unsure.\n")
	b.WriteString("- locations: place names exactly as written in the post.\n")
	b.WriteString("- schemes: government scheme names mentioned, exactly as written.\n")
	b.WriteString("- confidence: your own certainty in [0,1].\n")
	b.WriteString("- reasoning: one short sentence.\n")

	if snap != nil {
		if names := entryNames(snap.EntriesFor(vocab.CategoryEventType)); len(names) > 0 {
			fmt.Fprintf(&b, "\nKnown event types: %s\n", strings.Join(names, ", "))
		}
		if names := entryNames(snap.EntriesFor(vocab.CategoryScheme)); len(names) > 0 {
			fmt.Fprintf(&b, "Known schemes: %s\n", strings.Join(names, ", "))
		}
	}

	return b.String()
}

func entryNames(entries []vocab.Entry) []string {
	const maxNames = 40

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.NameHI == "" {
			continue
		}
		out = append(out, entry.NameHI)
		if len(out) == maxNames {
			break
		}
	}
	return out
}
