// Package extractor holds the pieces shared by the model-backed extraction
// strategies: the structured prompt and the decoding of model responses into
// the tagged PartialResult union.
package extractor

import (
	"encoding/json"
	"strings"

	"janmat/internal/domain/parse"
)

// payload is the JSON object both model extractors ask for. Fields are
// optional on the wire; absent fields decode to zero values.
type payload struct {
	EventType     string   `json:"event_type"`
	EventTypeEN   string   `json:"event_type_en"`
	Locations     []string `json:"locations"`
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Schemes       []string `json:"schemes"`
	EventDate     string   `json:"event_date"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
}

// DecodeModelOutput parses a model's raw text into a PartialResult. Fenced
// code blocks around the JSON are tolerated; anything that does not decode
// into the expected object fails closed as malformed.
func DecodeModelOutput(source parse.Source, raw string) parse.PartialResult {
	trimmed := stripFences(strings.TrimSpace(raw))
	if trimmed == "" {
		return parse.Malformed(source, "empty model output")
	}

	var p payload
	decoder := json.NewDecoder(strings.NewReader(trimmed))
	if err := decoder.Decode(&p); err != nil {
		return parse.Malformed(source, "model output is not valid JSON")
	}

	eventType := strings.TrimSpace(p.EventType)
	if eventType == "" {
		eventType = parse.UnknownEventType
	}

	confidence := p.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return parse.PartialResult{
		Source:        source,
		Status:        parse.StatusOK,
		EventType:     eventType,
		EventTypeEN:   strings.TrimSpace(p.EventTypeEN),
		Locations:     cleanList(p.Locations),
		People:        cleanList(p.People),
		Organizations: cleanList(p.Organizations),
		Schemes:       cleanList(p.Schemes),
		EventDate:     strings.TrimSpace(p.EventDate),
		Confidence:    confidence,
		Reasoning:     strings.TrimSpace(p.Reasoning),
	}
}

func stripFences(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
