package parse

// Source identifies which extraction strategy produced a PartialResult.
// Reliability ordering is hosted > local > rule.
type Source string

const (
	SourceRule   Source = "rule"
	SourceLocal  Source = "local"
	SourceHosted Source = "hosted"
)

// ReliabilityWeight is the fixed trust factor per strategy used when
// blending self-reported confidences.
func (s Source) ReliabilityWeight() float64 {
	switch s {
	case SourceHosted:
		return 1.0
	case SourceLocal:
		return 0.8
	case SourceRule:
		return 0.5
	}
	return 0
}

// preference orders sources for the no-majority fallback.
func (s Source) preference() int {
	switch s {
	case SourceHosted:
		return 3
	case SourceLocal:
		return 2
	case SourceRule:
		return 1
	}
	return 0
}

// Status is the tagged-union discriminator of a PartialResult. The consensus
// engine treats malformed output exactly like unavailability; the tag is kept
// distinct for diagnostics.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusMalformed   Status = "malformed"
)

// PartialResult is one extractor's structured guess for a post. Field values
// are meaningful only when Status is StatusOK.
type PartialResult struct {
	Source Source
	Status Status
	Reason string

	EventType     string
	EventTypeEN   string
	Locations     []string
	People        []string
	Organizations []string
	Schemes       []string
	EventDate     string
	Confidence    float64
	Reasoning     string
}

// Available reports whether the result carries usable field values.
func (r PartialResult) Available() bool {
	return r.Status == StatusOK
}

// HasEventType reports whether the result proposes a non-unknown event
// classification.
func (r PartialResult) HasEventType() bool {
	return r.Available() && r.EventType != "" && r.EventType != UnknownEventType
}

// Unavailable builds the closed-off shape for a strategy that could not
// answer.
func Unavailable(source Source, reason string) PartialResult {
	return PartialResult{Source: source, Status: StatusUnavailable, Reason: reason}
}

// Malformed builds the shape for a strategy whose response could not be
// decoded.
func Malformed(source Source, reason string) PartialResult {
	return PartialResult{Source: source, Status: StatusMalformed, Reason: reason}
}

// UnknownEventType is the sentinel classification for "no usable answer".
const UnknownEventType = "अज्ञात"
