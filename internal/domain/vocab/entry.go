package vocab

// Category partitions the reference vocabulary. Every entry belongs to
// exactly one category.
type Category string

const (
	CategoryEventType Category = "event_type"
	CategoryScheme    Category = "scheme"
	CategoryHashtag   Category = "hashtag"
	CategoryLocation  Category = "location"
	CategoryPerson    Category = "person"
	CategoryOrg       Category = "organization"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryEventType, CategoryScheme, CategoryHashtag, CategoryLocation, CategoryPerson, CategoryOrg:
		return true
	}
	return false
}

// Provenance records how an entry entered the vocabulary.
type Provenance string

const (
	ProvenanceSeeded  Provenance = "seeded"
	ProvenanceLearned Provenance = "learned"
)

// ApprovalStatus is the moderation state of an entry. Seeded entries start
// approved; learned entries start pending and are promoted by the learning
// rules or by explicit moderator action.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Entry is a reference vocabulary record. Entries are never hard-deleted;
// retired entries flip IsActive so historic parses keep valid references.
type Entry struct {
	ID             uint64
	Code           string
	Category       Category
	NameHI         string
	NameEN         string
	Aliases        []string
	IsActive       bool
	UsageCount     int
	Provenance     Provenance
	ApprovalStatus ApprovalStatus
}

// Unknown event classification used when no extractor produced a usable
// answer.
const (
	UnknownEventHI   = "अज्ञात"
	UnknownEventEN   = "Unknown"
	UnknownEventCode = "unknown"
)

// ShouldPromote reports whether a pending entry has been confirmed by enough
// distinct review sessions to become approved. Repeat confirmations inside
// one session count once.
func ShouldPromote(confirmingSessions []string, threshold int) bool {
	if threshold < 1 {
		threshold = 1
	}

	distinct := make(map[string]struct{}, len(confirmingSessions))
	for _, session := range confirmingSessions {
		if session == "" {
			continue
		}
		distinct[session] = struct{}{}
	}
	return len(distinct) >= threshold
}

// Matches reports whether text equals the entry's canonical names or any
// alias after normalization.
func (e Entry) Matches(text string) bool {
	needle := Normalize(text)
	if needle == "" {
		return false
	}
	if Normalize(e.NameHI) == needle || Normalize(e.NameEN) == needle || Normalize(e.Code) == needle {
		return true
	}
	for _, alias := range e.Aliases {
		if Normalize(alias) == needle {
			return true
		}
	}
	return false
}
