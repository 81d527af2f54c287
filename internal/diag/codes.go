package diag

// Code is the closed set of diagnostic kinds.
type Code uint8

const (
	ParseFailure Code = iota
	InvalidFilename
	MissingTitle
	MissingDate
	InvalidDate
	MissingStatus
	InvalidStatus
	DuplicateID
	DuplicateSlug
	IDGap
	DanglingRelation
	SelfRelation
	InconsistentRelation
	SupersededWithoutSuccessor
	AmendsInactiveTarget
	StatusRelationMismatch
	UnlinkedDecision

	codeCount
)

type codeInfo struct {
	tag      string
	severity Severity
	title    string
}

// codeTable holds the stable tag, the fixed severity and the human title of
// every Code. Tags are part of the transport contract and must never change.
var codeTable = [...]codeInfo{
	ParseFailure:               {"PARSE_FAILURE", SevError, "front matter is missing or malformed"},
	InvalidFilename:            {"INVALID_FILENAME", SevWarning, "file name is not a canonical <id>-<slug>.md"},
	MissingTitle:               {"MISSING_TITLE", SevWarning, "title is missing, derived from the file name"},
	MissingDate:                {"MISSING_DATE", SevWarning, "date is missing"},
	InvalidDate:                {"INVALID_DATE", SevError, "date cannot be parsed"},
	MissingStatus:              {"MISSING_STATUS", SevInfo, "status is missing, defaulting to draft"},
	InvalidStatus:              {"INVALID_STATUS", SevError, "status is not a known lifecycle state"},
	DuplicateID:                {"DUPLICATE_ID", SevError, "two records share the same id"},
	DuplicateSlug:              {"DUPLICATE_SLUG", SevError, "two records share the same slug"},
	IDGap:                      {"ID_GAP", SevInfo, "id sequence has a gap"},
	DanglingRelation:           {"DANGLING_RELATION", SevWarning, "relation target cannot be found"},
	SelfRelation:               {"SELF_RELATION", SevWarning, "record references itself"},
	InconsistentRelation:       {"INCONSISTENT_RELATION", SevError, "relation and its declared inverse disagree"},
	SupersededWithoutSuccessor: {"SUPERSEDED_WITHOUT_SUCCESSOR", SevError, "superseded record has no resolvable successor"},
	AmendsInactiveTarget:       {"AMENDS_INACTIVE_TARGET", SevWarning, "record amends a deprecated or rejected record"},
	StatusRelationMismatch:     {"STATUS_RELATION_MISMATCH", SevWarning, "status contradicts declared relations"},
	UnlinkedDecision:           {"UNLINKED_DECISION", SevInfo, "decided record has no relations"},
}

// Compiles only when codeTable has exactly one slot per Code.
var _ = [1]struct{}{}[len(codeTable)-int(codeCount)]

// Codes returns every defined Code in declaration order.
func Codes() []Code {
	out := make([]Code, 0, codeCount)
	for c := Code(0); c < codeCount; c++ {
		out = append(out, c)
	}
	return out
}

// Tag returns the stable string identifier of the code.
func (c Code) Tag() string {
	if c >= codeCount {
		return "UNKNOWN"
	}
	return codeTable[c].tag
}

// Severity returns the fixed severity of the code.
func (c Code) Severity() Severity {
	if c >= codeCount {
		return SevError
	}
	return codeTable[c].severity
}

// Title returns a short human description of the code.
func (c Code) Title() string {
	if c >= codeCount {
		return "unknown diagnostic"
	}
	return codeTable[c].title
}

func (c Code) String() string {
	return c.Tag()
}

// MarshalText encodes the code as its stable tag.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.Tag()), nil
}

// CodeFromTag is the reverse lookup of Tag.
func CodeFromTag(tag string) (Code, bool) {
	for c := Code(0); c < codeCount; c++ {
		if codeTable[c].tag == tag {
			return c, true
		}
	}
	return 0, false
}
