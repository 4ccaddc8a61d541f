package newsletter

// Rank orders documents for inclusion. Lower values rank higher.
type Rank int

const (
	RankTimeSensitive Rank = iota + 1
	RankActionable
	RankAnalysis
	RankEvergreen
	RankOther
)

func (r Rank) String() string {
	switch r {
	case RankTimeSensitive:
		return "time-sensitive"
	case RankActionable:
		return "actionable"
	case RankAnalysis:
		return "analysis"
	case RankEvergreen:
		return "evergreen"
	case RankOther:
		return "other"
	default:
		return "unranked"
	}
}

// Ranked pairs a document with its derived priority.
type Ranked struct {
	Document Document
	Rank     Rank
	// Signals lists the cues that produced Rank, for plan output and logs.
	Signals []string
}

// ExclusionReason explains why a fetched document was left out of a run.
type ExclusionReason string

const (
	ExcludeEmptyBody ExclusionReason = "empty body"
	ExcludeDuplicate ExclusionReason = "duplicate"
)

// Exclusion is a document that will not be narrated, with the reason.
type Exclusion struct {
	Document Document
	Reason   ExclusionReason
	Detail   string
}

// Selection is the Prioritizer output. Every fetched document appears in
// exactly one of the three lists.
type Selection struct {
	Included []Ranked
	Excluded []Exclusion
	Overflow []Ranked
}

// Count returns the number of documents accounted for.
func (s Selection) Count() int {
	return len(s.Included) + len(s.Excluded) + len(s.Overflow)
}

// IDs returns every document id in the selection, included first.
func (s Selection) IDs() []string {
	ids := make([]string, 0, s.Count())
	for _, r := range s.Included {
		ids = append(ids, r.Document.ID)
	}
	for _, r := range s.Overflow {
		ids = append(ids, r.Document.ID)
	}
	for _, e := range s.Excluded {
		ids = append(ids, e.Document.ID)
	}
	return ids
}
