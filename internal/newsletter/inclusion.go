package newsletter

// Allocated is an included document with its word budget.
type Allocated struct {
	Ranked
	Budget int
}

// InclusionSet is the budgeted, ordered content for one script.
type InclusionSet struct {
	Items       []Allocated
	Overflow    []Ranked
	TargetWords int
	// Thin is set when nothing was included, so the script should use a
	// recap treatment instead of padding.
	Thin bool
}

// TotalBudget sums the allocated word budgets.
func (s InclusionSet) TotalBudget() int {
	total := 0
	for _, item := range s.Items {
		total += item.Budget
	}
	return total
}

// Documents returns the included documents in order.
func (s InclusionSet) Documents() []Document {
	docs := make([]Document, 0, len(s.Items))
	for _, item := range s.Items {
		docs = append(docs, item.Document)
	}
	return docs
}
