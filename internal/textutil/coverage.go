package textutil

// TokenOverlap returns the fraction of distinct terms in needle that also
// appear in haystack. An empty needle counts as fully covered.
func TokenOverlap(needle, haystack string) float64 {
	want := NewVector(needle)
	if want == nil {
		return 1
	}
	have := NewVector(haystack)
	var hit int
	for term := range want.weights {
		if have.Has(term) {
			hit++
		}
	}
	return float64(hit) / float64(want.Len())
}
