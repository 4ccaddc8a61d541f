package textutil

import (
	"math"
	"strings"
	"unicode"
)

// stopTerms are dropped before weighting. They appear in nearly every issue
// and would otherwise dominate small batches where IDF has little to work with.
var stopTerms = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {},
	"from": {}, "are": {}, "was": {}, "you": {}, "your": {}, "our": {},
	"has": {}, "have": {}, "will": {}, "not": {}, "but": {}, "its": {},
}

// Terms lowercases text and splits it on anything that is not a letter or
// digit. Terms shorter than three runes and stop terms are dropped.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopTerms[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Vector is a sparse term-weight vector over one document.
type Vector struct {
	weights map[string]float64
	norm    float64
}

// NewVector builds a raw term-frequency vector. It returns nil when the
// text yields no terms.
func NewVector(text string) *Vector {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	weights := make(map[string]float64, len(terms))
	for _, t := range terms {
		weights[t]++
	}
	return newVector(weights)
}

func newVector(weights map[string]float64) *Vector {
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	if sum == 0 {
		return nil
	}
	return &Vector{weights: weights, norm: math.Sqrt(sum)}
}

// Len reports the number of distinct terms.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.weights)
}

// Has reports whether term occurs in the vector.
func (v *Vector) Has(term string) bool {
	if v == nil {
		return false
	}
	_, ok := v.weights[term]
	return ok
}

// WeightBatch builds one TF-IDF vector per text, with document frequencies
// taken from the batch itself. Smoothed IDF is 1 + ln((n+1)/(1+df)), so a
// term present in every text keeps its raw count. Entries for texts without
// terms are nil.
func WeightBatch(texts []string) []*Vector {
	raw := make([]*Vector, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		raw[i] = NewVector(text)
		if raw[i] == nil {
			continue
		}
		for term := range raw[i].weights {
			df[term]++
		}
	}
	n := float64(len(texts))
	out := make([]*Vector, len(texts))
	for i, v := range raw {
		if v == nil {
			continue
		}
		weighted := make(map[string]float64, len(v.weights))
		for term, tf := range v.weights {
			weighted[term] = tf * (1 + math.Log((n+1)/(1+float64(df[term]))))
		}
		out[i] = newVector(weighted)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is nil.
func Cosine(a, b *Vector) float64 {
	if a == nil || b == nil {
		return 0
	}
	if len(b.weights) < len(a.weights) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a.weights {
		dot += w * b.weights[term]
	}
	return dot / (a.norm * b.norm)
}
