package prioritizer

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
	"time"

	"letterpod/internal/newsletter"
)

var base = time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)

func doc(id, sender, subject, body string, ageHours int) newsletter.Document {
	return newsletter.Document{
		ID:       id,
		Sender:   sender,
		Subject:  subject,
		Body:     body,
		Received: base.Add(-time.Duration(ageHours) * time.Hour),
	}
}

func ids(rs []newsletter.Ranked) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Document.ID)
	}
	return out
}

func TestClassifierRanks(t *testing.T) {
	k := NewKeywordClassifier()
	tests := []struct {
		subject string
		body    string
		want    newsletter.Rank
	}{
		{"Breaking: Fed announces emergency cut", "", newsletter.RankTimeSensitive},
		{"Weekly notes", "Registration closes March 14. Register by Friday, deadline is firm.", newsletter.RankTimeSensitive},
		{"How to negotiate your salary", "", newsletter.RankActionable},
		{"Deep dive: the chip market", "", newsletter.RankAnalysis},
		{"Compound interest explained", "", newsletter.RankEvergreen},
		{"Hello friends", "Some thoughts from the road.", newsletter.RankOther},
	}
	for _, tt := range tests {
		got, _ := k.Classify(newsletter.Document{Subject: tt.subject, Body: tt.body})
		if got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.subject, got, tt.want)
		}
	}
}

func TestPrioritizeOrdersByRankThenRecencyThenSender(t *testing.T) {
	docs := []newsletter.Document{
		doc("other-new", "Zed", "Hello friends", "Some musings about the weekend.", 1),
		doc("analysis-old", "Beta", "Deep dive: battery supply chains", "Long form piece on cathodes.", 10),
		doc("urgent", "Gamma", "Breaking: launch announced today", "Details inside about the new product line.", 20),
		doc("analysis-new-b", "Bravo", "Market analysis for Q2", "Spreads widened across credit.", 2),
		doc("analysis-new-a", "alpha", "Trend report: remote work", "Office attendance plateaued.", 2),
	}
	p := New(Options{MaxDocuments: 10}, nil, nil)
	sel := p.Prioritize(docs)

	want := []string{"urgent", "analysis-new-a", "analysis-new-b", "analysis-old", "other-new"}
	if got := ids(sel.Included); !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if docs[0].ID != "other-new" {
		t.Fatal("input slice was mutated")
	}
}

func TestPrioritizeIsDeterministic(t *testing.T) {
	var docs []newsletter.Document
	for i := range 30 {
		docs = append(docs, doc(fmt.Sprintf("d%02d", i), fmt.Sprintf("Sender %d", i%4),
			[]string{"How to plan", "Trend report", "Breaking news today", "Notes"}[i%4],
			fmt.Sprintf("Unique body number %d about topic %d with words.", i, i*7), i%5))
	}
	p := New(Options{MaxDocuments: 8}, nil, nil)
	first := p.Prioritize(docs)

	shuffled := slices.Clone(docs)
	r := rand.New(rand.NewPCG(1, 2))
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	second := p.Prioritize(shuffled)

	if !slices.Equal(ids(first.Included), ids(second.Included)) || !slices.Equal(ids(first.Overflow), ids(second.Overflow)) {
		t.Fatalf("ordering depends on input order:\n%v\n%v", ids(first.Included), ids(second.Included))
	}
}

func TestPrioritizeAccountsForEveryDocument(t *testing.T) {
	var docs []newsletter.Document
	for i := range 25 {
		docs = append(docs, doc(fmt.Sprintf("d%02d", i), "Sender", fmt.Sprintf("Issue %d", i),
			fmt.Sprintf("Story %d covers %s.", i, strings.Repeat(fmt.Sprintf("topic%d ", i), 3)), i))
	}
	docs = append(docs, doc("empty", "Sender", "Blank", "   ", 1))
	docs = append(docs, docs[3]) // repeated id from the mail store

	p := New(Options{MaxDocuments: 10}, nil, nil)
	sel := p.Prioritize(docs)

	if len(sel.Included) != 10 {
		t.Fatalf("included = %d, want ceiling 10", len(sel.Included))
	}
	if sel.Count() != 26 {
		t.Fatalf("accounted = %d, want 26 unique documents", sel.Count())
	}
	seen := map[string]int{}
	for _, id := range sel.IDs() {
		seen[id]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("document %s appears %d times", id, n)
		}
	}
	if len(sel.Excluded) != 1 || sel.Excluded[0].Reason != newsletter.ExcludeEmptyBody {
		t.Fatalf("expected empty body exclusion, got %+v", sel.Excluded)
	}
}

func TestPrioritizeOverflowIsLowestRankedTail(t *testing.T) {
	docs := []newsletter.Document{
		doc("low", "A", "Notes", "Plain musings here.", 1),
		doc("high", "B", "Breaking: deal announced today", "Merger terms inside.", 5),
		doc("mid", "C", "How to budget", "Steps and tips for budgeting.", 3),
	}
	p := New(Options{MaxDocuments: 2}, nil, nil)
	sel := p.Prioritize(docs)
	if got := ids(sel.Included); !slices.Equal(got, []string{"high", "mid"}) {
		t.Fatalf("included = %v", got)
	}
	if got := ids(sel.Overflow); !slices.Equal(got, []string{"low"}) {
		t.Fatalf("overflow = %v", got)
	}
}

func TestPrioritizeCharCeilingMovesTailToOverflow(t *testing.T) {
	long := strings.Repeat("word ", 400)
	docs := []newsletter.Document{
		doc("a", "A", "Breaking today", long, 1),
		doc("b", "B", "Breaking today", long+"b", 2),
		doc("c", "C", "Notes", "short", 3),
	}
	p := New(Options{MaxDocuments: 10, MaxTotalChars: 2500, BodyCharLimit: 1500, DuplicateThreshold: 1.01}, nil, nil)
	sel := p.Prioritize(docs)
	if got := ids(sel.Included); !slices.Equal(got, []string{"a"}) {
		t.Fatalf("included = %v", got)
	}
	if got := ids(sel.Overflow); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("overflow = %v, tail must stay contiguous", got)
	}
}

func TestPrioritizeExcludesNearDuplicates(t *testing.T) {
	body := "The central bank held rates steady and signalled patience on cuts while inflation cools."
	docs := []newsletter.Document{
		doc("orig", "Macro Daily", "Fed holds rates", body, 2),
		doc("fwd", "Macro Daily", "Fwd: Fed holds rates", body, 1),
		doc("other", "Tech Brief", "Chip export rules", "Regulators tightened rules on advanced packaging exports.", 1),
	}
	p := New(Options{MaxDocuments: 10}, nil, nil)
	sel := p.Prioritize(docs)
	if len(sel.Excluded) != 1 || sel.Excluded[0].Reason != newsletter.ExcludeDuplicate {
		t.Fatalf("expected one duplicate exclusion, got %+v", sel.Excluded)
	}
	if !strings.HasPrefix(sel.Excluded[0].Detail, "duplicate of ") {
		t.Fatalf("missing duplicate detail: %q", sel.Excluded[0].Detail)
	}
	if len(sel.Included) != 2 {
		t.Fatalf("included = %v", ids(sel.Included))
	}
}

func TestPrioritizeEmpty(t *testing.T) {
	sel := New(Options{}, nil, nil).Prioritize(nil)
	if sel.Count() != 0 {
		t.Fatalf("expected empty selection, got %+v", sel)
	}
}
