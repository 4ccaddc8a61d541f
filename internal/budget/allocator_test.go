package budget

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"letterpod/internal/newsletter"
)

func ranked(id string, rank newsletter.Rank, words int) newsletter.Ranked {
	return newsletter.Ranked{
		Document: newsletter.Document{
			ID:       id,
			Subject:  "Issue " + id,
			Body:     strings.TrimSpace(strings.Repeat("word ", words)),
			Received: time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC),
		},
		Rank: rank,
	}
}

func TestTargetWords(t *testing.T) {
	if got := TargetWords(30, 0); got != 4500 {
		t.Fatalf("TargetWords(30, default) = %d, want 4500", got)
	}
	if got := TargetWords(10, 120); got != 1200 {
		t.Fatalf("TargetWords(10, 120) = %d, want 1200", got)
	}
	if got := TargetWords(0, 150); got != 0 {
		t.Fatalf("TargetWords(0, 150) = %d, want 0", got)
	}
}

func TestAllocateSumWithinBounds(t *testing.T) {
	a := New(nil)
	cases := []struct {
		name     string
		included []newsletter.Ranked
		overflow int
		target   int
	}{
		{"single", []newsletter.Ranked{ranked("a", newsletter.RankOther, 800)}, 0, 4500},
		{"mixed", []newsletter.Ranked{
			ranked("a", newsletter.RankTimeSensitive, 1200),
			ranked("b", newsletter.RankActionable, 300),
			ranked("c", newsletter.RankAnalysis, 3000),
			ranked("d", newsletter.RankOther, 50),
		}, 0, 4500},
		{"heavy overflow", []newsletter.Ranked{
			ranked("a", newsletter.RankAnalysis, 500),
			ranked("b", newsletter.RankAnalysis, 900),
		}, 40, 3000},
		{"odd target", []newsletter.Ranked{
			ranked("a", newsletter.RankActionable, 333),
			ranked("b", newsletter.RankEvergreen, 777),
			ranked("c", newsletter.RankEvergreen, 111),
		}, 2, 1001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			overflow := make([]newsletter.Ranked, tc.overflow)
			set := a.Allocate(tc.included, overflow, tc.target)
			total := set.TotalBudget()
			low := int(0.9 * float64(tc.target))
			if total < low || total > tc.target {
				t.Fatalf("total budget %d outside [%d, %d]", total, low, tc.target)
			}
			if len(set.Items) != len(tc.included) {
				t.Fatalf("items = %d, want %d", len(set.Items), len(tc.included))
			}
			for i, item := range set.Items {
				if item.Budget < 0 {
					t.Fatalf("negative budget for %s", item.Document.ID)
				}
				if item.Document.ID != tc.included[i].Document.ID {
					t.Fatalf("order changed at %d", i)
				}
			}
		})
	}
}

func TestAllocateMonotonicAcrossRankGroups(t *testing.T) {
	// A short time-sensitive piece followed by long lower-ranked ones.
	included := []newsletter.Ranked{
		ranked("urgent-short", newsletter.RankTimeSensitive, 40),
		ranked("urgent-long", newsletter.RankTimeSensitive, 900),
		ranked("howto-huge", newsletter.RankActionable, 5000),
		ranked("analysis", newsletter.RankAnalysis, 2400),
		ranked("misc", newsletter.RankOther, 2400),
	}
	set := New(nil).Allocate(included, nil, 4500)
	for i := range set.Items {
		for j := i + 1; j < len(set.Items); j++ {
			hi, lo := set.Items[i], set.Items[j]
			if hi.Rank < lo.Rank && hi.Budget < lo.Budget {
				t.Fatalf("%s (rank %s) got %d words, less than %s (rank %s) with %d",
					hi.Document.ID, hi.Rank, hi.Budget, lo.Document.ID, lo.Rank, lo.Budget)
			}
		}
	}
}

func TestAllocateProportionalWithinGroup(t *testing.T) {
	included := []newsletter.Ranked{
		ranked("short", newsletter.RankAnalysis, 400),
		ranked("long", newsletter.RankAnalysis, 1200),
	}
	set := New(nil).Allocate(included, nil, 3000)
	short, long := set.Items[0].Budget, set.Items[1].Budget
	ratio := float64(long) / float64(short)
	if ratio < 2.9 || ratio > 3.1 {
		t.Fatalf("budgets %d and %d not proportional to 400:1200", short, long)
	}
}

func TestAllocateEmptyIsThin(t *testing.T) {
	set := New(nil).Allocate(nil, nil, 4500)
	if !set.Thin {
		t.Fatal("expected thin content signal")
	}
	if len(set.Items) != 0 || set.TotalBudget() != 0 {
		t.Fatalf("expected empty allocation, got %+v", set.Items)
	}
	if set.TargetWords != 4500 {
		t.Fatalf("target = %d", set.TargetWords)
	}
}

func TestAllocateSparseSourceIsThin(t *testing.T) {
	included := []newsletter.Ranked{ranked("tiny", newsletter.RankOther, 120)}
	set := New(nil).Allocate(included, nil, 4500)
	if !set.Thin {
		t.Fatal("expected sparse content to be flagged thin")
	}
	if set.TotalBudget() < 4050 {
		t.Fatalf("thin runs still allocate the full budget, got %d", set.TotalBudget())
	}
}

func TestAllocateManyDocuments(t *testing.T) {
	var included []newsletter.Ranked
	for i := range 10 {
		included = append(included, ranked(fmt.Sprintf("d%d", i), newsletter.Rank(i/2+1), 200+i*90))
	}
	set := New(nil).Allocate(included, nil, 4500)
	if total := set.TotalBudget(); total < 4050 || total > 4500 {
		t.Fatalf("total = %d", total)
	}
}
