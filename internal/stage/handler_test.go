package stage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSequenceTransitions(t *testing.T) {
	for i := 0; i < len(Sequence)-1; i++ {
		if !CanTransition(Sequence[i], Sequence[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", Sequence[i], Sequence[i+1])
		}
	}
	if !CanTransition(Committing, Idle) {
		t.Fatal("expected committing -> idle")
	}
}

func TestTransitionRules(t *testing.T) {
	cases := []struct {
		from, to Name
		want     bool
	}{
		{Rendering, Failed, true},
		{Idle, Failed, false},
		{Failed, Idle, true},
		{Failed, Fetching, false},
		{Fetching, Delivering, true},
		{Delivering, Idle, true},
		{Allocating, Delivering, true},
		{Assembling, Delivering, false},
		{Assembling, Idle, true},
		{Rendering, Idle, false},
		{Rendering, Assembling, false},
		{Idle, Committing, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestEvaluateProbes(t *testing.T) {
	health := Evaluate(context.Background(), time.Second,
		Probe{Name: "llm", Check: func(context.Context) error { return nil }},
		Probe{Name: "mail", Check: func(context.Context) error { return errors.New("token expired") }},
		Probe{Name: "speech"},
	)
	if len(health) != 3 {
		t.Fatalf("expected 3 results, got %d", len(health))
	}
	if !health[0].Ready || health[1].Ready || health[1].Detail != "token expired" {
		t.Fatalf("unexpected health %+v", health)
	}
	if health[2].Ready || health[2].Detail != "not configured" {
		t.Fatalf("unconfigured probe should be unhealthy: %+v", health[2])
	}
}
