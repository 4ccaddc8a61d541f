package workflow

import (
	"context"
	"time"

	"letterpod/internal/delivery"
	"letterpod/internal/events"
	"letterpod/internal/newsletter"
	"letterpod/internal/notifications"
	"letterpod/internal/runlock"
	"letterpod/internal/script"
	"letterpod/internal/services"
	"letterpod/internal/stage"
)

// Source fetches candidate newsletters.
type Source interface {
	Fetch(ctx context.Context, window time.Duration) ([]newsletter.Document, error)
}

// Prioritizer ranks and selects documents.
type Prioritizer interface {
	Prioritize(docs []newsletter.Document) newsletter.Selection
}

// Allocator assigns word budgets.
type Allocator interface {
	Allocate(included, overflow []newsletter.Ranked, target int) newsletter.InclusionSet
}

// Assembler produces the narration script.
type Assembler interface {
	Assemble(ctx context.Context, set newsletter.InclusionSet) (script.Result, error)
}

// Renderer turns the script into audio or its degraded substitute.
type Renderer interface {
	Render(ctx context.Context, s newsletter.Script) (newsletter.RenderResult, error)
}

// Deliverer sends episodes and notices to the recipient.
type Deliverer interface {
	Deliver(ctx context.Context, set newsletter.InclusionSet, result newsletter.RenderResult) (delivery.Receipt, error)
	SendNoContent(ctx context.Context) error
	SendFailure(ctx context.Context, runErr error) error
}

// Tracker owns the durable processed state.
type Tracker interface {
	EnsureUnclaimed(ctx context.Context, ids []string, checkpoint string) error
	Commit(ctx context.Context, ids []string, outcome newsletter.ArtifactKind) error
}

// EventPublisher records finished runs.
type EventPublisher interface {
	PublishRun(ctx context.Context, event events.RunEvent) error
}

// Collaborators bundles what the manager orchestrates. Notifier, Events,
// Lock, and Probes are optional.
type Collaborators struct {
	Source      Source
	Prioritizer Prioritizer
	Allocator   Allocator
	Assembler   Assembler
	Renderer    Renderer
	Delivery    Deliverer
	Tracker     Tracker
	Notifier    notifications.Service
	Events      EventPublisher
	Lock        runlock.Lock
	Probes      []stage.Probe
}

// Options tunes a run.
type Options struct {
	Window      time.Duration
	TargetWords int
	// DryRun stops after the script is assembled; nothing is sent or
	// committed.
	DryRun bool
	// Policy retries the fetch; later stages retry inside their collaborators.
	Policy services.Policy
}

// RunStatus is the terminal status of a run.
type RunStatus string

const (
	RunDelivered RunStatus = "delivered"
	RunNoContent RunStatus = "no_content"
	RunDryRun    RunStatus = "dry_run"
	RunConflict  RunStatus = "conflict"
	RunFailed    RunStatus = "failed"
)

// RunSummary describes one finished run.
type RunSummary struct {
	RunID        string
	Trigger      string
	Status       RunStatus
	Outcome      newsletter.ArtifactKind
	FailedStage  stage.Name
	FailureClass string
	Error        string
	Fetched      int
	Included     []string
	Overflow     []string
	Excluded     []newsletter.Exclusion
	TargetWords  int
	Words        int
	Subject      string
	Script       newsletter.Script
	Records      []newsletter.ProcessingRecord
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall time of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// StatusSummary is a point-in-time view of the manager.
type StatusSummary struct {
	Running    bool
	State      stage.Name
	CurrentRun string
	LastRun    *RunSummary
	Health     []stage.Health
}
