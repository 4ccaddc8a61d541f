package daemon_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"letterpod/internal/daemon"
	"letterpod/internal/stage"
	"letterpod/internal/workflow"
)

type countingRunner struct {
	runs atomic.Int32
	busy atomic.Bool
}

func (r *countingRunner) Busy() bool { return r.busy.Load() }

func (r *countingRunner) Run(context.Context, string) (workflow.RunSummary, error) {
	r.runs.Add(1)
	return workflow.RunSummary{Status: workflow.RunNoContent}, nil
}

func (r *countingRunner) Status(context.Context) workflow.StatusSummary {
	return workflow.StatusSummary{State: stage.Idle}
}

func (r *countingRunner) LastRun() (workflow.RunSummary, bool) { return workflow.RunSummary{}, false }

func testOptions(t *testing.T) daemon.Options {
	t.Helper()
	return daemon.Options{
		Schedule: "0 6 * * *",
		Location: time.UTC,
		LockPath: filepath.Join(t.TempDir(), "logs", "letterpod-serve.lock"),
	}
}

func TestDaemonStartStop(t *testing.T) {
	d, err := daemon.New(testOptions(t), &countingRunner{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.NextRun.IsZero() || status.NextRun.Hour() != 6 {
		t.Fatalf("next run = %v, want 06:00", status.NextRun)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if !d.NextRun().IsZero() {
		t.Fatal("stopped daemon has no next run")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	opts := testOptions(t)
	first, err := daemon.New(opts, &countingRunner{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(opts, &countingRunner{}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock conflict")
	}
}

func TestScheduledRunFires(t *testing.T) {
	opts := testOptions(t)
	opts.Schedule = "@every 1s"
	runner := &countingRunner{}
	d, err := daemon.New(opts, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runner.runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runner.runs.Load() == 0 {
		t.Fatal("schedule never fired")
	}
}

func TestBusyRunnerSkipsTick(t *testing.T) {
	opts := testOptions(t)
	opts.Schedule = "@every 1s"
	runner := &countingRunner{}
	runner.busy.Store(true)
	d, err := daemon.New(opts, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(1500 * time.Millisecond)
	d.Stop()
	if runner.runs.Load() != 0 {
		t.Fatalf("busy runner was invoked %d times", runner.runs.Load())
	}
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := daemon.New(testOptions(t), nil, nil); err == nil {
		t.Fatal("expected error without runner")
	}
}
