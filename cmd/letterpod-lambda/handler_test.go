package main

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"letterpod/internal/logging"
	"letterpod/internal/newsletter"
	"letterpod/internal/runlock"
	"letterpod/internal/services"
	"letterpod/internal/stage"
	"letterpod/internal/workflow"
)

type stubRunner struct {
	summary workflow.RunSummary
	err     error
	trigger string
	reqID   string
}

func (s *stubRunner) Run(ctx context.Context, trigger string) (workflow.RunSummary, error) {
	s.trigger = trigger
	s.reqID, _ = services.RequestIDFromContext(ctx)
	return s.summary, s.err
}

func scheduledEvent() events.CloudWatchEvent {
	return events.CloudWatchEvent{ID: "evt-1", DetailType: "Scheduled Event", Source: "aws.events"}
}

func TestNewHandler_ValidatesRunner(t *testing.T) {
	_, err := NewHandler(nil, logging.NewNop())
	require.Error(t, err)
}

func TestHandle_Delivered(t *testing.T) {
	runner := &stubRunner{summary: workflow.RunSummary{
		RunID:    "run-1",
		Status:   workflow.RunDelivered,
		Outcome:  newsletter.KindFullAudio,
		Included: []string{"m1", "m2"},
	}}
	h, err := NewHandler(runner, logging.NewNop())
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), scheduledEvent())
	require.NoError(t, err)
	require.Equal(t, "schedule", runner.trigger)
	require.Equal(t, "evt-1", runner.reqID)
	require.Equal(t, Response{
		RunID:    "run-1",
		Status:   "delivered",
		Outcome:  "full_audio",
		Included: []string{"m1", "m2"},
	}, resp)
}

func TestHandle_FailedRunReturnsError(t *testing.T) {
	runErr := services.Wrap(services.ErrTransient, "fetching", "fetch", "mailbox unavailable", nil)
	runner := &stubRunner{err: runErr, summary: workflow.RunSummary{
		RunID:        "run-2",
		Status:       workflow.RunFailed,
		FailedStage:  stage.Fetching,
		FailureClass: services.FailureClass(runErr),
	}}
	h, err := NewHandler(runner, logging.NewNop())
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), scheduledEvent())
	require.ErrorIs(t, err, services.ErrTransient)
	require.Equal(t, "failed", resp.Status)
	require.Equal(t, "fetching", resp.FailedStage)
	require.Equal(t, "external service unavailable", resp.FailureClass)
	require.NotNil(t, resp.Included)
}

func TestHandle_LockConflictIsNotAFailure(t *testing.T) {
	runner := &stubRunner{err: runlock.ErrHeld, summary: workflow.RunSummary{Status: workflow.RunConflict}}
	h, err := NewHandler(runner, logging.NewNop())
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), scheduledEvent())
	require.NoError(t, err)
	require.Equal(t, "conflict", resp.Status)
}
