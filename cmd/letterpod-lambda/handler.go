package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"letterpod/internal/logging"
	"letterpod/internal/services"
	"letterpod/internal/workflow"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trigger string) (workflow.RunSummary, error)
}

// Response is returned to the scheduler and shows up in the invocation log.
type Response struct {
	RunID        string   `json:"runId"`
	Status       string   `json:"status"`
	Outcome      string   `json:"outcome,omitempty"`
	Included     []string `json:"included"`
	FailedStage  string   `json:"failedStage,omitempty"`
	FailureClass string   `json:"failureClass,omitempty"`
}

// Handler runs the pipeline for each scheduled event.
type Handler struct {
	runner Runner
	logger *slog.Logger
}

func NewHandler(runner Runner, logger *slog.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("handler requires a runner")
	}
	return &Handler{runner: runner, logger: logging.NewComponentLogger(logger, "lambda")}, nil
}

// Handle runs once per scheduled event. Failed runs return an error so the
// invocation is marked failed; a run that lost the lock to another
// invocation is not a failure.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (Response, error) {
	ctx = services.WithRequestID(ctx, event.ID)
	h.logger.Info("scheduled invocation",
		logging.String(logging.FieldEventType, "lambda_invoked"),
		logging.String("event_id", event.ID),
		logging.String("detail_type", event.DetailType),
	)

	summary, err := h.runner.Run(ctx, "schedule")
	resp := Response{
		RunID:        summary.RunID,
		Status:       string(summary.Status),
		Outcome:      string(summary.Outcome),
		Included:     summary.Included,
		FailedStage:  string(summary.FailedStage),
		FailureClass: summary.FailureClass,
	}
	if resp.Included == nil {
		resp.Included = []string{}
	}
	if err != nil && services.Classify(err) != services.KindConflict {
		return resp, err
	}
	return resp, nil
}
