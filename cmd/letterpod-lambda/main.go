package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"letterpod/internal/app"
	"letterpod/internal/logging"
)

func main() {
	ctx := context.Background()

	cfg, _, err := app.LoadConfig(ctx, os.Getenv("LETTERPOD_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		slog.Error("failed to init logger", "err", err)
		os.Exit(1)
	}

	p, err := app.Build(ctx, cfg, logger, app.BuildOptions{})
	if err != nil {
		logger.Error("failed to build pipeline", logging.Error(err))
		os.Exit(1)
	}

	h, err := NewHandler(p.Manager, logger)
	if err != nil {
		logger.Error("failed to create handler", logging.Error(err))
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
