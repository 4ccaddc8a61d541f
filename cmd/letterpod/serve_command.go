package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"letterpod/internal/app"
	"letterpod/internal/daemon"
	"letterpod/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run on the configured schedule and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig(signalCtx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			p, err := app.Build(signalCtx, cfg, logger, app.BuildOptions{})
			if err != nil {
				logger.Error("build pipeline", logging.Error(err))
				return err
			}
			defer p.Close()

			d, err := daemon.New(daemon.OptionsFromConfig(cfg), p.Manager, logger)
			if err != nil {
				return err
			}
			if err := d.Start(signalCtx); err != nil {
				return err
			}
			defer d.Stop()

			out := cmd.OutOrStdout()
			status := d.Status(signalCtx)
			fmt.Fprintf(out, "letterpod serving; next run %s\n", status.NextRun.Format("2006-01-02 15:04 MST"))
			if status.APIAddress != "" {
				fmt.Fprintf(out, "API listening on %s\n", status.APIAddress)
			}

			<-signalCtx.Done()
			logger.Info("shutdown signal received", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		},
	}
}
