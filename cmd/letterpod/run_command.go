package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"letterpod/internal/api"
	"letterpod/internal/app"
	"letterpod/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and deliver today's episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig(signalCtx)
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			p, err := app.Build(signalCtx, cfg, logger, app.BuildOptions{DryRun: dryRun})
			if err != nil {
				return err
			}
			defer p.Close()

			summary, runErr := p.Manager.Run(signalCtx, "cli")
			if jsonOut {
				if err := writeJSON(cmd, api.FromRunSummary(summary)); err != nil {
					return err
				}
			} else {
				printRunSummary(cmd, summary)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stop after the script is written; send and label nothing")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run summary as JSON")
	return cmd
}

func printRunSummary(cmd *cobra.Command, s workflow.RunSummary) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+s.RunID, colorize) {
		fmt.Fprintln(out, line)
	}

	kind := statusOK
	switch s.Status {
	case workflow.RunFailed:
		kind = statusError
	case workflow.RunConflict, workflow.RunNoContent:
		kind = statusWarn
	case workflow.RunDryRun:
		kind = statusInfo
	}
	fmt.Fprintln(out, renderStatusLine("Status", kind, string(s.Status), colorize))
	if s.Outcome != "" {
		fmt.Fprintln(out, renderStatusLine("Outcome", statusInfo, string(s.Outcome), colorize))
	}
	if s.FailedStage != "" {
		fmt.Fprintln(out, renderStatusLine("Failed stage", statusError, string(s.FailedStage)+": "+s.FailureClass, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Fetched", statusInfo, strconv.Itoa(s.Fetched), colorize))
	fmt.Fprintln(out, renderStatusLine("Included", statusInfo, strconv.Itoa(len(s.Included)), colorize))
	fmt.Fprintln(out, renderStatusLine("Words", statusInfo, fmt.Sprintf("%d of %d", s.Words, s.TargetWords), colorize))
	if s.Subject != "" {
		fmt.Fprintln(out, renderStatusLine("Subject", statusInfo, s.Subject, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, s.Duration().Round(time.Millisecond).String(), colorize))

	if len(s.Excluded) > 0 {
		rows := make([][]string, 0, len(s.Excluded))
		for _, ex := range s.Excluded {
			rows = append(rows, []string{ex.Document.Subject, string(ex.Reason), ex.Detail})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Excluded", "Reason", "Detail"}, rows, nil))
	}

	if s.Status == workflow.RunDryRun && strings.TrimSpace(s.Script.Text()) != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, s.Script.Text())
	}
}
