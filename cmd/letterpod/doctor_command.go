package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"letterpod/internal/app"
	"letterpod/internal/preflight"
	"letterpod/internal/stage"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, credentials, and collaborator reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			var probes []stage.Probe
			if !offline {
				probes = app.Probes(cmd.Context(), cfg, logger)
			}
			results := preflight.RunAll(cmd.Context(), cfg, probes...)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config: %s\n\n", ctx.configPath)
			for _, r := range results {
				kind := statusOK
				switch {
				case !r.Passed && r.Optional:
					kind = statusWarn
				case !r.Passed:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if preflight.Failed(results) {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip contacting the mailbox, script generator, and speech service")
	return cmd
}
