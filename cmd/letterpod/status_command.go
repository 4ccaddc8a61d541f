package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"letterpod/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running letterpod daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			if !cfg.API.Enabled {
				return errors.New("status needs the daemon API; set api.enabled = true and restart `letterpod serve`")
			}
			status, err := fetchStatus(cmd.Context(), "http://"+cfg.API.Bind, cfg.API.Token)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}
			printStatus(cmd, status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the status as JSON")
	return cmd
}

func fetchStatus(ctx context.Context, baseURL, token string) (api.WorkflowStatus, error) {
	var status api.WorkflowStatus
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/status", nil)
	if err != nil {
		return status, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return status, fmt.Errorf("connect to daemon at %s: %w; start it with `letterpod serve`", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return status, fmt.Errorf("daemon status: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return status, fmt.Errorf("daemon status: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("decode daemon status: %w", err)
	}
	return status, nil
}

func printStatus(cmd *cobra.Command, s api.WorkflowStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if s.Running {
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo, s.CurrentRun+" ("+s.State+")", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Run", statusOK, "idle", colorize))
	}
	if s.NextRun != "" {
		fmt.Fprintln(out, renderStatusLine("Next run", statusInfo, s.NextRun, colorize))
	}

	if last := s.LastRun; last != nil {
		kind := statusOK
		switch last.Status {
		case "failed":
			kind = statusError
		case "conflict", "no_content":
			kind = statusWarn
		}
		message := last.Status
		if last.Outcome != "" {
			message += ", " + last.Outcome
		}
		if last.FailureClass != "" {
			message += ": " + last.FailureClass
		}
		fmt.Fprintln(out, renderStatusLine("Last run", kind, message, colorize))
		fmt.Fprintln(out, renderStatusLine("Finished", statusInfo, last.FinishedAt, colorize))
		fmt.Fprintln(out, renderStatusLine("Newsletters", statusInfo, strconv.Itoa(len(last.Included))+" narrated", colorize))
	}

	if len(s.StageHealth) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Collaborators", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, h := range s.StageHealth {
			kind := statusOK
			if !h.Ready {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
		}
	}
}
