package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"letterpod/internal/app"
	"letterpod/internal/budget"
	"letterpod/internal/newsletter"
	"letterpod/internal/prioritizer"
)

// newPlanCommand previews what the next run would narrate. It reads the
// mailbox but sends, labels, and generates nothing.
func newPlanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show which newsletters the next run would include",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			mailbox, err := app.NewMailbox(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			docs, err := mailbox.Fetch(cmd.Context(), cfg.Window())
			if err != nil {
				return err
			}

			selection := prioritizer.New(prioritizer.Options{
				MaxDocuments:  cfg.Podcast.MaxDocuments,
				MaxTotalChars: cfg.Podcast.MaxTotalChars,
				BodyCharLimit: cfg.Podcast.BodyCharLimit,
			}, nil, logger).Prioritize(docs)
			set := budget.New(logger).Allocate(selection.Included, selection.Overflow, cfg.TargetWords())

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintf(out, "No unprocessed newsletters labeled %q in the last %s\n", cfg.Mail.SourceLabel, cfg.Window())
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Sender", "Subject", "Rank", "Words", "Budget", "Plan"},
				planRows(set, selection),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Target %d words across %d newsletters", set.TargetWords, len(set.Items))
			if set.Thin {
				fmt.Fprint(out, " (thin day)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func planRows(set newsletter.InclusionSet, selection newsletter.Selection) [][]string {
	rows := make([][]string, 0, len(set.Items)+len(set.Overflow)+len(selection.Excluded))
	n := 0
	row := func(doc newsletter.Document, rank, budgetWords, plan string) {
		n++
		rows = append(rows, []string{
			strconv.Itoa(n),
			truncate(doc.DisplaySender(), 28),
			truncate(doc.Subject, 48),
			rank,
			strconv.Itoa(doc.WordCount()),
			budgetWords,
			plan,
		})
	}
	for _, item := range set.Items {
		row(item.Document, item.Rank.String(), strconv.Itoa(item.Budget), "narrate")
	}
	for _, item := range set.Overflow {
		row(item.Document, item.Rank.String(), "-", "mention")
	}
	for _, ex := range selection.Excluded {
		row(ex.Document, "-", "-", "skip: "+string(ex.Reason))
	}
	return rows
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
