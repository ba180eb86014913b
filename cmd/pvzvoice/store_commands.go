package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pvzvoice/internal/voice"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge every namespace and repair damaged copies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				report, err := svc.Reconcile(c)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				names := make([]string, 0, len(report.Sources))
				for name := range report.Sources {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, strconv.Itoa(report.Sources[name])})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable([]string{"Namespace", "Entries"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				fmt.Fprintf(out, "Union: %d entries, repaired: %s, dropped handles: %d\n", report.Union, yesNo(report.Repaired), report.Dropped)
				if len(report.Written) > 0 {
					fmt.Fprintf(out, "Rewrote: %s\n", strings.Join(report.Written, ", "))
				}
				if len(report.Failed) > 0 {
					return fmt.Errorf("could not write: %s", strings.Join(report.Failed, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import recordings from legacy storage layouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				report, err := svc.Migrate(c)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %d legacy namespace(s), %d entries\n", len(report.Scanned), report.Entries)
				fmt.Fprintf(out, "Imported %d key(s); skipped %d session-only and %d invalid entries\n", report.Imported, report.Ephemeral, report.Invalid)
				if len(report.Unreadable) > 0 {
					fmt.Fprintf(out, "Unreadable: %s\n", strings.Join(report.Unreadable, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored recordings and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				stats, err := svc.Stats(c)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"Keys", strconv.Itoa(stats.Keys)},
					{"Recordings", strconv.Itoa(stats.Assets)},
					{"Cells", strconv.Itoa(stats.Cells)},
					{"Events", strconv.Itoa(stats.Events)},
					{"Bytes", strconv.FormatInt(stats.Bytes, 10)},
					{"Session only", strconv.Itoa(stats.Ephemeral)},
				}
				if stats.Usage.Limit > 0 {
					rows = append(rows, []string{"Quota used", fmt.Sprintf("%d / %d", stats.Usage.Used, stats.Usage.Limit)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
