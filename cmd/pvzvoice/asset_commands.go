package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pvzvoice/internal/assetstore"
	"pvzvoice/internal/voice"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "upload <file|dir>...",
		Short: "Store recordings, inferring keys from file names",
		Long: "Store one or more recordings. Without --key each key is inferred from the\n" +
			"file name (\"44.mp3\" is cell 44, \"discount.wav\" is the discount prompt).\n" +
			"Directories are uploaded file by file; failures are reported and skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(key) != "" && len(args) != 1 {
				return errors.New("--key applies to exactly one file")
			}
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				failed := 0

				for _, arg := range args {
					info, err := os.Stat(arg)
					if err != nil {
						fmt.Fprintln(out, renderStatusLine(arg, statusError, err.Error(), colorize))
						failed++
						continue
					}
					if info.IsDir() {
						report, err := svc.SaveDir(c, arg)
						if err != nil {
							return err
						}
						failed += printBatch(out, report, colorize)
						continue
					}

					file, closer, err := voice.FileFromPath(arg)
					if err != nil {
						fmt.Fprintln(out, renderStatusLine(arg, statusError, err.Error(), colorize))
						failed++
						continue
					}
					result, err := svc.Save(c, key, file)
					_ = closer.Close()
					switch {
					case err == nil:
						fmt.Fprintln(out, renderStatusLine(file.Name, statusOK, "saved as "+result.Key, colorize))
					case errors.Is(err, assetstore.ErrDegraded):
						fmt.Fprintln(out, renderStatusLine(file.Name, statusWarn, "kept for this session only: storage full", colorize))
					default:
						fmt.Fprintln(out, renderStatusLine(file.Name, statusError, err.Error(), colorize))
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d upload(s) failed", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&key, "key", "k", "", "Store under this key instead of inferring it")
	return cmd
}

func printBatch(out io.Writer, report voice.BatchReport, colorize bool) int {
	names := make([]string, 0, len(report.Saved))
	for name := range report.Saved {
		names = append(names, name)
	}
	sort.Strings(names)
	degraded := map[string]bool{}
	for _, name := range report.Degraded {
		degraded[name] = true
	}
	for _, name := range names {
		if degraded[name] {
			fmt.Fprintln(out, renderStatusLine(name, statusWarn, "kept for this session only: storage full", colorize))
			continue
		}
		fmt.Fprintln(out, renderStatusLine(name, statusOK, "saved as "+report.Saved[name], colorize))
	}
	for _, failure := range report.Failed {
		fmt.Fprintln(out, renderStatusLine(failure.Name, statusError, failure.Err.Error(), colorize))
	}
	return len(report.Failed)
}

func newPlayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "play <key>",
		Short: "Play the recording for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				out := cmd.OutOrStdout()
				if svc.PlayByKey(c, args[0]) {
					fmt.Fprintf(out, "Played %s\n", args[0])
					return nil
				}
				if phrase, ok := svc.FallbackPhrase(args[0]); ok {
					fmt.Fprintf(out, "Fallback phrase: %s\n", phrase)
				}
				return fmt.Errorf("no playable recording for %q", args[0])
			})
		},
	}
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "resolve <key>",
		Short: "Show which recording a key resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				res, ok := svc.Resolve(c, args[0])
				if jsonOutput {
					payload := map[string]any{"key": args[0], "found": ok}
					if ok {
						payload["matched"] = res.MatchedKey
						payload["canonical"] = res.Asset.Key
						payload["strategy"] = res.Strategy
						payload["name"] = res.Asset.DisplayName
						payload["size_bytes"] = res.Asset.SizeBytes
						payload["durable"] = res.Asset.Durable()
						payload["refreshed"] = res.Refreshed
					}
					return writeJSON(cmd, payload)
				}
				out := cmd.OutOrStdout()
				if !ok {
					fmt.Fprintf(out, "No recording for %s\n", args[0])
					if phrase, ok := svc.FallbackPhrase(args[0]); ok {
						fmt.Fprintf(out, "Fallback phrase: %s\n", phrase)
					}
					return nil
				}
				rows := [][]string{
					{"Matched key", res.MatchedKey},
					{"Canonical key", res.Asset.Key},
					{"Strategy", res.Strategy},
					{"File", res.Asset.DisplayName},
					{"Size", strconv.FormatInt(res.Asset.SizeBytes, 10)},
					{"Durable", yesNo(res.Asset.Durable())},
					{"After refresh", yesNo(res.Refreshed)},
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cells that have a recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				cells := svc.ListKnownCells(c)
				if jsonOutput {
					if cells == nil {
						cells = []string{}
					}
					return writeJSON(cmd, cells)
				}
				out := cmd.OutOrStdout()
				if len(cells) == 0 {
					fmt.Fprintln(out, "No cell recordings")
					return nil
				}
				rows := make([][]string, 0, len(cells))
				store := svc.Store()
				for i, cell := range cells {
					name := ""
					if asset, ok := store.Peek(cell); ok {
						name = asset.DisplayName
					}
					rows = append(rows, []string{strconv.Itoa(i + 1), cell, name})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Cell", "File"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a recording and all of its aliases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				removed, err := svc.RemoveAsset(c, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(removed) == 0 {
					fmt.Fprintf(out, "No recording for %s\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "Removed %d key(s): %s\n", len(removed), strings.Join(removed, ", "))
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every recording from every namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to clear without --yes")
			}
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				if err := svc.ClearAll(c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All recordings cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm removal")
	return cmd
}
