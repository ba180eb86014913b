package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pvzvoice/internal/keyspace"
	"pvzvoice/internal/voice"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted playback settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsRateCommand(ctx))
	settingsCmd.AddCommand(newSettingsVariantCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show persisted settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				rows := [][]string{
					{"Playback rate", strconv.FormatFloat(svc.PlaybackRate(c), 'f', -1, 64)},
					{"Voice variant", string(svc.Variant())},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Setting", "Value"}, rows, nil))
				return nil
			})
		},
	}
}

func newSettingsRateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rate [value]",
		Short: "Show or set the playback rate (0 < rate <= 4)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					fmt.Fprintln(out, strconv.FormatFloat(svc.PlaybackRate(c), 'f', -1, 64))
					return nil
				}
				rate, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid rate %q: %w", args[0], err)
				}
				if err := svc.SetPlaybackRate(c, rate); err != nil {
					return err
				}
				fmt.Fprintf(out, "Playback rate set to %s\n", strconv.FormatFloat(rate, 'f', -1, 64))
				return nil
			})
		},
	}
}

func newSettingsVariantCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "variant [v1|v2]",
		Short: "Show or set the active voice variant",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					fmt.Fprintln(out, svc.Variant())
					return nil
				}
				v, err := keyspace.ParseVariant(args[0])
				if err != nil {
					return err
				}
				if err := svc.SetVariant(c, v); err != nil {
					return err
				}
				fmt.Fprintf(out, "Voice variant set to %s\n", v)
				return nil
			})
		},
	}
}
