package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pvzvoice/internal/voice"
)

func newCloudCommand(ctx *commandContext) *cobra.Command {
	cloudCmd := &cobra.Command{
		Use:   "cloud",
		Short: "Copy recordings to and from object storage",
	}
	cloudCmd.AddCommand(newCloudPushCommand(ctx))
	cloudCmd.AddCommand(newCloudPullCommand(ctx))
	cloudCmd.AddCommand(newCloudListCommand(ctx))
	cloudCmd.AddCommand(newCloudDeleteCommand(ctx))
	return cloudCmd
}

func newCloudPushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload every recording for this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				report, err := svc.CloudPush(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Device %s: uploaded %d, skipped %d session-only\n", report.Device, len(report.Uploaded), len(report.Skipped))
				if len(report.Failed) > 0 {
					return fmt.Errorf("upload failed for: %s", strings.Join(report.Failed, ", "))
				}
				return nil
			})
		},
	}
}

func newCloudPullCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download this device's recordings and merge them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				report, err := svc.CloudPull(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Device %s: downloaded %d, imported %d key(s)\n", report.Device, report.Downloaded, report.Imported)
				if len(report.Failed) > 0 {
					return fmt.Errorf("download failed for: %s", strings.Join(report.Failed, ", "))
				}
				return nil
			})
		},
	}
}

func newCloudListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List this device's recordings in object storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				remote, err := svc.CloudList(c)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(remote) == 0 {
					fmt.Fprintln(out, "No recordings in object storage")
					return nil
				}
				rows := make([][]string, 0, len(remote))
				for _, item := range remote {
					rows = append(rows, []string{item.Key, item.Name, strconv.FormatInt(item.Size, 10), item.Object})
				}
				fmt.Fprintln(out, renderTable([]string{"Key", "File", "Size", "Object"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newCloudDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key's recordings from object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(c context.Context, svc *voice.Service) error {
				removed, err := svc.CloudDelete(c, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d object(s)\n", removed)
				return nil
			})
		},
	}
}
