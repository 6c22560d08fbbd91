package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narwhalmedia/deadarchive/internal/container"
)

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the local show cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Evict shows older than cache.ttl that are not favorited or downloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				removed, err := app.Sync.CleanupStale(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "evicted %d shows\n", len(removed))
				for _, id := range removed {
					fmt.Fprintln(cmd.OutOrStdout(), "  "+id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sync <recording-id>",
		Short: "Fetch one recording from the remote catalog and merge it into its show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				show, err := app.Sync.SyncRecording(ctx, args[0])
				if err != nil {
					return err
				}
				printShow(cmd.OutOrStdout(), show)
				return nil
			})
		},
	})
	return cmd
}
