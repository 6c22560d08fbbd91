package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/narwhalmedia/deadarchive/internal/container"
	"github.com/narwhalmedia/deadarchive/internal/domain/download"
)

func newDownloadsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "downloads",
		Aliases: []string{"dl"},
		Short:   "Manage track downloads",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List download entries",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					entries, err := app.Downloads.GetDownloadEntries(ctx)
					if err != nil {
						return err
					}
					printEntries(cmd.OutOrStdout(), entries)
					return nil
				})
			},
		},
		newDownloadStartCmd(opts),
		transitionCmd(opts, "pause", "Pause a running download", func(s download.Service) func(context.Context, string) error { return s.PauseDownload }),
		transitionCmd(opts, "resume", "Resume a paused download", func(s download.Service) func(context.Context, string) error { return s.ResumeDownload }),
		transitionCmd(opts, "cancel", "Cancel a download", func(s download.Service) func(context.Context, string) error { return s.CancelDownload }),
		transitionCmd(opts, "remove", "Remove a download entry and its file", func(s download.Service) func(context.Context, string) error { return s.RemoveDownload }),
	)
	return cmd
}

func newDownloadStartCmd(opts *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "start <show-id> <track-filename>",
		Short: "Queue a track download",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				track, err := app.Sync.FindTrack(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				id, err := app.Downloads.StartDownload(ctx, args[0], track.RecordingID, track.Filename, track.URL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
				if !wait {
					return nil
				}
				return waitForDownload(ctx, cmd.OutOrStdout(), app.Downloads, id)
			})
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the download finishes")
	return cmd
}

func transitionCmd(opts *rootOptions, use, short string, op func(download.Service) func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <download-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				if err := op(app.Downloads)(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", use, args[0])
				return nil
			})
		},
	}
}

// waitForDownload prints progress until the entry leaves the running states
func waitForDownload(ctx context.Context, w io.Writer, svc download.Service, id string) error {
	last := -1
	for entries := range svc.WatchDownloads(ctx) {
		for _, e := range entries {
			if e.ID() != id {
				continue
			}
			switch e.Status() {
			case download.StatusCompleted:
				fmt.Fprintf(w, "completed %s (%s)\n", e.LocalPath(), humanize.Bytes(uint64(e.BytesDownloaded())))
				return nil
			case download.StatusFailed:
				return fmt.Errorf("download failed: %s", e.ErrorMessage())
			case download.StatusCancelled:
				return fmt.Errorf("download cancelled")
			}
			if pct := int(e.Progress() * 100); pct != last {
				last = pct
				fmt.Fprintf(w, "%s %3d%% %s\n", e.Status(), pct, humanize.Bytes(uint64(e.BytesDownloaded())))
			}
		}
	}
	return ctx.Err()
}

func printEntries(w io.Writer, entries []*download.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tSIZE\tUPDATED")
	for _, e := range entries {
		size := humanize.Bytes(uint64(e.BytesDownloaded()))
		if e.TotalBytes() > 0 {
			size += " / " + humanize.Bytes(uint64(e.TotalBytes()))
		}
		fmt.Fprintf(tw, "%s\t%s\t%.0f%%\t%s\t%s\n", e.ID(), e.Status(), e.Progress()*100, size, humanize.Time(e.UpdatedAt()))
	}
	tw.Flush()
}
