package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/container"
	"github.com/narwhalmedia/deadarchive/internal/domain/catalog"
)

func newShowsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shows",
		Short: "Search and inspect shows",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search shows by year, decade, date, venue or song",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					return printSearch(ctx, cmd.OutOrStdout(), app, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "year <yyyy>",
			Short: "List the shows of one year",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				year, err := strconv.Atoi(args[0])
				if err != nil || year < 1965 || year > 1995 {
					return fmt.Errorf("invalid year %q", args[0])
				}
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					return printSearch(ctx, cmd.OutOrStdout(), app, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "get <show-id>",
			Short: "Show one show with its recordings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					show, err := app.Sync.GetShow(ctx, args[0])
					if err != nil {
						return err
					}
					printShow(cmd.OutOrStdout(), show)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "playlist <show-id>",
			Short: "Print an M3U playlist of the best recording",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					playlist, err := app.Sync.PlaylistForShow(ctx, args[0])
					if err != nil {
						return err
					}
					_, err = io.WriteString(cmd.OutOrStdout(), playlist)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "favorite <show-id>",
			Short: "Toggle a show favorite",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					added, err := app.Sync.ToggleFavorite(ctx, args[0])
					if err != nil {
						return err
					}
					if added {
						fmt.Fprintf(cmd.OutOrStdout(), "added %s to favorites\n", args[0])
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "removed %s from favorites\n", args[0])
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <show-id>",
			Short: "Delete a cached show",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(func(ctx context.Context, app *container.App) error {
					return app.Sync.DeleteShow(ctx, args[0])
				})
			},
		},
	)
	return cmd
}

// printSearch prints the cached emission and then the final one
func printSearch(ctx context.Context, w io.Writer, app *container.App, query string) error {
	var final catalogapp.SearchEmission
	for emission := range app.Sync.SearchShows(ctx, query) {
		label := string(emission.Phase)
		if emission.Degraded {
			label += " (remote unavailable)"
		}
		fmt.Fprintf(w, "== %s: %d shows\n", label, len(emission.Shows))
		printShowTable(w, emission.Shows)
		if emission.Final {
			final = emission
		}
	}
	if final.Err != nil {
		return final.Err
	}
	return ctx.Err()
}

func printShowTable(w io.Writer, shows []*catalog.Show) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range shows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.Date, s.Venue.Name, s.Location, formatRating(s), s.RecordingCount)
	}
	tw.Flush()
}

func printShow(w io.Writer, s *catalog.Show) {
	fmt.Fprintf(w, "%s  %s, %s\n", s.Date, s.Venue.Name, s.Location)
	fmt.Fprintf(w, "id:      %s\n", s.ID)
	fmt.Fprintf(w, "rating:  %s\n", formatRating(s))
	if len(s.Setlist) > 0 {
		fmt.Fprintf(w, "setlist: %s\n", catalog.FormatSetlist(s.Setlist))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nRECORDING\tSOURCE\tREVIEWS\tTRACKS\tBEST")
	for _, rec := range s.ActiveRecordings() {
		best := ""
		if rec.ID == s.BestRecordingID {
			best = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", rec.ID, rec.SourceType, rec.Tally.Count(), len(rec.Tracks), best)
	}
	tw.Flush()
}

func formatRating(s *catalog.Show) string {
	if s.Rating == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f (%d reviews)", s.Rating.Weighted, s.Rating.ReviewCount)
}
