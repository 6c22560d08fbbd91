package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	catalogapp "github.com/narwhalmedia/deadarchive/internal/application/catalog"
	"github.com/narwhalmedia/deadarchive/internal/container"
	"github.com/narwhalmedia/deadarchive/internal/infrastructure/storage"
)

func newRatingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Rating reports over the local cache",
	}

	var (
		output        string
		minRating     float64
		top           int
		minConfidence float64
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Write recording and show ratings as JSON to a file or s3://bucket/key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(ctx context.Context, app *container.App) error {
				if !cmd.Flags().Changed("top") {
					top = app.Config.Ratings.TopLimit
				}
				if !cmd.Flags().Changed("min-confidence") {
					minConfidence = app.Config.Ratings.TopMinConfidence
				}

				doc, err := app.Exporter.Build(ctx, catalogapp.ExportOptions{
					MinRating:        minRating,
					TopLimit:         top,
					TopMinConfidence: minConfidence,
				})
				if err != nil {
					return err
				}

				data, err := json.MarshalIndent(doc, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode ratings: %w", err)
				}

				store, key, err := storage.ForTarget(ctx, output, app.Config.Storage, app.Logger)
				if err != nil {
					return err
				}
				if err := store.Store(ctx, key, bytes.NewReader(data)); err != nil {
					return err
				}

				app.Logger.Info("ratings exported", zap.String("target", store.URL(key)))
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d show ratings and %d recording ratings to %s\n",
					doc.Metadata.TotalShows, doc.Metadata.TotalRecordings, store.URL(key))
				return nil
			})
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "ratings.json", "output path or s3://bucket/key")
	export.Flags().Float64Var(&minRating, "min-rating", 0, "leave out shows rated below this")
	export.Flags().IntVar(&top, "top", 0, "number of top shows (default ratings.top_limit)")
	export.Flags().Float64Var(&minConfidence, "min-confidence", 0, "confidence needed for top shows (default ratings.top_min_confidence)")

	cmd.AddCommand(export)
	return cmd
}
