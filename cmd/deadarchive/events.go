package main

import (
	"fmt"

	"github.com/spf13/cobra"

	eventsinfra "github.com/narwhalmedia/deadarchive/internal/infrastructure/events"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published lifecycle events",
	}

	var filter string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print lifecycle events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			return eventsinfra.Tail(ctx, opts.cfg.Events, filter, opts.log, func(subject string, data []byte) error {
				_, err := fmt.Fprintf(out, "%s %s\n", subject, data)
				return err
			})
		},
	}
	tail.Flags().StringVar(&filter, "filter", "download.>", "NATS subject filter (download.> or catalog.>)")

	cmd.AddCommand(tail)
	return cmd
}
