package main

import (
	"fmt"

	"github.com/spf13/cobra"

	gormrepo "github.com/narwhalmedia/deadarchive/internal/infrastructure/persistence/gorm"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the local database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// NewDB migrates on open
			db, cleanup, err := gormrepo.NewDB(opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer cleanup()

			if status {
				for _, table := range gormrepo.Tables(db) {
					fmt.Fprintf(cmd.OutOrStdout(), "%-12s present=%t\n", table.Name, table.Present)
				}
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", opts.cfg.Database.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "list the schema tables")
	return cmd
}
