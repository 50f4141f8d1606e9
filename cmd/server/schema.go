package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/movies-api/internal/database"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print or apply the movies table DDL",
	Long: `Schema prints the CREATE TABLE statement for the configured DB_DRIVER.
With --apply it runs the statement against the configured store instead.
The statement is idempotent; this is not a migration tool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		apply, _ := cmd.Flags().GetBool("apply")
		if !apply {
			ddl, err := database.Schema(cfg.DB.Driver)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ddl)
			return nil
		}

		db, err := database.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		if err := database.EnsureSchema(cmd.Context(), db, cfg.DB.Driver); err != nil {
			return err
		}
		log.Info().Str("driver", cfg.DB.Driver).Msg("schema applied")
		return nil
	},
}

func init() {
	schemaCmd.Flags().Bool("apply", false, "create the table in the configured store")
	rootCmd.AddCommand(schemaCmd)
}
