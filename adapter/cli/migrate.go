package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cadence/internal/shared/infrastructure/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded schema for the configured database. Migrations
are idempotent; every command applies them on start as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := MustApp()
		if err != nil {
			return err
		}
		if err := migrations.Run(cmd.Context(), c.DBConn); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", c.DBDriver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
