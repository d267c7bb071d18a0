package main

import (
	"fmt"
	"os"

	"UserService/internal/app"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Run database migrations",
		Long:      `Run the embedded goose migrations against the users database. The DSN defaults to $PG_DSN.`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if dsn == "" {
				dsn = os.Getenv("PG_DSN")
			}
			if dsn == "" {
				return oops.Code("CONFIG_INVALID").Errorf("--dsn or PG_DSN is required")
			}
			if err := app.Migrate(cmd.Context(), dsn, command); err != nil {
				return oops.Code("MIGRATION_FAILED").With("command", command).Wrap(err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", command)
			return err
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN")
	return cmd
}
