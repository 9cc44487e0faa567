package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"plantdoc/internal/bootstrap"
	"plantdoc/internal/shared/storage/db"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply history database migrations",
		Long: `Apply the embedded migrations to the configured history database
(HISTORY_BACKEND=sqlite with SQLITE_PATH, or HISTORY_BACKEND=postgres with
DATABASE_URL). Connection pool settings come from DB_* variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect, err := db.ParseDialect(c.cfg.HistoryBackend)
			if err != nil {
				return fmt.Errorf("history backend %q has no database to migrate", c.cfg.HistoryBackend)
			}
			dsn := c.cfg.SQLitePath
			if dialect == db.DialectPostgres {
				dsn = c.cfg.DatabaseURL
			}

			ctx := cmd.Context()
			sqlDB, err := bootstrap.OpenDatabase(ctx, dialect, dsn, db.OptionsFromEnv(db.DefaultMigrateOptions()))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer sqlDB.Close()

			if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			v, err := db.MigrationVersion(ctx, sqlDB, dialect)
			if err != nil {
				return fmt.Errorf("read migration version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s history database at version %d\n", dialect, v)
			return nil
		},
	}
}
