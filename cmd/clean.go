package cmd

import (
	"fmt"

	"db-fixture/internal/engine"
	"db-fixture/internal/schema"

	"github.com/spf13/cobra"
)

var (
	cleanConn   connFlags
	cleanTables []string
	cleanSchema string
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all rows from tables, children first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, target, err := cleanConn.open(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("🦅 Connected to %s\n", target.Display)

		// 1. Analyze
		logger.Info("analyzing schema", "dialect", target.Dialect.Name())
		tables, err := schema.Analyze(ctx, db, target.Dialect, cleanSchema, cleanTables)
		if err != nil {
			return err
		}

		// 2. Clean
		n, err := engine.Clean(ctx, db, target.Dialect, tables, logger)
		if err != nil {
			return err
		}
		fmt.Printf("✓ cleaned %d/%d tables\n", n, len(tables))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanConn.register(cleanCmd)
	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated, default all)")
	cleanCmd.Flags().StringVar(&cleanSchema, "schema-name", "", "database schema holding the tables (dialect default when empty)")
}
