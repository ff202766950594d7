package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"db-fixture/internal/engine"
	"db-fixture/internal/fixture"
	"db-fixture/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	genConn   connFlags
	genTables []string
	genSchema string
	genCount  int
	genSeed   int64
	genOut    string
	genLoad   bool
	genClean  bool
	genDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate fake CSV fixtures for existing tables",
	Long: `Generate reflects the tables of a live database and writes one CSV fixture per
table, parents first, so foreign key columns reference generated parent keys.
With --load the files are loaded right away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, target, err := genConn.open(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("🦅 Connected to %s\n", target.Display)

		// Fetch count from Viper (Flag > Config > Default)
		targetCount := viper.GetInt("settings.default_count")
		if genCount > 0 {
			targetCount = genCount
		}
		names := genTables
		if len(names) == 0 {
			names = viper.GetStringSlice("settings.tables")
		}

		// 1. Analyze
		logger.Info("analyzing schema", "dialect", target.Dialect.Name())
		tables, err := schema.Analyze(ctx, db, target.Dialect, genSchema, names)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			return fmt.Errorf("no tables found")
		}

		if genDryRun {
			fmt.Printf("🔍 Analysis Results:\n")
			for i, t := range tables {
				fmt.Printf("[%02d] %s (Dependencies: %v)\n", i+1, t.FullName(), t.Dependencies)
			}
			return nil
		}

		outDir := genOut
		if outDir == "" {
			outDir = viper.GetString("resources")
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		// 2. Generate
		start := time.Now()
		uiprogress.Start()
		bar := uiprogress.AddBar(targetCount * len(tables)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Generating: "
		})

		gen := engine.NewGenerator(genSeed)
		files := make([]string, len(tables))
		for i, t := range tables {
			files[i] = filepath.Join(outDir, strings.ReplaceAll(t.FullName(), ".", "_")+".csv")
			if err := writeFixture(gen, t, targetCount, files[i], bar.Incr); err != nil {
				uiprogress.Stop()
				return err
			}
		}
		uiprogress.Stop()

		// 3. Load
		if genClean {
			if _, err := engine.Clean(ctx, db, target.Dialect, tables, logger); err != nil {
				return err
			}
		}
		loaded := make([]int, len(tables))
		if genLoad {
			for i, t := range tables {
				csv, err := fixture.ReadFile(ctx, files[i], fixture.Options{})
				if err != nil {
					return err
				}
				loaded[i], err = engine.Populate(ctx, db, target.Dialect, t.FullName(), csv, engine.Options{Logger: logger})
				csv.Close()
				if err != nil {
					return err
				}
			}
		}

		// 4. Final Report
		fmt.Println("\n📊 Summary Report (Dependency Order):")
		for i, t := range tables {
			status := "written"
			if genLoad {
				status = fmt.Sprintf("loaded %d rows", loaded[i])
			}
			fmt.Printf("[✓] [%02d/%02d] %-20s : %s - %s\n", i+1, len(tables), t.FullName(), files[i], status)
		}
		fmt.Println("--------------------------------------------------")
		logger.Info("generation done", "tables", len(tables), "rows_per_table", targetCount, "elapsed", time.Since(start))
		return nil
	},
}

func writeFixture(gen *engine.Generator, t *schema.Table, n int, path string, onRow func() bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := gen.Generate(t, n, f, func() { onRow() }); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	RootCmd.AddCommand(generateCmd)

	genConn.register(generateCmd)
	generateCmd.Flags().StringSliceVarP(&genTables, "tables", "t", []string{}, "Specific tables to generate (comma-separated)")
	generateCmd.Flags().StringVar(&genSchema, "schema-name", "", "database schema holding the tables (dialect default when empty)")
	generateCmd.Flags().IntVar(&genCount, "count", 0, "Number of records to generate per table (overrides config)")
	generateCmd.Flags().Int64Var(&genSeed, "seed", 1, "random seed, equal seeds give equal files")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "output directory (default: resources directory)")
	generateCmd.Flags().BoolVar(&genLoad, "load", false, "load the generated files into the database")
	generateCmd.Flags().BoolVar(&genClean, "clean", false, "Clean tables before loading")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Only print the analyzed tables in dependency order")

	viper.BindPFlag("settings.default_count", generateCmd.Flags().Lookup("count"))
	viper.SetDefault("settings.default_count", 100)
}
