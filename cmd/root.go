package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"db-fixture/internal/engine"
	"db-fixture/internal/fixture"
	"db-fixture/internal/step"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	resources string
	logFormat string
	debug     bool

	logger = slog.Default()
)

var RootCmd = &cobra.Command{
	Use:   "db-fixture",
	Short: "Load CSV fixtures into databases and verify tables against them",
	Long: `
  ____  ____    _____ _____  _______ _   _ ____  _____
 |  _ \| __ )  |  ___|_ _\ \/ /_   _| | | |  _ \| ____|
 | | | |  _ \  | |_   | | \  /  | | | | | | |_) |  _|
 | |_| | |_) | |  _|  | | /  \  | | | |_| |  _ <| |___
 |____/|____/  |_|   |___/_/\_\ |_|  \___/|_| \_\_____|

DB FIXTURE - Database Fixture Loader & Verifier
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(os.Stderr, viper.GetString("log_format"), viper.GetBool("debug"))
		slog.SetDefault(logger)
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-fixture.yaml)")
	RootCmd.PersistentFlags().StringVar(&resources, "resources", "", "directory schema and data paths are relative to (default ./resources)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	RootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	viper.BindPFlag("resources", RootCmd.PersistentFlags().Lookup("resources"))
	viper.BindPFlag("log_format", RootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("resources", "resources")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("batch_size", engine.DefaultBatchSize)
}

// initConfig loads .env files, then the config file and environment variables.
func initConfig() {
	// .env values never override variables already set in the environment
	dir := resources
	if dir == "" {
		dir = "resources"
	}
	for _, envFile := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintln(os.Stderr, "Failed to load", envFile+":", err)
			}
		}
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("db-fixture")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_FIXTURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger: key=value text or JSON lines.
func newLogger(w io.Writer, format string, isDebug bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// newRunner assembles a step runner from the merged configuration.
func newRunner() *step.Runner {
	return &step.Runner{
		ResourcesDir: viper.GetString("resources"),
		BatchSize:    viper.GetInt("batch_size"),
		Logger:       logger,
		Fixture: fixture.Options{
			S3: fixture.S3Options{
				Endpoint:  viper.GetString("s3.endpoint"),
				Region:    viper.GetString("s3.region"),
				AccessKey: viper.GetString("s3.access_key"),
				SecretKey: viper.GetString("s3.secret_key"),
			},
		},
	}
}
