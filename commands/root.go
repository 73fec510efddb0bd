// commands/root.go
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gewnthar/surveyetl/config"
	"github.com/gewnthar/surveyetl/database"
	"github.com/gewnthar/surveyetl/publish"
	"github.com/gewnthar/surveyetl/scraper"
	"github.com/gewnthar/surveyetl/services"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

var (
	configPath string
	envPath    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "surveyetl",
	Short: "surveyetl downloads, loads and summarizes the yearly Stack Overflow developer surveys.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initSlog(verbose)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "optional .env file with SURVEY_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// initSlog installs tint as the default handler. The standard log package
// writes through it as well.
func initSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.LoadConfig(path, envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("configuration loaded", "path", path, "target", cfg.Output.Target, "driver", cfg.Database.Driver, "archive_dir", cfg.Survey.ArchiveDir)
	return cfg, nil
}

// app is everything a command needs, built from the loaded configuration.
type app struct {
	cfg      *config.Config
	pipeline *services.Pipeline
	db       *database.Store // nil for the flatfile target
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// ping returns the health check of the output target, nil when there is
// nothing to check.
func (a *app) ping() func(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.DB().PingContext
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	var store services.Store
	switch cfg.Output.Target {
	case config.TargetFlatFile:
		store = database.NewFlatFileStore(cfg.Output.FlatFileDir)
	default:
		a.db, err = database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		store = a.db
	}

	a.pipeline = services.NewPipeline(cfg, scraper.NewClient(cfg.Survey.RequestTimeout), store)
	return a, nil
}

// withPublisher attaches the S3 publisher configured under publish.
func (a *app) withPublisher(ctx context.Context) error {
	publisher, err := publish.NewS3Publisher(ctx, a.cfg.Publish)
	if err != nil {
		return err
	}
	a.pipeline.SetPublisher(publisher)
	return nil
}
