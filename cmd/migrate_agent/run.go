package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/b2b-migrator/internal/config"
	"github.com/jonathan/b2b-migrator/internal/db"
	"github.com/jonathan/b2b-migrator/internal/ledger"
	"github.com/jonathan/b2b-migrator/internal/observability"
	"github.com/jonathan/b2b-migrator/internal/pipeline"
	"github.com/jonathan/b2b-migrator/internal/scheduler"
	"github.com/jonathan/b2b-migrator/internal/target"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full migration pipeline end-to-end",
	Long: `Orchestrates the entire migration: extraction -> transformation -> migration.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath  string
	runExport      string
	runRoutes      string
	runTargetURL   string
	runWorkers     int
	runPushTimeout int
	runForce       bool
	runVerbose     bool
	runDatabaseURL string
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	runCommand.Flags().StringVarP(&runExport, "export", "e", "", "Path to source-system export JSON file")
	runCommand.Flags().StringVar(&runRoutes, "routes", "", "Path to YAML route overrides for the target API")
	runCommand.Flags().StringVar(&runTargetURL, "target-url", "", "Base URL of the target REST API (optional, defaults to TARGET_URL env var)")
	runCommand.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent pushes within a dependency wave")
	runCommand.Flags().IntVar(&runPushTimeout, "push-timeout", 0, "Per-item push timeout in seconds")
	runCommand.Flags().BoolVar(&runForce, "force", false, "Re-push artifacts that already migrated")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")

	// Database URL for the artifact ledger
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if runConfigPath != "" {
		loadedCfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if runVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", runConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("export") {
		cfg.Export = runExport
	}
	if cmd.Flags().Changed("routes") {
		cfg.Routes = runRoutes
	}
	if cmd.Flags().Changed("target-url") {
		cfg.TargetURL = runTargetURL
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = runWorkers
	}
	if cmd.Flags().Changed("push-timeout") {
		cfg.PushTimeoutSeconds = runPushTimeout
	}
	if cmd.Flags().Changed("force") {
		cfg.Force = runForce
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = runVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}

	// Step 3: Apply defaults for unset values
	defaults := config.Config{
		Workers:            scheduler.DefaultWorkers,
		PushTimeoutSeconds: int(scheduler.DefaultPushTimeout / time.Second),
	}
	cfg = cfg.MergeWithDefaults(defaults)

	// Step 4: Validate required fields
	if cfg.Export == "" {
		return fmt.Errorf("--export must be provided (via flag or config)")
	}
	if cfg.TargetURL == "" {
		cfg.TargetURL = os.Getenv("TARGET_URL")
	}
	if cfg.TargetURL == "" {
		return fmt.Errorf("TARGET_URL environment variable or --target-url flag is required")
	}

	// Step 5: Target credentials (config file or environment)
	creds, err := cfg.Credentials()
	if err != nil {
		return err
	}

	// Step 6: Database URL handling. Without one the ledger lives in memory
	// for the duration of the run; review operations then need the server
	// with a real database behind it.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	var store ledger.Store
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		store = database
	} else {
		_, _ = fmt.Fprintln(os.Stdout, "Warning: no DATABASE_URL set, artifact ledger will not be persisted")
		store = ledger.NewMemoryStore()
	}

	routes, err := config.LoadRoutes(cfg.Routes)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	client := target.NewClient(cfg.TargetURL, &target.Options{Routes: routes})
	lifecycle := ledger.NewLifecycle(store)
	sched := scheduler.New(lifecycle, client, target.NewTokenCache(client), &scheduler.Options{
		Workers:     cfg.Workers,
		PushTimeout: time.Duration(cfg.PushTimeoutSeconds) * time.Second,
	})

	opts := pipeline.Options{Workers: cfg.Workers}
	if cfg.Verbose {
		opts.OnProgress = func(event pipeline.ProgressEvent) {
			_, _ = fmt.Fprintf(os.Stdout, "[%s] %s\n", event.Step, event.Message)
		}
	}
	orchestrator := pipeline.New(lifecycle, sched, opts)

	// Extract
	exportJSON, err := os.ReadFile(cfg.Export)
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}
	job, err := orchestrator.Extract(ctx, "file_upload", exportJSON)
	if err != nil {
		return err
	}
	printer.PrintExtractionJob(job)

	// Transform
	transformSummary, err := orchestrator.TransformAll(ctx)
	if err != nil {
		return err
	}
	printer.PrintTransformSummary(transformSummary)

	// Migrate
	batchSummary, err := orchestrator.MigrateAll(ctx, creds, cfg.Force)
	if batchSummary != nil {
		printer.PrintBatchSummary(batchSummary)
	}
	if err != nil {
		return err
	}

	if batchSummary.Failed > 0 {
		return fmt.Errorf("%d artifact(s) failed to migrate; review them with the admin API", batchSummary.Failed)
	}
	return nil
}
