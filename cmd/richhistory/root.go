package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/cli"
	"mercator-hq/richhistory/pkg/config"
	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/datasource"
	"mercator-hq/richhistory/pkg/richhistory/service"
	"mercator-hq/richhistory/pkg/richhistory/settings"
	"mercator-hq/richhistory/pkg/richhistory/storage"
	"mercator-hq/richhistory/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile     string
	verbose     bool
	backendFlag string

	// appConfig is loaded before every command runs.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "richhistory",
	Short: "Query history store with search, stars and comments",
	Long: `richhistory keeps a bounded history of executed queries.

Entries are deduplicated per data source, can be starred and commented,
and are searched by text, data source, star state and time range. When the
history is full, the oldest non-starred entries make room for new ones.

Storage backends: memory, sqlite (default) and dynamodb.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := cli.SetupSignalHandler()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "richhistory.yaml", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "storage backend: memory, sqlite, dynamodb (overrides config)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cli.NewConfigError(".env", err.Error())
	}

	cfg, err := config.LoadOptional(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err.Error())
	}
	if backendFlag != "" {
		cfg.Storage.Backend = backendFlag
		if err := config.Validate(cfg); err != nil {
			return cli.NewConfigError("--backend", err.Error())
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	}
	if !verbose && cmd.Name() != "serve" {
		// One-shot commands only report problems.
		logCfg.Level = "warn"
	}
	if _, err := logging.Setup(logCfg); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	appConfig = cfg
	return nil
}

// newBackend opens the configured storage backend.
func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryBackend(&storage.MemoryConfig{MaxBytes: cfg.Storage.Memory.MaxBytes}), nil

	case "sqlite":
		return storage.NewSQLiteBackend(&storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			Driver:       cfg.Storage.SQLite.Driver,
			WALMode:      cfg.Storage.SQLite.WALEnabled(),
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
			MaxPageCount: cfg.Storage.SQLite.MaxPageCount,
		})

	case "dynamodb":
		ddbCfg := &storage.DynamoDBConfig{
			Table:           cfg.Storage.DynamoDB.Table,
			Region:          cfg.Storage.DynamoDB.Region,
			Endpoint:        cfg.Storage.DynamoDB.Endpoint,
			AccessKeyID:     cfg.Storage.DynamoDB.AccessKeyID,
			SecretAccessKey: cfg.Storage.DynamoDB.SecretAccessKey,
			MaxItemBytes:    cfg.Storage.DynamoDB.MaxItemBytes,
		}
		client, err := storage.NewDynamoDBClient(ctx, ddbCfg)
		if err != nil {
			return nil, err
		}
		return storage.NewDynamoDBBackend(client, ddbCfg)

	default:
		return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend))
	}
}

// newResolver builds the data source resolver. Without configured data
// sources every uid resolves to a generated name.
func newResolver(cfg *config.Config) (richhistory.Resolver, error) {
	if len(cfg.DataSources) == 0 {
		return datasource.NameConvention{}, nil
	}
	sources := make([]richhistory.DataSource, len(cfg.DataSources))
	for i, ds := range cfg.DataSources {
		sources[i] = richhistory.DataSource{UID: ds.UID, Name: ds.Name}
	}
	return datasource.NewStaticResolver(sources)
}

// openService wires backend, resolver and settings store into a Service.
// metrics may be nil.
func openService(ctx context.Context, metrics *service.Metrics) (*service.Service, error) {
	backend, err := newBackend(ctx, appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", appConfig.Storage.Backend, err)
	}

	resolver, err := newResolver(appConfig)
	if err != nil {
		backend.Close()
		return nil, cli.NewConfigError("datasources", err.Error())
	}

	svcCfg := &service.Config{
		MaxEntries:       appConfig.History.MaxEntries,
		OperationTimeout: appConfig.History.OperationTimeout,
		Metrics:          metrics,
	}
	if appConfig.Settings.File != "" {
		svcCfg.Settings = settings.NewFileStore(appConfig.Settings.File)
	}

	slog.Debug("opened history service",
		"backend", backend.Name(),
		"max_entries", appConfig.History.MaxEntries,
	)
	return service.New(backend, resolver, svcCfg), nil
}

// withService opens the service, runs fn and closes the service.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	svc, err := openService(ctx, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := fn(ctx, svc); err != nil {
		return cli.NewCommandError(cmd.Name(), err)
	}
	return nil
}
