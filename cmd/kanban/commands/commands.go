package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/taskmaster/kanban/internal/adapters/repository"
	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/infrastructure/cache"
	"github.com/taskmaster/kanban/internal/infrastructure/config"
	"github.com/taskmaster/kanban/internal/infrastructure/database"
	"github.com/taskmaster/kanban/internal/infrastructure/logger"
	"github.com/taskmaster/kanban/internal/infrastructure/server"
	"github.com/taskmaster/kanban/internal/ports"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// NewRootCommand assembles the kanban CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kanban",
		Short:         "Kanban task board",
		Long:          "A kanban task board with status columns, filtering, archival of old tasks and file attachments.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewMigrateCommand())
	rootCmd.AddCommand(NewTaskCommand())
	rootCmd.AddCommand(NewBoardCommand())
	rootCmd.AddCommand(NewArchiveCommand())
	rootCmd.AddCommand(NewAuthorsCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// runtime holds everything a command needs, built from configuration.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	store   ports.BlobStore
	db      *database.DB
	redis   *redis.Client
	repo    ports.TaskRepository
	tasks   *services.TaskService
	archive *services.ArchiveService
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	services.SetLocation(loc)

	rt := &runtime{cfg: cfg, log: appLogger}
	if err := rt.openStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	rt.repo = repository.NewTaskRepository(rt.store, cfg.Storage.ActiveKey, cfg.Storage.ArchiveKey, appLogger)
	rt.tasks, err = services.NewTaskService(ctx, rt.repo, services.RealClock{}, appLogger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.archive = services.NewArchiveService(rt.tasks, rt.repo, services.RealClock{}, cfg.Archive.MonthsBack, appLogger)

	return rt, nil
}

func (rt *runtime) openStore(ctx context.Context) error {
	switch rt.cfg.Storage.Driver {
	case config.StorageMemory:
		rt.store = repository.NewMemoryStore()

	case config.StorageFile:
		store, err := repository.NewFileStore(rt.cfg.Storage.Dir)
		if err != nil {
			return err
		}
		rt.store = store

	case config.StorageRedis:
		client, err := cache.Connect(ctx, rt.cfg.Redis, rt.log)
		if err != nil {
			return err
		}
		rt.redis = client
		rt.store = repository.NewRedisStore(client, rt.cfg.Redis.KeyPrefix)

	case config.StoragePostgres:
		db, err := database.New(rt.cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.db = db
		rt.store = repository.NewPostgresStore(db.DB, rt.cfg.Storage.Table)

	default:
		return fmt.Errorf("unknown storage driver %q", rt.cfg.Storage.Driver)
	}

	rt.log.Debugw("Storage opened", "driver", rt.cfg.Storage.Driver)
	return nil
}

// Close releases the store and its connections. The Redis client is owned
// by the store.
func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warnw("Failed to close store", "error", err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.log.Warnw("Failed to close database", "error", err)
		}
	}
	_ = rt.log.Close()
}

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the board API server",
		Long:  "Start the HTTP/JSON board API with health checks and Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	scheduler := services.NewArchiveScheduler(rt.archive, rt.cfg.Archive.Interval, rt.cfg.Archive.RunOnStart, rt.log)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv, err := server.New(rt.cfg, server.Dependencies{
		Tasks:   rt.tasks,
		Archive: rt.archive,
		DB:      rt.db,
		Redis:   rt.redis,
	}, rt.log)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	rt.log.Infow("Starting kanban API server",
		"port", rt.cfg.Server.Port,
		"environment", rt.cfg.App.Environment,
		"storage", rt.cfg.Storage.Driver,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the Postgres blob table used by the postgres storage driver (up, down, version)",
	}

	for _, direction := range []string{"up", "down"} {
		direction := direction
		migrateCmd.AddCommand(&cobra.Command{
			Use:   direction,
			Short: fmt.Sprintf("Run all %s migrations", direction),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd, direction)
			},
		})
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			status, err := db.MigrationVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d\n", status.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Dirty: %t\n", status.Dirty)
			return nil
		},
	})

	return migrateCmd
}

func openDatabase() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func runMigration(cmd *cobra.Command, direction string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := db.Migrate(direction)
	if err != nil {
		return err
	}

	if !changed {
		fmt.Fprintln(cmd.OutOrStdout(), "No migrations to run")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Migration %s completed successfully\n", direction)
	}
	return nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print kanban version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kanban %s\n", Version)
		},
	}
}

// withRuntime runs fn against a freshly opened runtime.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	return fn(ctx, rt)
}

var errUsage = errors.New("invalid arguments")
