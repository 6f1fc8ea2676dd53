// Package app assembles the chatsync command line: configuration, logging,
// storage, the lock backend and the reconciler, shared by every subcommand.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/config"
	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/lock"
	"github.com/tbourn/go-chat-sync/internal/logging"
	"github.com/tbourn/go-chat-sync/internal/observability"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
	"github.com/tbourn/go-chat-sync/internal/repo"
	"github.com/tbourn/go-chat-sync/internal/validation"
)

// App holds the state shared across subcommands.
type App struct {
	version string
	cfg     config.Config
	out     io.Writer

	// loadConfig is swapped in tests.
	loadConfig func() (config.Config, error)
}

// New returns an App reporting version.
func New(version string) *App {
	return &App{
		version:    version,
		out:        os.Stdout,
		loadConfig: config.Load,
	}
}

// Execute runs the command line with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "chatsync",
		Short:   "Chat state synchronization service",
		Version: a.version,
		Long: `chatsync keeps chats, their permission lists, terms and sponsorship
records in step with an upstream chat platform. Every write converges
the stored state to the submitted state.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	root.SetOut(a.out)
	root.SetVersionTemplate("chatsync {{.Version}}\n")

	root.AddCommand(
		a.serveCommand(),
		a.migrateCommand(),
		a.applyCommand(),
	)
	return root
}

// setup loads .env (if any) and the environment configuration, then
// installs the global logger.
func (a *App) setup(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	return nil
}

// backend is the storage and reconciliation stack a command works against.
type backend struct {
	db    *gorm.DB
	core  *reconcile.Reconciler
	close func()
}

// openDB connects to the configured database and migrates the schema.
func (a *App) openDB() (*gorm.DB, error) {
	db, err := repo.Open(a.cfg.DB.Driver, a.cfg.DB.Path, a.cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", a.cfg.DB.Driver, err)
	}
	if err := observability.InstrumentDB(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("instrument database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// newLocker builds the configured per-identifier lock backend.
func (a *App) newLocker(ctx context.Context) (lock.Locker, func(), error) {
	switch a.cfg.Lock.Backend {
	case "redis":
		rl, err := lock.NewRedisLocker(lock.RedisConfig{
			Addr:     a.cfg.Lock.RedisAddr,
			Password: a.cfg.Lock.RedisPassword,
			Prefix:   a.cfg.Lock.Prefix,
			TTL:      a.cfg.Lock.TTL,
			Retry:    a.cfg.Lock.Retry,
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rl.Ping(pingCtx); err != nil {
			_ = rl.Close()
			return nil, nil, fmt.Errorf("redis lock backend: %w", err)
		}
		return rl, func() { _ = rl.Close() }, nil
	default:
		return lock.NewKeyedMutex(), func() {}, nil
	}
}

// bootstrap opens storage and the lock backend and assembles the reconciler.
func (a *App) bootstrap(ctx context.Context) (*backend, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	locker, closeLocker, err := a.newLocker(ctx)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	w := reconcile.NewWriter(validation.New())
	w.Derive(domain.KindSponsorshipHistory, reconcile.ReachedAtDerivation(time.Now))

	log.Info().
		Str("db_driver", a.cfg.DB.Driver).
		Str("lock_backend", a.cfg.Lock.Backend).
		Msg("storage ready")

	return &backend{
		db:   db,
		core: reconcile.New(repo.NewStore(db), w, locker),
		close: func() {
			closeLocker()
			closeDB(db)
		},
	}, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
