// Package server assembles the account service: storage backend, account
// workflow and the gRPC endpoint, and runs it until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	gs "github.com/dmitrijs2005/accounts/internal/server/grpc"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	accounts *services.AccountService
	server   *gs.GRPCServer
}

// openStorage returns the repository manager for cfg.Storage and, for
// postgres, the migrated database handle.
func openStorage(ctx context.Context, cfg *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return nil, repomanager.NewMemoryRepositoryManager(), nil
	case config.StoragePostgres:
		db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db open error: %w", err)
		}
		m := repomanager.NewPostgresRepositoryManager(cfg.StoreTimeout)
		if err := m.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migration error: %w", err)
		}
		return db, m, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	codec, err := cryptox.NewCodec(cfg.PasswordScheme, []byte(cfg.PasswordSecret))
	if err != nil {
		return nil, fmt.Errorf("password codec: %w", err)
	}
	issuer := auth.NewIssuer([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)

	db, m, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	accounts := services.NewAccountService(db, m, codec, issuer)
	systemLog := services.NewSystemLogService(db, m, logger)

	server, err := gs.NewGRPCServer(cfg.EndpointAddrGRPC, logger, accounts, systemLog, issuer)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("grpc server: %w", err)
	}

	return &App{config: cfg, logger: logger, db: db, accounts: accounts, server: server}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) bootstrapAdmins(ctx context.Context) {
	if len(app.config.AdminEmails) == 0 {
		return
	}
	n, err := app.accounts.BootstrapAdmins(ctx, app.config.AdminEmails)
	if err != nil {
		app.logger.Error(ctx, "admin bootstrap failed", "error", err.Error())
		return
	}
	app.logger.Info(ctx, "admin bootstrap done", "granted", n)
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is canceled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)
	app.bootstrapAdmins(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err.Error())
		}
	}
	app.logger.Info(context.Background(), "App stopped")
}
