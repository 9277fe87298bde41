// Package app wires configuration into running components and owns the
// process lifecycle for each run mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/alanyoungcy/poolpilot/internal/allowance"
	s3blob "github.com/alanyoungcy/poolpilot/internal/blob/s3"
	redisc "github.com/alanyoungcy/poolpilot/internal/cache/redis"
	"github.com/alanyoungcy/poolpilot/internal/chain"
	"github.com/alanyoungcy/poolpilot/internal/config"
	"github.com/alanyoungcy/poolpilot/internal/crypto"
	"github.com/alanyoungcy/poolpilot/internal/domain"
	"github.com/alanyoungcy/poolpilot/internal/notify"
	"github.com/alanyoungcy/poolpilot/internal/pipeline"
	"github.com/alanyoungcy/poolpilot/internal/platform/advisor"
	"github.com/alanyoungcy/poolpilot/internal/platform/oneinch"
	"github.com/alanyoungcy/poolpilot/internal/position"
	"github.com/alanyoungcy/poolpilot/internal/server"
	"github.com/alanyoungcy/poolpilot/internal/server/ws"
	"github.com/alanyoungcy/poolpilot/internal/service"
	"github.com/alanyoungcy/poolpilot/internal/store/postgres"
	"github.com/alanyoungcy/poolpilot/internal/swap"
)

// App holds the wired components for one process. Which fields are populated
// depends on the run mode: monitor mode skips the signing stack entirely.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	version string

	invest *service.InvestService
	bus    *redisc.ProgressBus
	hub    *ws.Hub
	server *server.Server

	closers []func()
}

// New wires an App from validated configuration. Construction connects to
// Postgres and Redis eagerly so misconfiguration fails at startup, not on the
// first request.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger, version: version}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// Persistence.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("app: run migrations: %w", err)
		}
	}
	store := postgres.NewOperationStore(pg)

	// Cache, locks, and the progress bus.
	rdb, err := redisc.New(ctx, redisc.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.bus = redisc.NewProgressBus(rdb, logger)

	a.hub = ws.NewHub(logger)

	if cfg.Mode != "monitor" {
		if err := a.wireInvestStack(ctx, cfg, rdb, store); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Enabled {
		svcs := server.Services{Operations: a.readOnlyService(store)}
		if a.invest != nil {
			svcs.Invest = a.invest
			svcs.Operations = a.invest
		}
		a.server = server.New(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			Version:     version,
		}, svcs, a.hub, logger)
	}

	ok = true
	return a, nil
}

// wireInvestStack builds everything that can sign and spend: the chain
// client, the wallet, the external API clients, and the pipeline.
func (a *App) wireInvestStack(ctx context.Context, cfg *config.Config, rdb *redisc.Client, store domain.OperationStore) error {
	logger := a.logger

	chainClient, err := chain.NewClient(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("app: connect rpc: %w", err)
	}
	a.closers = append(a.closers, chainClient.Close)

	privateKey, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fmt.Errorf("app: load wallet key: %w", err)
	}
	wallet, err := crypto.NewWallet(privateKey, big.NewInt(cfg.Chain.ChainID), chainClient.Eth())
	if err != nil {
		return fmt.Errorf("app: create wallet: %w", err)
	}
	wallet.GasLimitMultiplier = cfg.Chain.GasLimitMultiplier
	logger.Info("wallet loaded", slog.String("address", wallet.Address()))

	oneinchClient := oneinch.NewClient(
		cfg.OneInch.BaseURL,
		cfg.OneInch.ApiKey,
		cfg.Chain.ChainID,
		cfg.OneInch.Slippage,
		&http.Client{Timeout: cfg.OneInch.Timeout.Duration},
	)
	advisorClient := advisor.NewClient(
		cfg.Advisor.BaseURL,
		cfg.Advisor.ApiKey,
		&http.Client{Timeout: cfg.Advisor.Timeout.Duration},
	)

	pricer := service.NewCachedPricer(
		oneinchClient,
		redisc.NewPriceCache(rdb),
		cfg.Invest.PriceCacheTTL.Duration,
		logger,
	)

	stable := domain.Token{
		Address:  cfg.Chain.StableAddress,
		Symbol:   "USDC",
		Decimals: cfg.Chain.StableDecimals,
	}
	confirmationWait := cfg.Chain.ConfirmationWait.Duration

	pipe := pipeline.New(pipeline.Deps{
		Advisor:        advisorClient,
		Pricer:         pricer,
		Router:         oneinchClient,
		Allowance:      allowance.NewManager(chainClient, wallet, confirmationWait, logger),
		Swapper:        swap.NewExecutor(oneinchClient, wallet, stable.Address, confirmationWait, logger),
		Builder:        position.NewBuilder(chainClient, cfg.Chain.FactoryAddress, cfg.Invest.TickRangeSpacings, cfg.Invest.MintSlippageBps, logger),
		Minter:         position.NewMinter(wallet, cfg.Chain.PositionManager, cfg.Invest.MintDeadline.Duration, confirmationWait, logger),
		Wallet:         wallet,
		Stable:         stable,
		ManagerAddress: cfg.Chain.PositionManager,
	}, logger)

	var archiver service.Archiver
	if cfg.Invest.ArchiveReceipts {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fmt.Errorf("app: connect object storage: %w", err)
		}
		a.closers = append(a.closers, func() { _ = s3c.Close() })
		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3c), logger)
	}

	a.invest = service.NewInvestService(service.InvestServiceConfig{
		Runner:        pipe,
		Store:         store,
		Locks:         redisc.NewLockManager(rdb),
		Progress:      a.bus,
		Archiver:      archiver,
		Notifier:      a.buildNotifier(cfg),
		WalletAddress: wallet.Address(),
		LockTTL:       cfg.Invest.WalletLockTTL.Duration,
	}, logger)
	return nil
}

// buildNotifier assembles the configured notification channels. Returns nil
// when no channel is configured so callers can skip notification entirely.
func (a *App) buildNotifier(cfg *config.Config) service.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, a.logger)
}

// readOnlyService adapts the operation store for monitor mode, where no
// InvestService exists.
func (a *App) readOnlyService(store domain.OperationStore) *operationReader {
	return &operationReader{store: store}
}

// operationReader serves operation history straight from the store.
type operationReader struct {
	store domain.OperationStore
}

func (r *operationReader) GetOperation(ctx context.Context, id string) (*domain.Operation, error) {
	return r.store.Get(ctx, id)
}

func (r *operationReader) ListOperations(ctx context.Context, f domain.OperationFilter) ([]*domain.Operation, error) {
	return r.store.List(ctx, f)
}

// Close releases all held resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// oneShotRequest builds the invest-mode request from configuration.
func (a *App) oneShotRequest() domain.InvestmentRequest {
	return domain.InvestmentRequest{
		UserID:   a.cfg.Invest.UserID,
		TotalUSD: a.cfg.Invest.TotalUSD,
		RiskyBps: a.cfg.Invest.DefaultRiskyBps,
	}
}

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 15 * time.Second
