package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tokenledger "stornet/contexts/finance-core/token-ledger"
	ledgerpostgres "stornet/contexts/finance-core/token-ledger/adapters/postgres"
	ledgererrors "stornet/contexts/finance-core/token-ledger/domain/errors"
	rentalengine "stornet/contexts/storage-market/rental-engine"
	ledgeradapter "stornet/contexts/storage-market/rental-engine/adapters/ledger"
	marketpostgres "stornet/contexts/storage-market/rental-engine/adapters/postgres"
	workerapp "stornet/contexts/storage-market/rental-engine/application/workers"
	"stornet/internal/platform/config"
	"stornet/internal/platform/db"
	"stornet/internal/platform/httpserver"
	"stornet/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	outboxRelay  workerapp.OutboxRelay
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)
	ledgerModule := tokenledger.NewModule(tokenledger.Dependencies{
		Repository: ledgerRepo,
		Logger:     logger,
	})

	// First boot mints the genesis supply to the deployer and hands ledger
	// ownership to the engine so only the engine may mint grants. Subsequent
	// boots find the ledger initialized and leave it untouched.
	ctx := context.Background()
	err = ledgerModule.Service.InitializeGenesis(ctx, cfg.DeployerAddress, cfg.GenesisSupply)
	switch {
	case err == nil:
		if err := ledgerModule.Service.TransferOwnership(ctx, cfg.DeployerAddress, cfg.EngineAddress); err != nil {
			return nil, err
		}
	case errors.Is(err, ledgererrors.ErrAlreadyInitialized):
	default:
		return nil, err
	}

	marketRepo := marketpostgres.NewRepository(pg.DB, logger)
	marketModule := rentalengine.NewModule(rentalengine.Dependencies{
		Listings: marketRepo,
		Requests: marketRepo,
		Grants:   marketRepo,
		Ledger: ledgeradapter.Client{
			Service:       ledgerModule.Service,
			EngineAddress: cfg.EngineAddress,
		},
		Transactor:  pg,
		Clock:       marketpostgres.SystemClock{},
		IDGenerator: marketpostgres.UUIDGenerator{},
		GrantAmount: cfg.GrantAmount,
		Logger:      logger,
	})

	server := httpserver.New(ledgerModule, marketModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	repo := marketpostgres.NewRepository(pg.DB, logger)
	return &WorkerApp{
		postgres: pg,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    repo,
			Publisher: kafka,
			Clock:     marketpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
