// Package control wires the tracker's components together and manages
// their lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/propulsorfi/txtracker/internal/core/config"
	"github.com/propulsorfi/txtracker/internal/core/domain"
	"github.com/propulsorfi/txtracker/internal/core/session"
	"github.com/propulsorfi/txtracker/internal/core/worker"
	"github.com/propulsorfi/txtracker/internal/infra/chain"
	"github.com/propulsorfi/txtracker/internal/infra/chain/evm"
	redisclient "github.com/propulsorfi/txtracker/internal/infra/redis"
	"github.com/propulsorfi/txtracker/internal/infra/storage"
	"github.com/propulsorfi/txtracker/internal/infra/storage/memory"
	"github.com/propulsorfi/txtracker/internal/infra/storage/postgres"
	"github.com/propulsorfi/txtracker/internal/tracking/api"
	"github.com/propulsorfi/txtracker/internal/tracking/blocks"
	"github.com/propulsorfi/txtracker/internal/tracking/notify"
	"github.com/propulsorfi/txtracker/internal/tracking/reconcile"
	"github.com/propulsorfi/txtracker/internal/tracking/store"
	"github.com/propulsorfi/txtracker/internal/tracking/submit"
)

// Tracker is the main application struct managing component lifecycle.
type Tracker struct {
	cfg         *config.AppConfig
	session     *session.Session
	store       *store.Store
	blocks      *blocks.Tracker
	reconciler  *reconcile.Reconciler
	apiServer   *api.Server
	pruner      *worker.Pruner
	pollers     []*evm.Client
	db          *postgres.DB
	redisClient *redisclient.Client
	networks    []domain.ChainID
	log         *slog.Logger
}

// NewTracker creates a Tracker with all dependencies initialized.
func NewTracker(cfg *config.AppConfig) (*Tracker, error) {
	if len(cfg.Networks) == 0 {
		return nil, fmt.Errorf("no networks configured")
	}

	// 1. Persistence: Postgres when configured, in-process otherwise.
	var repo storage.TransactionRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		repo = postgres.NewTxRepo(db)
		slog.Info("Using PostgreSQL persistence")
	} else {
		repo = memory.NewTxRepo()
		slog.Info("Using in-memory persistence, records will not survive restarts")
	}

	// 2. Notification sink: Redis channel when configured, log otherwise.
	var notifier notify.Notifier
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		notifier = notify.NewRedisNotifier(redisClient, cfg.Redis.Channel)
		slog.Info("Publishing confirmations to Redis", "channel", cfg.Redis.Channel)
	} else {
		notifier = notify.NewLogNotifier()
		slog.Info("Publishing confirmations to the log")
	}

	// 3. Chain clients, one per configured network.
	clients := make(map[domain.ChainID]chain.Client, len(cfg.Networks))
	pollers := make([]*evm.Client, 0, len(cfg.Networks))
	networks := make([]domain.ChainID, 0, len(cfg.Networks))
	var defaultNetwork domain.ChainID
	for _, networkCfg := range cfg.Networks {
		client := evm.NewClient(networkCfg.ChainID, networkCfg.RPCURL, networkCfg.PollInterval, 10*time.Second)
		clients[networkCfg.ChainID] = client
		pollers = append(pollers, client)
		networks = append(networks, networkCfg.ChainID)
		if networkCfg.Default || defaultNetwork == 0 {
			defaultNetwork = networkCfg.ChainID
		}
	}

	// 4. Core components.
	sess := session.New()
	txStore := store.New(repo)
	if err := txStore.Hydrate(context.Background(), networks); err != nil {
		return nil, err
	}

	tracker := blocks.New(sess, clients, cfg.Tracking.DebounceWindow)
	policy := reconcile.Policy{
		SlowPendingAge:    cfg.Reconciler.SlowPendingAge,
		SlowPendingBlocks: cfg.Reconciler.SlowPendingBlocks,
		LongPendingAge:    cfg.Reconciler.LongPendingAge,
		LongPendingBlocks: cfg.Reconciler.LongPendingBlocks,
	}
	reconciler := reconcile.New(txStore, clients, sess, tracker, notifier, policy)
	adder := submit.NewAdder(txStore, sess)

	// 5. HTTP API with health checks for the backing services.
	checks := make(map[string]api.HealthChecker)
	if db != nil {
		checks["postgres"] = db.Health
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	apiServer := api.New(cfg.Server.Port, sess, txStore, adder, tracker, networks, checks)

	// 6. Background retention pruning, disabled unless configured.
	pruner := worker.NewPruner(cfg.Retention.Period, repo, networks)

	// The session starts bound to the default network so reconciliation of
	// persisted pending transactions resumes without waiting for a client.
	sess.SetNetwork(defaultNetwork)

	return &Tracker{
		cfg:         cfg,
		session:     sess,
		store:       txStore,
		blocks:      tracker,
		reconciler:  reconciler,
		apiServer:   apiServer,
		pruner:      pruner,
		pollers:     pollers,
		db:          db,
		redisClient: redisClient,
		networks:    networks,
		log:         slog.Default(),
	}, nil
}

// Session returns the session for external signal wiring.
func (t *Tracker) Session() *session.Session {
	return t.session
}

// Start starts the tracker and all its components.
func (t *Tracker) Start(ctx context.Context) error {
	// Head pollers
	for _, poller := range t.pollers {
		t.log.Info("Starting head poller", "chain", poller.ChainID().Name())
		go poller.Run(ctx)
	}

	// Block tracker
	go func() {
		if err := t.blocks.Run(ctx); err != nil {
			t.log.Error("Block tracker failed", "error", err)
		}
	}()

	// Reconciler
	go func() {
		if err := t.reconciler.Run(ctx); err != nil {
			t.log.Error("Reconciler failed", "error", err)
		}
	}()

	// Retention pruner
	go t.pruner.Run(ctx)

	// API server
	go func() {
		if err := t.apiServer.Start(); err != nil {
			t.log.Error("API server stopped", "error", err)
		}
	}()

	return nil
}

// Stop stops the tracker.
func (t *Tracker) Stop(ctx context.Context) error {
	t.log.Info("Stopping tracker...")

	if t.redisClient != nil {
		if err := t.redisClient.Close(); err != nil {
			t.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil {
			t.log.Warn("Failed to close database", "error", err)
		}
	}

	return t.apiServer.Stop(ctx)
}
