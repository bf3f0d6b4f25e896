package commands

import (
	"fmt"

	"github.com/cryptouniverse/discovery/internal/contracts"
	"github.com/cryptouniverse/discovery/internal/history"
	"github.com/cryptouniverse/discovery/internal/marketdata"
	"github.com/cryptouniverse/discovery/internal/scan"
	"github.com/cryptouniverse/discovery/internal/scheduler"
	"github.com/cryptouniverse/discovery/internal/scheduler/jobs"
	"github.com/cryptouniverse/discovery/internal/store"
	"github.com/cryptouniverse/discovery/internal/strategies"
	"github.com/cryptouniverse/discovery/internal/universe"
	"github.com/cryptouniverse/discovery/pkg/config"
	"github.com/cryptouniverse/discovery/pkg/database"
	"github.com/cryptouniverse/discovery/pkg/logger"
	"github.com/cryptouniverse/discovery/pkg/redis"
)

// signalFeedStrategies are evaluated by out-of-process engines that
// deposit their signals into redis; the scan just ingests them.
var signalFeedStrategies = []string{"options", "pairs_trading"}

// app holds the wired service graph shared by the CLI commands
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	redis *redis.Client
	db    *database.DB // nil when DATABASE_URL is not set

	store        *store.Store
	provider     *universe.Provider
	registry     *strategies.Registry
	orchestrator *scan.Orchestrator
	historyRepo  *history.Repository // nil without a database
	scheduler    *scheduler.Scheduler
}

// buildApp wires the full service graph from configuration. The
// database is optional: without it, scan archiving and the history
// endpoint are disabled but scanning works end to end.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	client, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	var db *database.DB
	var historyRepo *history.Repository
	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		historyRepo = history.NewRepository(db.Pool)
	} else {
		log.Warn("DATABASE_URL not set, scan archiving disabled")
	}

	reader := marketdata.NewReader(cfg, client, log)
	cache := redis.NewCache(client, "discovery")
	provider := universe.NewProvider(cfg, cache, reader, log)

	registry := strategies.NewRegistry()
	evaluators := []contracts.StrategyEvaluator{
		strategies.NewMomentumEvaluator(reader, log),
		strategies.NewMeanReversionEvaluator(reader, log),
		strategies.NewBreakoutEvaluator(reader, log),
		strategies.NewVolatilityEvaluator(reader, log),
		strategies.NewVolumeSurgeEvaluator(reader, log),
	}
	for _, id := range signalFeedStrategies {
		evaluators = append(evaluators, strategies.NewSignalFeedEvaluator(id, client, log))
	}
	for _, ev := range evaluators {
		if err := registry.Register(ev); err != nil {
			client.Close()
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("register strategy: %w", err)
		}
	}

	resultStore := store.New(cfg, store.NewMemoryStore(), store.NewDurableStore(client), log)
	fallback := strategies.NewMarketWatchGenerator(reader, log)
	entitlements := scan.NewEntitlements(cfg, client, log)
	limiter := redis.NewRateLimiter(client, "discovery")

	var scanHistory contracts.ScanHistory
	if historyRepo != nil {
		scanHistory = historyRepo
	}

	orchestrator := scan.NewOrchestrator(cfg, resultStore, provider, registry,
		fallback, entitlements, limiter, scanHistory, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewScanCleanupJob(resultStore, historyRepo, cfg, log)); err != nil {
		return nil, fmt.Errorf("schedule cleanup job: %w", err)
	}
	if err := sched.AddJob(jobs.NewUniverseRefreshJob(provider, log)); err != nil {
		return nil, fmt.Errorf("schedule universe job: %w", err)
	}

	return &app{
		cfg:          cfg,
		log:          log,
		redis:        client,
		db:           db,
		store:        resultStore,
		provider:     provider,
		registry:     registry,
		orchestrator: orchestrator,
		historyRepo:  historyRepo,
		scheduler:    sched,
	}, nil
}

// Close releases the app's external connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
