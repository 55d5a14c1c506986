package commands

import (
	"fmt"
	"time"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/fundcache"
	"github.com/quantgrid/oppscan/internal/notify"
	"github.com/quantgrid/oppscan/internal/pipeline"
	"github.com/quantgrid/oppscan/internal/provider"
	"github.com/quantgrid/oppscan/internal/rules"
	"github.com/quantgrid/oppscan/internal/runstore"
	"github.com/quantgrid/oppscan/internal/scoring"
	"github.com/quantgrid/oppscan/pkg/config"
	"github.com/quantgrid/oppscan/pkg/database"
	"github.com/quantgrid/oppscan/pkg/httputil"
	"github.com/quantgrid/oppscan/pkg/logger"
	"github.com/quantgrid/oppscan/pkg/redis"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	rules     *rules.Config
	rulesHash string
	store     contracts.RunStore
	runner    *pipeline.Runner
}

// buildApp loads config and rules and wires the full pipeline. With
// inMemory set (or no DATABASE_URL outside production) the run history
// and fundamentals cache live in process memory.
func buildApp(inMemory bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rulesFile != "" {
		cfg.RulesPath = rulesFile
	}

	log := logger.New(cfg)

	rulesCfg, _, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	for _, warning := range rules.Warn(rulesCfg) {
		log.WithField("code", warning.Code).Warn(warning.Message)
	}

	hash, err := rules.Hash(rulesCfg)
	if err != nil {
		return nil, fmt.Errorf("hash rules: %w", err)
	}

	timeout := time.Duration(rulesCfg.DataProvider.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = cfg.HTTPTimeout
	}
	httpClient := httputil.NewWithTimeout(cfg, log, timeout)

	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	quoteCache := redis.NewCache(redisClient, "oppscan")

	prov, err := provider.New(rulesCfg.DataProvider, httpClient, quoteCache, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		rules:     rulesCfg,
		rulesHash: hash,
	}

	var cacheStore fundcache.Store
	if inMemory || cfg.Database.URL == "" {
		a.store = runstore.NewMemoryStore()
		cacheStore = fundcache.NewMemoryStore()
		log.Info("Using in-memory stores")
	} else {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		a.store = runstore.New(db.Pool)
		cacheStore = fundcache.NewPostgresStore(db.Pool)
		log.Info("Connected to database")
	}

	ttl := time.Duration(rulesCfg.Cache.TTLDays) * 24 * time.Hour
	cache := fundcache.New(cacheStore, ttl, log, fundcache.WithServeStale(rulesCfg.Cache.ServeStale))

	engine := scoring.NewEngine(rulesCfg, log)

	composer, err := notify.New(rulesCfg.Notifications, cfg.Twilio, httpClient, log)
	if err != nil {
		return nil, err
	}

	a.runner = pipeline.NewRunner(rulesCfg, prov, cache, engine, a.store, composer, hash, log)

	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
