package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cache"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/cascade"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/catalog"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/chain"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/config"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/corpus"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/encoder"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/escalation"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/index"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/logging"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/safety"
	"github.com/blewistrumpet-lang/phoenix-Chimera-sub002/internal/store"
)

// #region app
// app holds the wired components for one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	cat      *catalog.Catalog
	store    *store.Store
	ledger   *logging.Ledger
	cache    *cache.Cache
	sqlTier  *cache.SQLiteTier // nil unless the sqlite backend is selected
	index    *index.Index
	resolver *cascade.Resolver
	registry *prometheus.Registry
	closers  []func() error
}

// loadCatalog returns the embedded catalog unless a file is configured.
func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.Catalog.Path)
}

// openApp wires store, cache tier, index and cascade from cfg. Callers must
// Close the result.
func openApp(cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	logger = logging.OrNop(logger)
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.cat, err = loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	a.store, err = store.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)
	a.ledger = logging.NewLedger(a.store.DB())

	tier, err := a.openTier()
	if err != nil {
		return nil, err
	}
	opts := []cache.Option{cache.WithLogger(logger), cache.WithRegisterer(a.registry)}
	if tier != nil {
		opts = append(opts, cache.WithTier(tier))
	}
	a.cache = cache.New(cfg.Cache.Cache(), opts...)

	enc := encoder.New(a.cat, cfg.Encoder)
	a.index, err = a.buildIndex(enc)
	if err != nil {
		return nil, err
	}

	esc, closeEsc, err := escalation.New(cfg.Escalation, a.cat)
	if err != nil {
		return nil, fmt.Errorf("build escalator: %w", err)
	}
	a.closers = append(a.closers, closeEsc)

	a.resolver, err = cascade.New(cfg.Cascade, cascade.Deps{
		Catalog:    a.cat,
		Index:      a.index,
		Encoder:    enc,
		Cache:      a.cache,
		Escalator:  esc,
		Optimizer:  chain.NewOptimizer(a.cat),
		Validator:  safety.NewValidator(a.cat, cfg.Safety),
		Learner:    a.store,
		Recorder:   a.ledger,
		Logger:     logger,
		Registerer: a.registry,
	})
	if err != nil {
		return nil, fmt.Errorf("build cascade: %w", err)
	}
	logger.Debug("oracle ready",
		zap.Int("units", a.cat.Len()),
		zap.Int("index_size", a.index.Len()),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("escalation", cfg.Escalation.Backend),
	)
	return a, nil
}

func (a *app) openTier() (cache.Tier, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheSQLite:
		t, err := cache.NewSQLiteTier(a.store.DB())
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache tier: %w", err)
		}
		a.sqlTier = t
		return t, nil
	case config.CacheBadger:
		db, err := cache.OpenBadger(a.cfg.Cache.Badger, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open badger cache tier: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		return cache.NewBadgerTier(db, a.cfg.Cache.TTL), nil
	default:
		return nil, nil
	}
}

// buildIndex loads the seed corpus and, when enabled, learned chains.
func (a *app) buildIndex(enc *encoder.Encoder) (*index.Index, error) {
	var (
		presets []corpus.Preset
		err     error
	)
	if a.cfg.Corpus.Path == "" {
		presets, err = corpus.Default(a.cat, a.cfg.Cascade.MaxSlots)
	} else {
		presets, err = corpus.LoadFile(a.cfg.Corpus.Path, a.cat, a.cfg.Cascade.MaxSlots)
	}
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	idx := index.New(enc.Dim())
	if err := idx.AddAll(corpus.Items(presets, enc)); err != nil {
		return nil, fmt.Errorf("index corpus: %w", err)
	}
	if !a.cfg.Corpus.LoadLearned {
		return idx, nil
	}
	learned, skipped, err := a.store.LoadLearned(enc.Dim())
	if err != nil {
		return nil, fmt.Errorf("load learned chains: %w", err)
	}
	if skipped > 0 {
		a.logger.Warn("skipped unreadable learned chains", zap.Int("skipped", skipped))
	}
	if err := idx.AddAll(learned); err != nil {
		return nil, fmt.Errorf("index learned chains: %w", err)
	}
	return idx, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// #endregion app
