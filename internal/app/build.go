package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/intake/internal/catalog"
	"github.com/ent0n29/intake/internal/config"
	"github.com/ent0n29/intake/internal/engine"
	"github.com/ent0n29/intake/internal/httpapi"
	"github.com/ent0n29/intake/internal/observability"
	"github.com/ent0n29/intake/internal/records"
	"github.com/ent0n29/intake/internal/schema"
	"github.com/ent0n29/intake/internal/session"
)

const janitorInterval = 30 * time.Second

type BuildResult struct {
	Config  config.Config
	API     *httpapi.Server
	Engine  *engine.Engine
	Records records.Store
	Catalog *catalog.Catalog
	Metrics *observability.Metrics

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// LoadSchema returns the questionnaire from QUESTIONNAIRE_SCHEMA_FILE, or the
// built-in applicant form.
func LoadSchema(cfg config.Config) (*schema.Schema, error) {
	if cfg.SchemaFile == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(cfg.SchemaFile)
}

// Build wires the service. runCtx bounds background work such as the idle
// session janitor.
func Build(ctx, runCtx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	sch, err := LoadSchema(cfg)
	if err != nil {
		return nil, fmt.Errorf("questionnaire schema: %w", err)
	}

	store, err := records.NewStore(ctx, cfg.DatabaseURL, cfg.StoreConnectAttempts)
	if err != nil {
		return nil, fmt.Errorf("record store init failed: %w", err)
	}

	var closers []func() error
	closers = append(closers, store.Close)
	fail := func(err error) (*BuildResult, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	var (
		cat    *catalog.Catalog
		apiCat httpapi.Catalog
	)
	if cfg.CatalogDBPath != "" {
		cat, err = catalog.Open(cfg.CatalogDBPath)
		if err != nil {
			// The catalog is informational; run without it.
			logger.Warn().Err(err).Str("path", cfg.CatalogDBPath).Msg("catalog unavailable")
		} else {
			apiCat = cat
			closers = append(closers, cat.Close)
		}
	}

	var (
		sessions session.Store
		memStore *session.MemoryStore
	)
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionIdleTTL)
		if err != nil {
			return fail(fmt.Errorf("redis session store init failed: %w", err))
		}
		closers = append(closers, rs.Close)
		sessions = rs
	default:
		memStore = session.NewMemoryStore(cfg.SessionIdleTTL)
		sessions = memStore
	}

	eng := engine.New(sch, sessions, store, logger, metrics)
	if memStore != nil {
		memStore.SetExpireHook(eng.Expired)
		memStore.StartJanitor(runCtx, janitorInterval)
	} else {
		if err := eng.SyncActiveSessions(ctx); err != nil {
			logger.Warn().Err(err).Msg("initial active session count")
		}
		eng.StartGaugeSync(runCtx, janitorInterval)
	}

	api := httpapi.New(cfg, eng, store, apiCat, metrics, logger)

	cleanup := func() error {
		var errs []string
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	logger.Info().
		Str("session_backend", cfg.SessionBackend).
		Bool("postgres", cfg.DatabaseURL != "").
		Int("fields", sch.Len()).
		Dur("session_idle_ttl", cfg.SessionIdleTTL).
		Msg("service wired")

	return &BuildResult{
		Config:  cfg,
		API:     api,
		Engine:  eng,
		Records: store,
		Catalog: cat,
		Metrics: metrics,
		Cleanup: cleanup,
	}, nil
}
