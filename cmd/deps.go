package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/querywise/internal/api"
	"github.com/abhisek/querywise/internal/cognitive"
	"github.com/abhisek/querywise/internal/config"
	"github.com/abhisek/querywise/internal/executor"
	"github.com/abhisek/querywise/internal/explain"
	"github.com/abhisek/querywise/internal/llm"
	"github.com/abhisek/querywise/internal/logging"
	"github.com/abhisek/querywise/internal/pipeline"
	"github.com/abhisek/querywise/internal/profile"
	"github.com/abhisek/querywise/internal/sqlgen"
	"github.com/abhisek/querywise/internal/store"
)

// env is the per-invocation runtime: config, logger, the application
// database and the profile store. Close releases everything it opened.
type env struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *store.Store
	profiles *profile.Store

	closers []func() error
}

// openEnv loads configuration and opens storage. It does not touch the
// language model or the target database.
func openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	e := &env{cfg: cfg, logger: logger, store: st}
	e.closers = append(e.closers, st.Close)

	backend, err := e.profileBackend(cmd.Context(), dbPath)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.profiles = profile.NewStore(backend,
		profile.WithLogger(logger.Named("profiles")),
		profile.WithFlushEvery(cfg.Profiles.FlushEvery),
	)
	logger.Debug("environment ready",
		zap.String("db", dbPath),
		zap.String("profile_backend", cfg.Profiles.Backend))
	return e, nil
}

func (e *env) profileBackend(ctx context.Context, dbPath string) (profile.Backend, error) {
	switch e.cfg.Profiles.Backend {
	case config.BackendSQLite:
		return e.store.Profiles(), nil
	case config.BackendBadger:
		dir := e.cfg.Profiles.BadgerPath
		if dir == "" {
			dir = filepath.Join(filepath.Dir(dbPath), "profiles")
		}
		b, err := store.OpenBadgerProfiles(dir)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, b.Close)
		return b, nil
	case config.BackendRedis:
		r, err := store.OpenRedisProfiles(ctx, e.cfg.Profiles.Redis)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, r.Close)
		return r, nil
	case config.BackendMemory:
		return profile.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown profile backend: %q", e.cfg.Profiles.Backend)
	}
}

// Close flushes pending profile writes and closes everything in reverse
// order of opening.
func (e *env) Close() error {
	var errs []error
	if e.profiles != nil {
		if err := e.profiles.Flush(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}

// provider builds the configured language model collaborator, falling back
// to whichever well-known API key is present in the environment.
func (e *env) provider(ctx context.Context) (llm.Provider, error) {
	cfg := e.cfg.LLM
	if err := cfg.Validate(); err != nil {
		discovered, ok := llm.DiscoverConfig()
		if !ok {
			return nil, fmt.Errorf("LLM provider not configured: %w", err)
		}
		discovered.Retry = cfg.Retry
		discovered.RateLimit = cfg.RateLimit
		discovered.Timeout = cfg.Timeout
		cfg = discovered
	}
	return llm.NewProvider(ctx, cfg, e.store.Events(), e.logger.Named("llm"))
}

// services is everything a question needs.
type services struct {
	pipeline *pipeline.Pipeline
	sqlgen   *sqlgen.Generator
	db       *executor.DB
}

// services connects to the language model and the target database and
// assembles the pipeline. dsn overrides the configured DSN when set.
func (e *env) services(ctx context.Context, dsn string) (*services, error) {
	if dsn == "" {
		dsn = e.cfg.Executor.DSN
	}
	if dsn == "" {
		return nil, errors.New("no database to query: set executor.dsn, QUERYWISE_EXECUTOR_DSN or --dsn")
	}

	provider, err := e.provider(ctx)
	if err != nil {
		return nil, err
	}

	db, err := executor.Open(ctx, e.cfg.Executor.Driver, dsn)
	if err != nil {
		return nil, err
	}
	db = db.WithMaxRows(e.cfg.Executor.MaxRows)
	e.closers = append(e.closers, db.Close)

	engineOpts := []cognitive.Option{
		cognitive.WithLogger(e.logger.Named("cognitive")),
		cognitive.WithLoadFactor(e.cfg.Assessment.LoadFactor),
		cognitive.WithDelegationTimeout(e.cfg.Assessment.DelegationTimeout),
	}
	if e.cfg.Assessment.Delegate {
		engineOpts = append(engineOpts, cognitive.WithProvider(provider))
	}

	gen := sqlgen.NewGenerator(provider, db, e.logger.Named("sqlgen"))
	deps := pipeline.Deps{
		Generator: gen,
		Executor:  db,
		Assessor:  cognitive.NewEngine(engineOpts...),
		Profiles:  e.profiles,
		Events:    e.store.Events(),
		Logger:    e.logger.Named("pipeline"),
	}
	if e.cfg.Assessment.Explain {
		deps.Explainer = explain.NewBuilder(provider, e.logger.Named("explain"))
	}

	p, err := pipeline.New(deps)
	if err != nil {
		return nil, err
	}
	return &services{pipeline: p, sqlgen: gen, db: db}, nil
}

// apiDeps exposes the runtime to the HTTP and MCP transports.
func (e *env) apiDeps(s *services) api.Deps {
	return api.Deps{
		Pipeline: s.pipeline,
		Profiles: e.profiles,
		History:  e.store.Events(),
		Logger:   e.logger.Named("api"),
	}
}
