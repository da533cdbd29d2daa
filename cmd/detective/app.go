package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jonathan/claim-detective/internal/analysis"
	"github.com/jonathan/claim-detective/internal/audit"
	"github.com/jonathan/claim-detective/internal/clarification"
	"github.com/jonathan/claim-detective/internal/config"
	"github.com/jonathan/claim-detective/internal/consensus"
	"github.com/jonathan/claim-detective/internal/credibility"
	"github.com/jonathan/claim-detective/internal/db"
	"github.com/jonathan/claim-detective/internal/evidence"
	"github.com/jonathan/claim-detective/internal/llm"
	"github.com/jonathan/claim-detective/internal/pipeline"
	"github.com/jonathan/claim-detective/internal/progress"
	"github.com/jonathan/claim-detective/internal/server"
	"github.com/jonathan/claim-detective/internal/server/ratelimit"
	"github.com/jonathan/claim-detective/internal/stages"
	"github.com/jonathan/claim-detective/internal/store"
)

// app holds the wired components of one process.
type app struct {
	cfg       config.Config
	repo      store.Repository
	audit     *audit.Log
	coord     *clarification.Coordinator
	events    *pipeline.Broadcaster
	orch      *pipeline.Orchestrator
	consensus *consensus.Aggregator
	projector *progress.Projector

	closers []func()
}

// loadConfig reads the optional config file, applies environment overrides,
// fills defaults and validates the result.
func loadConfig(path string) (config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// openStore returns the configured repository and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (store.Repository, func(), error) {
	if cfg.Store != config.StorePostgres {
		return store.NewMemory(), func() {}, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, database.Close, nil
}

// newEvidenceProvider builds the search backend. Remote providers are
// rate limited first and cached outside the limiter so cache hits cost nothing.
func newEvidenceProvider(ctx context.Context, cfg config.Config) (evidence.Provider, error) {
	switch cfg.SearchProvider {
	case config.SearchNone:
		return nil, nil
	case config.SearchGoogle:
		google, err := evidence.NewGoogle(ctx, cfg.GoogleAPIKey, cfg.GoogleCX)
		if err != nil {
			return nil, err
		}
		limited := evidence.NewRateLimited(google, cfg.SearchRatePerSecond, cfg.SearchBurst)
		return evidence.NewCached(limited, cfg.SearchCacheTTL()), nil
	default:
		if cfg.EvidenceFile == "" {
			return evidence.NewStatic(), nil
		}
		static, err := evidence.LoadStatic(cfg.EvidenceFile)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
}

// newAnalyzer builds the content analyzer and a function releasing it.
func newAnalyzer(ctx context.Context, cfg config.Config) (analysis.TextAnalyzer, func(), error) {
	heuristic := analysis.NewHeuristic()
	if cfg.Analyzer != config.AnalyzerGemini {
		return heuristic, func() {}, nil
	}

	client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, nil, err
	}
	return analysis.NewLLM(client, heuristic), func() { _ = client.Close() }, nil
}

// newApp wires every component from cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.repo = repo
	a.closers = append(a.closers, closeRepo)

	provider, err := newEvidenceProvider(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	analyzer, closeAnalyzer, err := newAnalyzer(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeAnalyzer)

	policy := clarification.DefaultPolicy()
	policy.Enabled = !cfg.DisableClarifications

	a.audit = audit.NewLog(repo)
	a.coord = clarification.NewCoordinator(repo, a.audit, policy)
	a.events = pipeline.NewBroadcaster()
	a.orch = pipeline.New(repo, a.coord, a.audit, pipeline.Options{
		Registry: stages.Default(stages.Deps{
			Analyzer:    analyzer,
			Credibility: credibility.NewScorer(cfg.SearchCacheTTL()),
			Claims:      repo,
			Policy:      policy,
		}),
		Evidence:       provider,
		Notifier:       a.events,
		MinClaimLength: cfg.MinClaimLength,
	})
	a.consensus = consensus.NewAggregator(repo, a.audit)
	a.projector = progress.NewProjector(repo, a.coord, a.audit)

	if cfg.Verbose {
		log.Printf("[config] store=%s search=%s analyzer=%s clarifications=%t",
			cfg.Store, cfg.SearchProvider, cfg.Analyzer, policy.Enabled)
	}
	return a, nil
}

// newServer builds the HTTP server. Actor tokens are enabled only when
// JWT_SECRET is set.
func (a *app) newServer() (*server.Server, error) {
	var tokens *server.TokenService
	jwtCfg, err := config.NewJWTConfig()
	switch {
	case err == nil:
		tokens = server.NewTokenService(jwtCfg)
	case errors.Is(err, config.ErrJWTSecretMissing):
		log.Printf("[auth] JWT_SECRET not set, actor tokens disabled")
	default:
		return nil, err
	}

	return server.New(server.Config{Port: a.cfg.Port, RateLimit: ratelimit.LoadConfig()}, server.Deps{
		Repo:         a.repo,
		Orchestrator: a.orch,
		Coordinator:  a.coord,
		Aggregator:   a.consensus,
		Projector:    a.projector,
		Audit:        a.audit,
		Events:       a.events,
		Tokens:       tokens,
	}), nil
}

// Close waits for in-flight runs and releases resources in reverse order.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
