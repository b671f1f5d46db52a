// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/jobradar/internal/api"
	"github.com/hireloop/jobradar/internal/backend/adzuna"
	"github.com/hireloop/jobradar/internal/backend/arbeitnow"
	"github.com/hireloop/jobradar/internal/backend/jsearch"
	"github.com/hireloop/jobradar/internal/backend/linkedin"
	"github.com/hireloop/jobradar/internal/backend/web3career"
	cachemem "github.com/hireloop/jobradar/internal/cache/memory"
	cacheredis "github.com/hireloop/jobradar/internal/cache/redis"
	"github.com/hireloop/jobradar/internal/clock/system"
	"github.com/hireloop/jobradar/internal/config"
	"github.com/hireloop/jobradar/internal/hash/sha256"
	"github.com/hireloop/jobradar/internal/id/uuid"
	"github.com/hireloop/jobradar/internal/jobs"
	"github.com/hireloop/jobradar/internal/ledger"
	"github.com/hireloop/jobradar/internal/orchestrator"
	"github.com/hireloop/jobradar/internal/registry"
	"github.com/hireloop/jobradar/internal/storage/postgres"
)

// Platform coverage per backend. Adzuna and JSearch are aggregators whose
// indexes span several job boards; the scrapers cover their own site.
var (
	adzunaPlatforms    = []string{"indeed", "monster", "dice", "jobsite", "cvlibrary"}
	jsearchPlatforms   = []string{"linkedin", "glassdoor", "indeed"}
	arbeitnowPlatforms = []string{"arbeitnow"}
	web3Platforms      = []string{"web3career"}
	linkedinPlatforms  = []string{"linkedin"}
)

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *registry.Registry
	ledger   *ledger.FileLedger
	orch     *orchestrator.Orchestrator
	store    jobs.Store
	closers  []func()
}

// New assembles the service graph from configuration. Credentials come from
// the environment via config.SecretsFromEnv; a backend whose credentials are
// absent stays registered and is skipped at fetch time.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	secrets := config.SecretsFromEnv()
	clock := system.New()

	reg, err := buildRegistry(cfg, secrets, logger)
	if err != nil {
		return nil, err
	}
	a.registry = reg

	fileLedger, err := ledger.NewFileLedger(cfg.Ledger.Path, reg.MeteredLimits(), clock, logger)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	a.ledger = fileLedger

	cache, err := a.buildCache(ctx, clock)
	if err != nil {
		return nil, err
	}

	if cfg.Database.DSN != "" {
		store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
			DSN:      cfg.Database.DSN,
			Table:    cfg.Database.Table,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init job store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	}

	idGen := uuid.New()
	orch, err := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Ledger:   fileLedger,
		Cache:    cache,
		Store:    a.store,
		Hasher:   sha256.New(),
		Clock:    clock,
		Retry: jobs.NewRetryPolicy(
			cfg.HTTP.MaxRetries,
			cfg.HTTP.BackoffInitial(),
			cfg.HTTP.BackoffMax(),
		),
		Secrets: secrets,
		Logger:  logger,
		NewID:   idGen.NewID,
	})
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}
	a.orch = orch
	return a, nil
}

func buildRegistry(cfg config.Config, secrets map[string]string, logger *zap.Logger) (*registry.Registry, error) {
	var entries []registry.Entry

	if cfg.Backends.Adzuna.Enabled {
		entries = append(entries, registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:         adzuna.Name,
				Kind:         jobs.KindMeteredAPI,
				MonthlyLimit: cfg.Backends.Adzuna.MonthlyLimit,
				Platforms:    adzunaPlatforms,
			},
			Backend: adzuna.New(adzuna.Config{
				BaseURL: cfg.Backends.Adzuna.BaseURL,
				Country: cfg.Backends.Adzuna.Country,
				AppID:   secrets[config.SecretAdzunaAppID],
				AppKey:  secrets[config.SecretAdzunaAppKey],
			}, logger),
		})
	}
	if cfg.Backends.JSearch.Enabled {
		entries = append(entries, registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:         jsearch.Name,
				Kind:         jobs.KindMeteredAPI,
				MonthlyLimit: cfg.Backends.JSearch.MonthlyLimit,
				Platforms:    jsearchPlatforms,
			},
			Backend: jsearch.New(jsearch.Config{
				BaseURL: cfg.Backends.JSearch.BaseURL,
				APIKey:  secrets[config.SecretRapidAPIKey],
			}, logger),
		})
	}
	if cfg.Backends.ArbeitNow.Enabled {
		entries = append(entries, registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:      arbeitnow.Name,
				Kind:      jobs.KindFreeAPI,
				Platforms: arbeitnowPlatforms,
				Fallback:  true,
			},
			Backend: arbeitnow.New(arbeitnow.Config{
				BaseURL: cfg.Backends.ArbeitNow.BaseURL,
			}, logger),
		})
	}
	if cfg.Backends.Web3Career.Enabled {
		entries = append(entries, registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:      web3career.Name,
				Kind:      jobs.KindScraper,
				Platforms: web3Platforms,
			},
			Backend: web3career.New(web3career.Config{
				BaseURL:         cfg.Backends.Web3Career.BaseURL,
				RequestInterval: cfg.Backends.Web3Career.RequestInterval(),
			}, logger),
		})
	}
	if cfg.Backends.LinkedIn.Enabled {
		entries = append(entries, registry.Entry{
			Descriptor: jobs.Descriptor{
				Name:      linkedin.Name,
				Kind:      jobs.KindScraper,
				Platforms: linkedinPlatforms,
			},
			Backend: linkedin.New(linkedin.Config{
				Email:             secrets[config.SecretLinkedInEmail],
				Password:          secrets[config.SecretLinkedInPassword],
				NavigationTimeout: cfg.Backends.LinkedIn.NavTimeout(),
			}, logger),
		})
	}

	reg, err := registry.New(entries...)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return reg, nil
}

func (a *App) buildCache(ctx context.Context, clock jobs.Clock) (jobs.Cache, error) {
	ttl, err := a.cfg.Cache.TTLDuration()
	if err != nil {
		return nil, err
	}
	switch a.cfg.Cache.Provider {
	case "redis":
		client, err := cacheredis.NewClient(ctx, a.cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		a.closers = append(a.closers, func() {
			if cerr := client.Close(); cerr != nil {
				a.logger.Warn("redis close failed", zap.Error(cerr))
			}
		})
		a.logger.Info("using redis response cache", zap.Duration("ttl", ttl))
		return cacheredis.New(client, ttl), nil
	default:
		a.logger.Info("using in-memory response cache", zap.Duration("ttl", ttl))
		return cachemem.New(ttl, clock), nil
	}
}

// Orchestrator exposes the fetch engine for CLI commands.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Registry exposes the backend catalog.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Ledger exposes quota status for CLI commands.
func (a *App) Ledger() *ledger.FileLedger {
	return a.ledger
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases held resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Serve runs the HTTP API until the context is canceled or a signal arrives.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(a.orch, a.registry, a.ledger, a.logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
