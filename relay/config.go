package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/modelrelay/auth"
	"github.com/jonwraymond/modelrelay/cache"
	"github.com/jonwraymond/modelrelay/observe"
	"github.com/jonwraymond/modelrelay/provider"
	"github.com/jonwraymond/modelrelay/resilience"
	"github.com/jonwraymond/modelrelay/secret"
)

// ProviderConfig declares one provider slot, as supplied by an external
// configuration loader.
type ProviderConfig struct {
	// Name selects a registered adapter factory ("openai", "ollama").
	Name string

	// BaseURL overrides the backend endpoint. Empty uses the adapter
	// default.
	BaseURL string

	// Credential is the credential value or reference. Literal values,
	// ${ENV} expansion, and credref:<source>:<ref> references are all
	// accepted; resolution happens once at construction time.
	Credential string

	// Priority orders fallback candidates; lower values are tried first.
	Priority int

	// RateLimit configures the provider's token bucket.
	RateLimit resilience.RateLimiterConfig

	// Breaker configures the provider's circuit breaker.
	Breaker resilience.CircuitBreakerConfig

	// Retry re-runs failed calls inside a single candidate attempt.
	Retry resilience.RetryConfig

	// ServiceToken optionally configures self-signed JWT auth for a
	// gateway fronting the backend. The minted token replaces the
	// adapter's own Authorization header on the wire.
	ServiceToken *auth.ServiceTokenConfig
}

// Config assembles a Manager from declarative configuration.
type Config struct {
	// Providers lists the provider slots. At least one is required.
	Providers []ProviderConfig

	// Pool configures the shared outbound connection pool.
	Pool resilience.PoolConfig

	// Cache configures the in-memory response cache.
	Cache cache.MemoryConfig

	// Policy computes cache TTLs. Zero value uses the selective default.
	Policy cache.Policy

	// ScopeCacheToProvider pins cache entries to the serving provider.
	ScopeCacheToProvider bool

	// Timeout bounds each Complete call including fallback.
	Timeout time.Duration

	// CatalogTTL is how long fetched model lists stay fresh.
	CatalogTTL time.Duration

	// Secrets resolves credential references. Nil still supports ${ENV}
	// expansion and literal values.
	Secrets *secret.Resolver

	// Observer supplies telemetry. Nil disables instrumentation.
	Observer observe.Observer
}

// NewManagerFromConfig builds the pool, resolves credentials,
// constructs and initializes every adapter, and registers them.
func NewManagerFromConfig(ctx context.Context, cfg Config) (*Manager, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	pool := resilience.NewPool(cfg.Pool)

	inst := observe.NoopInstrumenter()
	if cfg.Observer != nil {
		built, err := observe.InstrumenterFromObserver(cfg.Observer)
		if err != nil {
			return nil, err
		}
		inst = built
	}

	m := NewManager(ManagerOptions{
		Pool:                 pool,
		Cache:                cache.NewMemoryCache(cfg.Cache),
		ScopeCacheToProvider: cfg.ScopeCacheToProvider,
		Policy:               cfg.Policy,
		Instrumenter:         inst,
		Timeout:              cfg.Timeout,
		CatalogTTL:           cfg.CatalogTTL,
	})

	for _, pc := range cfg.Providers {
		adapter, err := buildAdapter(ctx, pc, pool, cfg.Secrets)
		if err != nil {
			return nil, fmt.Errorf("relay: provider %q: %w", pc.Name, err)
		}

		m.RegisterProvider(adapter, RegisterOptions{
			Priority:  pc.Priority,
			RateLimit: pc.RateLimit,
			Breaker:   pc.Breaker,
			Retry:     pc.Retry,
		})
	}

	return m, nil
}

func buildAdapter(ctx context.Context, pc ProviderConfig, pool *resilience.Pool, secrets *secret.Resolver) (provider.Adapter, error) {
	credential, err := secrets.ResolveValue(ctx, pc.Credential)
	if err != nil {
		return nil, err
	}

	client, err := buildClient(pc, pool)
	if err != nil {
		return nil, err
	}

	adapter, err := provider.New(pc.Name, provider.Config{
		BaseURL:    pc.BaseURL,
		Credential: credential,
		HTTPClient: client,
	})
	if err != nil {
		return nil, err
	}
	if err := adapter.Init(ctx); err != nil {
		if credential != "" {
			return nil, fmt.Errorf("init with credential %s: %w", auth.Redact(credential), err)
		}
		return nil, err
	}
	return adapter, nil
}

// buildClient returns the pooled client, wrapped in a service token
// transport when one is configured so every request carries a fresh
// signed token.
func buildClient(pc ProviderConfig, pool *resilience.Pool) (provider.HTTPDoer, error) {
	pooled := pool.Client()
	if pc.ServiceToken == nil {
		return pooled, nil
	}

	tokenCfg := *pc.ServiceToken
	tokenCfg.Base = pooled.Transport

	transport, err := auth.NewServiceTokenTransport(tokenCfg)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: transport}, nil
}
