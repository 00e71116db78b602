package relay

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/modelrelay/cache"
	"github.com/jonwraymond/modelrelay/health"
	"github.com/jonwraymond/modelrelay/observe"
	"github.com/jonwraymond/modelrelay/provider"
	"github.com/jonwraymond/modelrelay/resilience"
)

// RegisterOptions configures one provider's slot in the manager.
type RegisterOptions struct {
	// Priority orders fallback candidates; lower values are tried first.
	// Ties break by registration order.
	Priority int

	// RateLimit configures the provider's token bucket.
	RateLimit resilience.RateLimiterConfig

	// Breaker configures the provider's circuit breaker. IsFailure
	// defaults to counting only transient backend errors, so credential
	// and caller-input problems never move the breaker.
	Breaker resilience.CircuitBreakerConfig

	// Retry re-runs a failed adapter call inside a single candidate
	// attempt, before fallback moves on. RetryIf defaults to the
	// transient-failure classifier. The zero value disables retries.
	Retry resilience.RetryConfig
}

// registration is one provider's slot: the adapter plus its private
// resilience state. Breaker and limiter are never shared across
// providers.
type registration struct {
	adapter  provider.Adapter
	breaker  *resilience.CircuitBreaker
	limiter  *resilience.RateLimiter
	retry    *resilience.Retry
	priority int
	sequence int
	latency  *latencyTracker
}

// Manager is the single entry point for completion calls. It owns the
// fallback loop and the per-provider resilience state.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]*registration
	nextSeq   int

	pool    *resilience.Pool
	store   cache.Cache
	keyer   *cache.Keyer
	policy  cache.Policy
	scoped  bool
	inst    *observe.Instrumenter
	checks  *health.Aggregator
	catalog *catalog
	timeout time.Duration
}

// NewManager creates an empty manager; providers are added with
// RegisterProvider or through NewManagerFromConfig.
func NewManager(opts ManagerOptions) *Manager {
	// Apply defaults
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache(cache.MemoryConfig{})
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewKeyer(cache.KeyerConfig{ScopeToProvider: opts.ScopeCacheToProvider})
	}
	if opts.Policy == (cache.Policy{}) {
		opts.Policy = cache.DefaultPolicy()
	}
	if opts.Instrumenter == nil {
		opts.Instrumenter = observe.NoopInstrumenter()
	}
	if opts.CatalogTTL <= 0 {
		opts.CatalogTTL = 10 * time.Minute
	}

	return &Manager{
		providers: make(map[string]*registration),
		pool:      opts.Pool,
		store:     opts.Cache,
		keyer:     opts.Keyer,
		policy:    opts.Policy,
		scoped:    opts.ScopeCacheToProvider,
		inst:      opts.Instrumenter,
		checks:    health.NewAggregator(health.AggregatorConfig{}),
		catalog:   newCatalog(opts.CatalogTTL),
		timeout:   opts.Timeout,
	}
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Pool is the shared outbound connection pool. Optional; adapters
	// constructed from configuration already use the pool's client.
	Pool *resilience.Pool

	// Cache stores completion responses. Default: in-memory LRU.
	Cache cache.Cache

	// Keyer derives cache keys. Default: global keys (provider-agnostic).
	Keyer *cache.Keyer

	// ScopeCacheToProvider pins cache entries to the provider that
	// served them. Only consulted when Keyer is nil.
	ScopeCacheToProvider bool

	// Policy computes cache TTLs. Default: selective strategy.
	Policy cache.Policy

	// Instrumenter wraps every provider call. Default: noop.
	Instrumenter *observe.Instrumenter

	// Timeout bounds each Complete call including all fallback attempts.
	// Zero leaves only the caller's context deadline in force.
	Timeout time.Duration

	// CatalogTTL is how long fetched model lists stay fresh.
	// Default: 10 minutes
	CatalogTTL time.Duration
}

// RegisterProvider adds an adapter under its own circuit breaker and
// rate limiter. Registering the same name again replaces the adapter
// and resets its resilience state.
func (m *Manager) RegisterProvider(adapter provider.Adapter, opts RegisterOptions) {
	if opts.Breaker.IsFailure == nil {
		opts.Breaker.IsFailure = provider.IsTransient
	}
	if opts.Breaker.OnStateChange == nil {
		name := adapter.Name()
		logger := m.inst.Logger()
		opts.Breaker.OnStateChange = func(from, to resilience.State) {
			logger.Warn(context.Background(), "circuit state changed",
				observe.Field{Key: "provider", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()})
		}
	}
	if opts.Retry.RetryIf == nil {
		opts.Retry.RetryIf = provider.IsTransient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	m.providers[adapter.Name()] = &registration{
		adapter:  adapter,
		breaker:  resilience.NewCircuitBreaker(opts.Breaker),
		limiter:  resilience.NewRateLimiter(opts.RateLimit),
		retry:    resilience.NewRetry(opts.Retry),
		priority: opts.Priority,
		sequence: m.nextSeq,
		latency:  &latencyTracker{},
	}
	m.checks.Register(health.NewAdapterChecker(adapter, health.AdapterCheckerConfig{}))
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	preferred string
}

// WithPreferred tries the named provider first. Unknown names are
// ignored and the normal priority order applies.
func WithPreferred(name string) CallOption {
	return func(o *callOptions) { o.preferred = name }
}

// candidates returns provider names in try order: the preferred
// provider first when registered, then the rest by ascending priority.
func (m *Manager) candidates(preferred string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		if name != preferred {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := m.providers[names[i]], m.providers[names[j]]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return a.sequence < b.sequence
	})

	if _, ok := m.providers[preferred]; ok {
		names = append([]string{preferred}, names...)
	}
	return names
}

func (m *Manager) registration(name string) (*registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.providers[name]
	return reg, ok
}

// Complete runs a completion request through the cache, the resilience
// layers, and the fallback chain. On a cache hit no provider is
// contacted and a copy of the stored response is returned.
func (m *Manager) Complete(ctx context.Context, req provider.CompletionRequest, opts ...CallOption) (provider.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return provider.CompletionResponse{}, err
	}

	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	cacheable := m.policy.Enabled()
	if cacheable && !m.scoped {
		key := m.keyer.Key("", req)
		if resp, ok := m.store.Get(ctx, key); ok {
			m.inst.Metrics().RecordCacheLookup(ctx, true)
			return resp.Clone(), nil
		}
		m.inst.Metrics().RecordCacheLookup(ctx, false)
	}

	candidates := m.candidates(options.preferred)
	if len(candidates) == 0 {
		return provider.CompletionResponse{}, ErrNoProviders
	}

	reasons := make(map[string]error, len(candidates))
	depth := 0
	for _, name := range candidates {
		reg, ok := m.registration(name)
		if !ok {
			continue
		}

		if cacheable && m.scoped {
			key := m.keyer.Key(name, req)
			if resp, ok := m.store.Get(ctx, key); ok {
				m.inst.Metrics().RecordCacheLookup(ctx, true)
				return resp.Clone(), nil
			}
			m.inst.Metrics().RecordCacheLookup(ctx, false)
		}

		depth++
		resp, err := m.attempt(ctx, name, reg, req, depth)
		if err == nil {
			if cacheable {
				key := m.keyer.Key(name, req)
				// Oversized responses simply skip the cache.
				_ = m.store.Put(ctx, key, resp, m.policy.TTLFor(req))
			}
			m.inst.Metrics().RecordFallbackDepth(ctx, depth)
			m.inst.Metrics().RecordTokens(ctx,
				observe.CallMeta{Provider: name, Model: resp.Model, Operation: "complete"},
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			return resp, nil
		}

		reasons[name] = err

		// The caller's deadline bounds the whole fallback sequence.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return provider.CompletionResponse{}, ErrDeadlineExceeded
			}
			return provider.CompletionResponse{}, ctxErr
		}
	}

	return provider.CompletionResponse{}, &AllProvidersError{Reasons: reasons}
}

// attempt runs one candidate through its breaker, limiter, retry
// policy, and adapter. The breaker sees only transient backend errors
// as failures; a local rate-limit timeout disqualifies the candidate
// without moving breaker state. Retries happen inside the attempt, so
// the breaker records one verdict per candidate.
func (m *Manager) attempt(ctx context.Context, name string, reg *registration, req provider.CompletionRequest, attempt int) (provider.CompletionResponse, error) {
	var resp provider.CompletionResponse

	meta := observe.CallMeta{Provider: name, Model: req.Model, Operation: "complete", Attempt: attempt}
	err := m.inst.Observe(ctx, meta, func(ctx context.Context) error {
		return reg.breaker.Execute(ctx, func(ctx context.Context) error {
			if err := reg.limiter.Wait(ctx); err != nil {
				return err
			}

			return reg.retry.Execute(ctx, func(ctx context.Context) error {
				start := time.Now()
				out, err := reg.adapter.Complete(ctx, req)
				reg.latency.record(time.Since(start), err)
				if err != nil {
					return err
				}
				resp = out
				return nil
			})
		})
	})
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	return resp, nil
}

// StreamComplete starts a streaming completion against the first
// candidate that accepts the call. Connection-time failures fall back
// to the next candidate; once a stream is underway its chunks are
// relayed as-is and a mid-stream error counts against that provider's
// breaker without restarting elsewhere. Cancel ctx to abandon the
// stream and release its connection.
func (m *Manager) StreamComplete(ctx context.Context, req provider.CompletionRequest, opts ...CallOption) (<-chan provider.StreamChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	candidates := m.candidates(options.preferred)
	if len(candidates) == 0 {
		return nil, ErrNoProviders
	}

	reasons := make(map[string]error, len(candidates))
	for i, name := range candidates {
		reg, ok := m.registration(name)
		if !ok {
			continue
		}

		out, err := m.startStream(ctx, name, reg, req, i+1)
		if err != nil {
			reasons[name] = err
			continue
		}
		return out, nil
	}

	return nil, &AllProvidersError{Reasons: reasons}
}

// startStream opens one candidate's stream. The breaker verdict is
// recorded when the stream finishes, not when it starts, so a backend
// that dies mid-stream still accumulates failures.
func (m *Manager) startStream(ctx context.Context, name string, reg *registration, req provider.CompletionRequest, attempt int) (<-chan provider.StreamChunk, error) {
	out := make(chan provider.StreamChunk)
	started := make(chan error, 1)

	meta := observe.CallMeta{Provider: name, Model: req.Model, Operation: "stream", Attempt: attempt}
	go func() {
		defer close(out)

		_ = m.inst.Observe(ctx, meta, func(ctx context.Context) error {
			return reg.breaker.Execute(ctx, func(ctx context.Context) error {
				if err := reg.limiter.Wait(ctx); err != nil {
					started <- err
					return err
				}

				start := time.Now()
				chunks, err := reg.adapter.StreamComplete(ctx, req)
				if err != nil {
					reg.latency.record(time.Since(start), err)
					started <- err
					return err
				}
				started <- nil

				var streamErr error
				for chunk := range chunks {
					if chunk.Err != nil {
						streamErr = chunk.Err
					}
					select {
					case out <- chunk:
					case <-ctx.Done():
						reg.latency.record(time.Since(start), ctx.Err())
						return nil // consumer gone; not a backend fault
					}
				}
				reg.latency.record(time.Since(start), streamErr)
				return streamErr
			})
		})
	}()

	if err := <-started; err != nil {
		return nil, err
	}
	return out, nil
}

// ListModels returns the model catalog for one provider, or for every
// registered provider when name is empty. Results are cached with a TTL
// and concurrent refreshes are deduplicated.
func (m *Manager) ListModels(ctx context.Context, name string) ([]provider.ModelInfo, error) {
	if name != "" {
		reg, ok := m.registration(name)
		if !ok {
			return nil, ErrUnknownProvider
		}
		return m.catalog.get(ctx, name, reg.adapter.ListModels)
	}

	var all []provider.ModelInfo
	var lastErr error
	found := false
	for _, candidate := range m.candidates("") {
		reg, ok := m.registration(candidate)
		if !ok {
			continue
		}
		models, err := m.catalog.get(ctx, candidate, reg.adapter.ListModels)
		if err != nil {
			lastErr = err
			continue
		}
		found = true
		all = append(all, models...)
	}

	if !found && lastErr != nil {
		return nil, lastErr
	}
	if !found && len(m.candidates("")) == 0 {
		return nil, ErrNoProviders
	}
	return all, nil
}

// RefreshModels discards the cached catalog for one provider, or for
// all providers when name is empty.
func (m *Manager) RefreshModels(name string) {
	if name != "" {
		m.catalog.invalidate(name)
		return
	}
	for _, candidate := range m.candidates("") {
		m.catalog.invalidate(candidate)
	}
}

// HealthCheck probes one provider, or every provider when name is
// empty, and returns results keyed by provider name.
func (m *Manager) HealthCheck(ctx context.Context, name string) (map[string]health.Result, error) {
	if name != "" {
		if _, ok := m.registration(name); !ok {
			return nil, ErrUnknownProvider
		}
		result, err := m.checks.Check(ctx, name)
		if err != nil {
			return nil, err
		}
		return map[string]health.Result{name: result}, nil
	}

	return m.checks.CheckAll(ctx), nil
}

// HealthMonitor returns a background monitor over this manager's
// providers. The caller owns starting and stopping it.
func (m *Manager) HealthMonitor(cfg health.MonitorConfig) *health.Monitor {
	return health.NewMonitor(m.checks, cfg)
}

// Close releases pooled connections.
func (m *Manager) Close() {
	if m.pool != nil {
		m.pool.CloseIdleConnections()
	}
}
