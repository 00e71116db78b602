package resilience

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"
)

// PoolConfig configures the shared outbound connection pool.
type PoolConfig struct {
	// MaxInFlight is the maximum number of concurrent requests across all
	// hosts.
	// Default: 64
	MaxInFlight int

	// MaxPerHost bounds connections to any single backend host.
	// Default: 10
	MaxPerHost int

	// MaxIdlePerHost bounds idle connections kept per host.
	// Default: MaxPerHost
	MaxIdlePerHost int

	// IdleTimeout is how long an idle connection is kept before closing.
	// Default: 90 seconds
	IdleTimeout time.Duration

	// MaxWait is the maximum time to wait for an in-flight slot.
	// Default: 0 (no waiting, fail immediately with ErrPoolExhausted)
	MaxWait time.Duration

	// Base is the underlying round tripper for the pooled client. When
	// nil a dedicated http.Transport is built from the limits above.
	Base http.RoundTripper
}

// Pool is the process-wide outbound connection pool. It bounds total
// in-flight requests with a semaphore and per-host connections through the
// underlying http.Transport. A slot is held until the response body is
// closed, so streaming responses keep their slot for their whole life.
type Pool struct {
	config PoolConfig
	client *http.Client
	sem    chan struct{}

	mu       sync.Mutex
	active   int
	maxUsed  int
	rejected int64
}

// NewPool creates a connection pool.
func NewPool(config PoolConfig) *Pool {
	// Apply defaults
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 64
	}
	if config.MaxPerHost <= 0 {
		config.MaxPerHost = 10
	}
	if config.MaxIdlePerHost <= 0 {
		config.MaxIdlePerHost = config.MaxPerHost
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 90 * time.Second
	}
	if config.Base == nil {
		config.Base = &http.Transport{
			MaxConnsPerHost:     config.MaxPerHost,
			MaxIdleConnsPerHost: config.MaxIdlePerHost,
			MaxIdleConns:        config.MaxInFlight,
			IdleConnTimeout:     config.IdleTimeout,
		}
	}

	p := &Pool{
		config: config,
		sem:    make(chan struct{}, config.MaxInFlight),
	}
	p.client = &http.Client{Transport: poolTransport{pool: p}}
	return p
}

// Client returns an *http.Client whose requests are admitted through the
// pool. Adapters are constructed with this client so every backend call
// shares the same resource bounds.
func (p *Pool) Client() *http.Client {
	return p.client
}

// Do executes the request through the pool. The in-flight slot is
// released when the response body is closed (or on error).
func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	return p.client.Do(req)
}

// Execute runs an arbitrary operation under an in-flight slot. Used for
// work that must share the pool's concurrency bound but does not go
// through Do directly.
func (p *Pool) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	return op(ctx)
}

// CloseIdleConnections closes idle connections held by the transport.
func (p *Pool) CloseIdleConnections() {
	if t, ok := p.config.Base.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

func (p *Pool) acquire(ctx context.Context) error {
	// Fast path: non-blocking acquire.
	select {
	case p.sem <- struct{}{}:
		p.noteAcquired()
		return nil
	default:
	}

	if p.config.MaxWait <= 0 {
		p.noteRejected()
		return ErrPoolExhausted
	}

	timer := time.NewTimer(p.config.MaxWait)
	defer timer.Stop()

	select {
	case p.sem <- struct{}{}:
		p.noteAcquired()
		return nil
	case <-timer.C:
		p.noteRejected()
		return ErrPoolExhausted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	select {
	case <-p.sem:
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	default:
	}
}

func (p *Pool) noteAcquired() {
	p.mu.Lock()
	p.active++
	if p.active > p.maxUsed {
		p.maxUsed = p.active
	}
	p.mu.Unlock()
}

func (p *Pool) noteRejected() {
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
}

// Metrics returns current pool statistics.
func (p *Pool) Metrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolMetrics{
		Active:      p.active,
		MaxUsed:     p.maxUsed,
		Available:   p.config.MaxInFlight - p.active,
		MaxInFlight: p.config.MaxInFlight,
		Rejected:    p.rejected,
	}
}

// PoolMetrics contains connection pool statistics.
type PoolMetrics struct {
	Active      int
	MaxUsed     int
	Available   int
	MaxInFlight int
	Rejected    int64
}

// poolTransport admits each request through the pool semaphore and ties
// slot release to response body closure.
type poolTransport struct {
	pool *Pool
}

func (t poolTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.pool.acquire(req.Context()); err != nil {
		return nil, err
	}

	resp, err := t.pool.config.Base.RoundTrip(req)
	if err != nil {
		t.pool.release()
		return nil, err
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, pool: t.pool}
	return resp, nil
}

// releasingBody releases the pool slot exactly once when the body closes.
type releasingBody struct {
	io.ReadCloser
	pool *Pool
	once sync.Once
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.pool.release)
	return err
}
