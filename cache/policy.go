package cache

import (
	"time"

	"github.com/jonwraymond/modelrelay/provider"
)

// Strategy selects how TTLs are computed for stored responses.
type Strategy string

// Strategy constants.
const (
	// StrategySelective gives the long TTL to requests that look
	// deterministic (low or unset sampling temperature) and the short TTL
	// to everything else. This is the default.
	StrategySelective Strategy = "selective"

	// StrategyAggressive always uses the long TTL.
	StrategyAggressive Strategy = "aggressive"

	// StrategyConservative always uses the short TTL.
	StrategyConservative Strategy = "conservative"

	// StrategyDisabled caches nothing.
	StrategyDisabled Strategy = "disabled"
)

// Policy configures TTL computation.
type Policy struct {
	// Strategy selects the TTL heuristic.
	// Default: StrategySelective
	Strategy Strategy

	// LongTTL is used for deterministic-looking responses.
	// Default: 15 minutes
	LongTTL time.Duration

	// ShortTTL is used for responses unlikely to repeat exactly.
	// Default: 1 minute
	ShortTTL time.Duration

	// DeterministicMaxTemperature is the sampling temperature at or below
	// which a request counts as deterministic for StrategySelective. An
	// unset temperature also counts as deterministic.
	// Default: 0.2
	DeterministicMaxTemperature float64
}

// DefaultPolicy returns the default caching policy.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:                    StrategySelective,
		LongTTL:                     15 * time.Minute,
		ShortTTL:                    time.Minute,
		DeterministicMaxTemperature: 0.2,
	}
}

// withDefaults fills zero-value fields.
func (p Policy) withDefaults() Policy {
	if p.Strategy == "" {
		p.Strategy = StrategySelective
	}
	if p.LongTTL <= 0 {
		p.LongTTL = 15 * time.Minute
	}
	if p.ShortTTL <= 0 {
		p.ShortTTL = time.Minute
	}
	if p.DeterministicMaxTemperature <= 0 {
		p.DeterministicMaxTemperature = 0.2
	}
	return p
}

// Enabled reports whether this policy caches at all.
func (p Policy) Enabled() bool {
	return p.Strategy != StrategyDisabled
}

// TTLFor computes the TTL to store a response under, based on the request
// that produced it. Returns 0 when caching is disabled.
func (p Policy) TTLFor(req provider.CompletionRequest) time.Duration {
	p = p.withDefaults()

	switch p.Strategy {
	case StrategyDisabled:
		return 0
	case StrategyAggressive:
		return p.LongTTL
	case StrategyConservative:
		return p.ShortTTL
	default: // StrategySelective
		if req.Temperature == nil || *req.Temperature <= p.DeterministicMaxTemperature {
			return p.LongTTL
		}
		return p.ShortTTL
	}
}
