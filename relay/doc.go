// Package relay orchestrates completion calls across multiple model
// providers. A Manager owns one circuit breaker and one rate limiter
// per provider, a shared connection pool, and a shared response cache;
// each call is admitted through those layers and falls back to the next
// provider in priority order when a candidate fails.
package relay
