// Package auth provides outbound credential injection for backend calls.
//
// Each transport wraps an http.RoundTripper and attaches the credential a
// backend expects: a named API key header, a static bearer token, or a
// short-lived self-signed JWT service token minted on demand. Adapters
// receive a transport at construction time with credentials already
// resolved by the secret package; nothing in this package reads secret
// material from files or the environment.
package auth
