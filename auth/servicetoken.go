package auth

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ServiceTokenConfig configures a self-signed JWT service token transport,
// for backends that accept signed service tokens instead of static keys.
type ServiceTokenConfig struct {
	// Issuer is the iss claim. Required.
	Issuer string

	// Audience is the aud claim.
	Audience string

	// Subject is the sub claim. Default: Issuer.
	Subject string

	// TTL is the token lifetime. Default: 5 minutes.
	TTL time.Duration

	// SigningKey is the key material: []byte for HS256,
	// *rsa.PrivateKey for RS256. Required.
	SigningKey any

	// Base is the underlying round tripper.
	// Default: http.DefaultTransport
	Base http.RoundTripper
}

// ServiceTokenTransport mints short-lived signed JWTs and attaches them as
// bearer tokens. Tokens are reused until shortly before expiry; refresh is
// deduplicated with singleflight so concurrent requests never mint more
// than one replacement token.
type ServiceTokenTransport struct {
	config  ServiceTokenConfig
	method  jwt.SigningMethod
	sfGroup singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewServiceTokenTransport creates a service token transport.
func NewServiceTokenTransport(config ServiceTokenConfig) (*ServiceTokenTransport, error) {
	if config.SigningKey == nil {
		return nil, ErrNoSigningKey
	}
	if config.Issuer == "" {
		return nil, ErrMissingCredential
	}

	var method jwt.SigningMethod
	switch config.SigningKey.(type) {
	case []byte:
		method = jwt.SigningMethodHS256
	case *rsa.PrivateKey:
		method = jwt.SigningMethodRS256
	default:
		return nil, ErrUnsupportedKeyType
	}

	// Apply defaults
	if config.Subject == "" {
		config.Subject = config.Issuer
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.Base == nil {
		config.Base = http.DefaultTransport
	}

	return &ServiceTokenTransport{
		config: config,
		method: method,
		now:    time.Now,
	}, nil
}

// RoundTrip implements http.RoundTripper.
func (t *ServiceTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.currentToken()
	if err != nil {
		return nil, err
	}

	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.config.Base.RoundTrip(out)
}

// Client returns an *http.Client using this transport.
func (t *ServiceTokenTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// currentToken returns the cached token, minting a replacement when the
// cached one is within 10% of its lifetime from expiry.
func (t *ServiceTokenTransport) currentToken() (string, error) {
	t.mu.RLock()
	token := t.token
	fresh := token != "" && t.now().Before(t.expiresAt.Add(-t.config.TTL/10))
	t.mu.RUnlock()

	if fresh {
		return token, nil
	}

	minted, err, _ := t.sfGroup.Do("mint", func() (any, error) {
		// Another caller may have refreshed while we waited.
		t.mu.RLock()
		token := t.token
		fresh := token != "" && t.now().Before(t.expiresAt.Add(-t.config.TTL/10))
		t.mu.RUnlock()
		if fresh {
			return token, nil
		}

		signed, expiresAt, err := t.mint()
		if err != nil {
			return "", err
		}

		t.mu.Lock()
		t.token = signed
		t.expiresAt = expiresAt
		t.mu.Unlock()

		return signed, nil
	})
	if err != nil {
		return "", err
	}
	return minted.(string), nil
}

func (t *ServiceTokenTransport) mint() (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.config.TTL)

	claims := jwt.RegisteredClaims{
		Issuer:    t.config.Issuer,
		Subject:   t.config.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	if t.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{t.config.Audience}
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.config.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing service token: %w", err)
	}
	return signed, expiresAt, nil
}

var _ http.RoundTripper = (*ServiceTokenTransport)(nil)
