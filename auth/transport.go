package auth

import "net/http"

// APIKeyConfig configures an API key transport.
type APIKeyConfig struct {
	// Key is the resolved API key. Required.
	Key string

	// HeaderName is the header carrying the key.
	// Default: "Authorization"
	HeaderName string

	// Scheme is the prefix before the key in the header value.
	// Default: "Bearer " when HeaderName is "Authorization", empty otherwise.
	Scheme string

	// Base is the underlying round tripper.
	// Default: http.DefaultTransport
	Base http.RoundTripper
}

// APIKeyTransport attaches an API key header to every outbound request.
type APIKeyTransport struct {
	config APIKeyConfig
}

// NewAPIKeyTransport creates an API key transport.
func NewAPIKeyTransport(config APIKeyConfig) (*APIKeyTransport, error) {
	if config.Key == "" {
		return nil, ErrMissingCredential
	}
	// Apply defaults
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
		if config.Scheme == "" {
			config.Scheme = "Bearer "
		}
	}
	if config.Base == nil {
		config.Base = http.DefaultTransport
	}

	return &APIKeyTransport{config: config}, nil
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// the header is set, per the RoundTripper contract.
func (t *APIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set(t.config.HeaderName, t.config.Scheme+t.config.Key)
	return t.config.Base.RoundTrip(out)
}

// Client returns an *http.Client using this transport.
func (t *APIKeyTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

var _ http.RoundTripper = (*APIKeyTransport)(nil)
