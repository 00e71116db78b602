package relay

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/modelrelay/resilience"
)

// Sentinel errors for relay operations.
var (
	// ErrNoProviders is returned when no providers are registered.
	ErrNoProviders = errors.New("relay: no providers registered")

	// ErrUnknownProvider is returned when a named provider is not registered.
	ErrUnknownProvider = errors.New("relay: unknown provider")

	// ErrDeadlineExceeded is returned when the caller deadline expires
	// before any candidate produced a response. Aliases the resilience
	// timeout sentinel so errors.Is matches either name.
	ErrDeadlineExceeded = resilience.ErrTimeout
)

// AllProvidersError is returned when every candidate provider failed.
// Reasons maps each tried provider to the failure that disqualified it.
type AllProvidersError struct {
	Reasons map[string]error
}

func (e *AllProvidersError) Error() string {
	if len(e.Reasons) == 0 {
		return "relay: all providers unavailable"
	}

	names := make([]string, 0, len(e.Reasons))
	for name := range e.Reasons {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("relay: all providers unavailable:")
	for _, name := range names {
		fmt.Fprintf(&b, " %s: %v;", name, e.Reasons[name])
	}
	return strings.TrimSuffix(b.String(), ";")
}

// Reason returns the failure recorded for one provider, or nil.
func (e *AllProvidersError) Reason(provider string) error {
	return e.Reasons[provider]
}
