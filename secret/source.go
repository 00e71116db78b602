package secret

import (
	"context"
	"fmt"
	"os"
)

// Source resolves credentials by reference string.
//
// Implementations must be safe for concurrent use and must not log
// credential values.
type Source interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvSource resolves references as environment variable names.
// It is the source behind "credref:env:VAR" references.
type EnvSource struct{}

// Name returns "env".
func (EnvSource) Name() string { return "env" }

// Resolve looks up ref in the process environment.
func (EnvSource) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("secret: environment variable %q is not set", ref)
	}
	return value, nil
}

// Close is a no-op.
func (EnvSource) Close() error { return nil }
