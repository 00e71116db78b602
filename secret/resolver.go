package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Resolver resolves credential references using registered sources.
//
// Values with the prefix "credref:" are resolved via sources. Other
// values are returned after strict environment expansion, so literal
// API keys in configuration still work.
type Resolver struct {
	sources map[string]Source
	strict  bool
}

// NewResolver creates a resolver. When strict is set, sources that
// resolve a reference to an empty string error instead.
func NewResolver(strict bool, sources ...Source) *Resolver {
	r := &Resolver{
		sources: make(map[string]Source),
		strict:  strict,
	}
	for _, s := range sources {
		if s == nil {
			continue
		}
		r.sources[s.Name()] = s
	}
	return r
}

// Register registers a source with the resolver.
func (r *Resolver) Register(source Source) {
	if r == nil || source == nil {
		return
	}
	if r.sources == nil {
		r.sources = make(map[string]Source)
	}
	r.sources[source.Name()] = source
}

// ResolveValue resolves environment variables and credential refs in value.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}
	if r == nil {
		return expanded, nil
	}

	if sourceName, ref, ok := ParseCredRef(expanded); ok {
		return r.resolveSingle(ctx, sourceName, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// ResolveMap resolves each string value in input.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	out := make(map[string]string, len(input))
	for k, v := range input {
		resolved, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// ParseCredRef parses a full credential reference of the form:
//
//	credref:<source>:<ref>
func ParseCredRef(value string) (source string, ref string, ok bool) {
	const prefix = "credref:"
	if !strings.HasPrefix(value, prefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, prefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (r *Resolver) resolveSingle(ctx context.Context, sourceName string, ref string) (string, error) {
	if strings.TrimSpace(sourceName) == "" {
		return "", errors.New("secret: source name is required")
	}
	if strings.TrimSpace(ref) == "" {
		return "", errors.New("secret: credential ref is required")
	}
	source, ok := r.sources[sourceName]
	if !ok || source == nil {
		return "", fmt.Errorf("secret: source %q is not registered", sourceName)
	}
	resolved, err := source.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("secret: source %q returned empty value", sourceName)
	}
	return resolved, nil
}

var inlineCredRefPattern = regexp.MustCompile(`credref:([^:\s]+):([^\s]+)`) // source:ref

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineCredRefPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		match := matches[i]

		// Match indexes stay valid because replacement runs end to start.
		sourceName := out[match[2]:match[3]]
		ref := out[match[4]:match[5]]

		resolved, err := r.resolveSingle(ctx, sourceName, ref)
		if err != nil {
			return "", err
		}

		out = out[:match[0]] + resolved + out[match[1]:]
	}
	return out, nil
}
