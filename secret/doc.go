// Package secret resolves provider credentials from configuration values.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable credential sources (see Source + Registry)
//   - Resolving credential references in configuration values (see Resolver)
//
// References use the prefix "credref:":
//   - Full value:  credref:env:OPENAI_API_KEY
//   - Inline use:  Bearer credref:vault:llm/key/OPENAI_API_KEY
//
// Plain values pass through untouched after environment expansion, so a
// literal API key in configuration still works.
package secret
