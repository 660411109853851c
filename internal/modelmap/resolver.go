// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package modelmap resolves caller-facing Anthropic model ids to the
// Bedrock model ids that should actually be invoked (component C1).
package modelmap

import (
	"strings"
	"sync"
)

// defaultMapping mirrors app/core/config.py's default_model_mapping.
var defaultMapping = map[string]string{
	"claude-opus-4-5-20251101":   "global.anthropic.claude-opus-4-5-20251101-v1:0",
	"claude-sonnet-4-5-20250929": "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
	"claude-haiku-4-5-20251001":  "global.anthropic.claude-haiku-4-5-20251001-v1:0",
	"claude-3-5-haiku-20241022":  "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

// Resolver maps caller-facing model ids to upstream Bedrock model ids,
// with an optional override table layered on top of the built-in
// defaults (standing in for the out-of-scope admin-managed mapping
// table; see spec.md §1 Non-goals).
type Resolver struct {
	mu       sync.RWMutex
	overrides map[string]string
	cache     map[string]string
}

// NewResolver builds a Resolver, optionally seeded with override entries.
func NewResolver(overrides map[string]string) *Resolver {
	r := &Resolver{
		overrides: make(map[string]string, len(overrides)),
		cache:     make(map[string]string),
	}
	for k, v := range overrides {
		r.overrides[k] = v
	}
	return r
}

// Resolve returns the Bedrock model id to invoke for a caller-facing id.
// If no mapping is known, the caller-facing id is passed through
// unchanged so that already-valid Bedrock ids work without a mapping
// entry.
func (r *Resolver) Resolve(callerModel string) string {
	r.mu.RLock()
	if cached, ok := r.cache[callerModel]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	resolved := callerModel
	if v, ok := r.overrides[callerModel]; ok {
		resolved = v
	} else if v, ok := defaultMapping[callerModel]; ok {
		resolved = v
	}

	r.mu.Lock()
	r.cache[callerModel] = resolved
	r.mu.Unlock()
	return resolved
}

// IsClaudeFamily reports whether a model id (caller-facing or resolved)
// identifies a Claude model, gating prompt-cache markers and beta
// feature pass-through.
func IsClaudeFamily(modelID string) bool {
	lower := strings.ToLower(modelID)
	return strings.Contains(lower, "anthropic") || strings.Contains(lower, "claude")
}
