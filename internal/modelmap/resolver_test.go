// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package modelmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDefaults(t *testing.T) {
	r := NewResolver(nil)
	require.Equal(t, "global.anthropic.claude-sonnet-4-5-20250929-v1:0", r.Resolve("claude-sonnet-4-5-20250929"))
	require.Equal(t, "us.anthropic.claude-3-5-haiku-20241022-v1:0", r.Resolve("claude-3-5-haiku-20241022"))
}

func TestResolveOverrideWins(t *testing.T) {
	r := NewResolver(map[string]string{"claude-sonnet-4-5-20250929": "custom.id-v2:0"})
	require.Equal(t, "custom.id-v2:0", r.Resolve("claude-sonnet-4-5-20250929"))
}

func TestResolvePassThroughUnknown(t *testing.T) {
	r := NewResolver(nil)
	require.Equal(t, "eu.anthropic.claude-opus-unknown-v1:0", r.Resolve("eu.anthropic.claude-opus-unknown-v1:0"))
}

func TestIsClaudeFamily(t *testing.T) {
	require.True(t, IsClaudeFamily("global.anthropic.claude-sonnet-4-5-20250929-v1:0"))
	require.True(t, IsClaudeFamily("claude-3-5-haiku-20241022"))
	require.False(t, IsClaudeFamily("amazon.titan-text-express-v1"))
}
