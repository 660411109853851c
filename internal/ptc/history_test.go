// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package ptc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

func TestFilterNonDirectToolCallsDropsServerToolUse(t *testing.T) {
	messages := []anthropic.Message{
		{Role: "user", Content: []anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}}},
		{Role: "assistant", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeServerToolUse, ID: "srv_1", Name: "execute_code"},
		}},
		{Role: "user", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeServerToolResult, ToolUseID: "srv_1"},
		}},
	}
	filtered := FilterNonDirectToolCalls(messages, nil)
	require.Len(t, filtered, 1)
	require.Equal(t, "user", filtered[0].Role)
}

func TestFilterNonDirectToolCallsDropsNonDirectPair(t *testing.T) {
	messages := []anthropic.Message{
		{Role: "assistant", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolUse, ID: "toolu_sandbox", Name: "search"},
		}},
		{Role: "user", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolResult, ToolUseID: "toolu_sandbox", ToolResultText: "result"},
		}},
	}
	filtered := FilterNonDirectToolCalls(messages, map[string]bool{"toolu_sandbox": true})
	require.Empty(t, filtered)
}

func TestFilterNonDirectToolCallsKeepsDirectCalls(t *testing.T) {
	messages := []anthropic.Message{
		{Role: "assistant", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolUse, ID: "toolu_direct", Name: "get_weather"},
		}},
		{Role: "user", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolResult, ToolUseID: "toolu_direct", ToolResultText: "sunny"},
		}},
	}
	filtered := FilterNonDirectToolCalls(messages, nil)
	require.Len(t, filtered, 2)
}
