// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

func TestToBedrockBasicMessage(t *testing.T) {
	req := &anthropic.Request{
		Model:     "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}}},
		},
	}
	out, err := ToBedrock(req, Options{PromptCachingEnabled: true})
	require.NoError(t, err)
	require.Equal(t, req.Model, out.ModelID)
	require.Len(t, out.Messages, 1)
	require.Equal(t, types.ConversationRoleUser, out.Messages[0].Role)
	require.Len(t, out.Messages[0].Content, 1)

	textBlock, ok := out.Messages[0].Content[0].(*types.ContentBlockMemberText)
	require.True(t, ok)
	require.Equal(t, "hi", textBlock.Value)
}

func TestToBedrockCacheMarkerInsertion(t *testing.T) {
	req := &anthropic.Request{
		Model:     "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens: 100,
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{
				{Type: anthropic.BlockTypeText, Text: "cache me", CacheControl: &anthropic.CacheControl{Type: "ephemeral"}},
			}},
		},
	}
	out, err := ToBedrock(req, Options{PromptCachingEnabled: true})
	require.NoError(t, err)
	require.Len(t, out.Messages[0].Content, 2)
	_, isCachePoint := out.Messages[0].Content[1].(*types.ContentBlockMemberCachePoint)
	require.True(t, isCachePoint)
}

func TestToBedrockCacheMarkerSkippedForNonClaude(t *testing.T) {
	req := &anthropic.Request{
		Model:     "amazon.titan-text-express-v1",
		MaxTokens: 100,
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{
				{Type: anthropic.BlockTypeText, Text: "no cache", CacheControl: &anthropic.CacheControl{Type: "ephemeral"}},
			}},
		},
	}
	out, err := ToBedrock(req, Options{PromptCachingEnabled: true})
	require.NoError(t, err)
	require.Len(t, out.Messages[0].Content, 1)
}

func TestToBedrockEmptyTextBlockDropped(t *testing.T) {
	req := &anthropic.Request{
		Model:     "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens: 100,
		Messages: []anthropic.Message{
			{Role: "assistant", Content: []anthropic.ContentBlock{
				{Type: anthropic.BlockTypeText, Text: ""},
				{Type: anthropic.BlockTypeToolUse, ID: "toolu_1", Name: "execute_code", Input: json.RawMessage(`{"code":"print(1)"}`)},
			}},
		},
	}
	out, err := ToBedrock(req, Options{})
	require.NoError(t, err)
	require.Len(t, out.Messages[0].Content, 1)
	_, ok := out.Messages[0].Content[0].(*types.ContentBlockMemberToolUse)
	require.True(t, ok)
}

func TestToBedrockBetaFlags(t *testing.T) {
	req := &anthropic.Request{
		Model:     "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens: 100,
		Thinking:  &anthropic.Thinking{Type: "enabled", BudgetTokens: 1024},
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}}},
		},
	}
	out, err := ToBedrock(req, Options{FineGrainedToolStreamingEnabled: true, InterleavedThinkingEnabled: true})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"fine-grained-tool-streaming-2025-05-14", "interleaved-thinking-2025-05-14"}, out.AnthropicBetaFlags)
}

func TestToBedrockToolChoiceAuto(t *testing.T) {
	req := &anthropic.Request{
		Model:      "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens:  100,
		Messages:   []anthropic.Message{{Role: "user", Content: []anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}}}},
		Tools:      []anthropic.Tool{{Name: "get_weather"}},
		ToolChoice: json.RawMessage(`"auto"`),
	}
	out, err := ToBedrock(req, Options{})
	require.NoError(t, err)
	_, ok := out.ToolConfig.ToolChoice.(*types.ToolChoiceMemberAuto)
	require.True(t, ok)
}

func TestToBedrockToolChoiceSpecificTool(t *testing.T) {
	req := &anthropic.Request{
		Model:      "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens:  100,
		Messages:   []anthropic.Message{{Role: "user", Content: []anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}}}},
		Tools:      []anthropic.Tool{{Name: "get_weather"}},
		ToolChoice: json.RawMessage(`{"type":"tool","name":"get_weather"}`),
	}
	out, err := ToBedrock(req, Options{})
	require.NoError(t, err)
	choice, ok := out.ToolConfig.ToolChoice.(*types.ToolChoiceMemberTool)
	require.True(t, ok)
	require.Equal(t, "get_weather", *choice.Value.Name)
}

func TestToBedrockDocumentBlockDroppedWhenDisabled(t *testing.T) {
	req := &anthropic.Request{
		Model:     "global.anthropic.claude-sonnet-4-5-20250929-v1:0",
		MaxTokens: 100,
		Messages: []anthropic.Message{
			{Role: "user", Content: []anthropic.ContentBlock{
				{Type: anthropic.BlockTypeDocument, Source: &anthropic.Source{MediaType: "application/pdf", Data: "Zm9v"}},
			}},
		},
	}
	out, err := ToBedrock(req, Options{DocumentSupportEnabled: false})
	require.NoError(t, err)
	require.Empty(t, out.Messages)
}
