// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package standalone

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

func TestIsStandaloneRequestDetectsBashTool(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: bashToolName}}}
	require.True(t, IsStandaloneRequest(req))
}

func TestIsStandaloneRequestFalseWithoutBashTool(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: "get_weather"}}}
	require.False(t, IsStandaloneRequest(req))
}

func TestIsStandaloneRequestYieldsToPTCWhenCodeExecutionCallerPresent(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{
		{Name: bashToolName},
		{Name: "search", AllowedCallers: []anthropic.CallerDescriptor{{Type: anthropic.CallerTypeCodeExecution}}},
	}}
	require.False(t, IsStandaloneRequest(req))
}

func TestFindBashCall(t *testing.T) {
	content := []anthropic.ContentBlock{
		{Type: anthropic.BlockTypeText, Text: "hi"},
		{Type: anthropic.BlockTypeToolUse, Name: bashToolName, ID: "toolu_1", Input: json.RawMessage(`{"command":"ls"}`)},
	}
	call, found := findBashCall(content)
	require.True(t, found)
	require.Equal(t, "toolu_1", call.ID)
}

func TestFindBashCallAbsent(t *testing.T) {
	_, found := findBashCall([]anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}})
	require.False(t, found)
}

func TestRewriteAsServerToolUse(t *testing.T) {
	content := []anthropic.ContentBlock{
		{Type: anthropic.BlockTypeToolUse, Name: bashToolName, ID: "toolu_1"},
		{Type: anthropic.BlockTypeText, Text: "hi"},
	}
	rewritten := rewriteAsServerToolUse(content)
	require.Equal(t, anthropic.BlockTypeServerToolUse, rewritten[0].Type)
	require.Equal(t, anthropic.BlockTypeText, rewritten[1].Type)
}

func TestBuildBashToolSchema(t *testing.T) {
	tool := buildBashTool()
	require.Equal(t, bashToolName, tool.Name)
	require.Contains(t, tool.InputSchema.Required, "command")
}

func TestBashResultBlockStructuredContent(t *testing.T) {
	block := bashResultBlock("toolu_1", "3\n", "", 0, false)
	require.Equal(t, anthropic.BlockTypeBashCodeExecutionToolResult, block.Type)
	require.False(t, block.IsError)

	var decoded struct {
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"return_code"`
	}
	require.NoError(t, json.Unmarshal(block.ServerContent, &decoded))
	require.Equal(t, "3\n", decoded.Stdout)
	require.Equal(t, 0, decoded.ReturnCode)
}
