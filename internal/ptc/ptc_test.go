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

func TestIsPTCRequestDetectsExecuteCodeTool(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: "execute_code"}}}
	require.True(t, IsPTCRequest(req))
}

func TestIsPTCRequestDetectsAllowedCaller(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{
		{Name: "search", AllowedCallers: []anthropic.CallerDescriptor{{Type: anthropic.CallerTypeCodeExecution}}},
	}}
	require.True(t, IsPTCRequest(req))
}

func TestIsPTCRequestFalseForOrdinaryTools(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: "get_weather"}}}
	require.False(t, IsPTCRequest(req))
}

func TestPrepareRequestInjectsExecuteCodeTool(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: "search"}}}
	prepared := PrepareRequest(req)
	require.Len(t, prepared.Tools, 2)
	require.Equal(t, executeCodeToolName, prepared.Tools[0].Name)
}

func TestPrepareRequestHidesCallableToolsBehindExecuteCode(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{
		{Type: "code_execution_20250522", Name: "code_execution"},
		{Name: "get_weather", Description: "Fetches current weather.", AllowedCallers: []anthropic.CallerDescriptor{{Type: anthropic.CallerTypeCodeExecution}}},
		{Name: "search"},
	}}
	prepared := PrepareRequest(req)
	require.Len(t, prepared.Tools, 2)
	require.Equal(t, executeCodeToolName, prepared.Tools[0].Name)
	require.Contains(t, prepared.Tools[0].Description, "get_weather")
	require.Equal(t, "search", prepared.Tools[1].Name)
}

func TestFindExecuteCodeCall(t *testing.T) {
	content := []anthropic.ContentBlock{
		{Type: anthropic.BlockTypeText, Text: "thinking"},
		{Type: anthropic.BlockTypeToolUse, Name: "execute_code", ID: "toolu_1"},
	}
	block, found := FindExecuteCodeCall(content)
	require.True(t, found)
	require.Equal(t, "toolu_1", block.ID)
}

func TestFindExecuteCodeCallAbsent(t *testing.T) {
	_, found := FindExecuteCodeCall([]anthropic.ContentBlock{{Type: anthropic.BlockTypeText, Text: "hi"}})
	require.False(t, found)
}
