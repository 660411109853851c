// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package ptc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/sandbox"
)

func TestBuildToolUseResponseEmitsServerToolUseOnce(t *testing.T) {
	pe := &pendingExecution{
		srvToolUseID:  "srvtoolu_1",
		code:          "print(1)",
		requestTmpl:   &anthropic.Request{Model: "claude"},
		codeToolUseID: "toolu_0",
	}
	svc := &Service{}

	first := svc.buildToolUseResponse(pe, "toolu_1", sandbox.ToolCallRequest{CallID: "c1", Name: "get_weather", Input: []byte(`{"city":"Paris"}`)})
	require.Len(t, first.Content, 2)
	require.Equal(t, anthropic.BlockTypeServerToolUse, first.Content[0].Type)
	require.Equal(t, "srvtoolu_1", first.Content[0].ID)
	require.Equal(t, anthropic.BlockTypeToolUse, first.Content[1].Type)
	require.NotNil(t, first.Content[1].Caller)
	require.Equal(t, anthropic.CallerTypeCodeExecution, first.Content[1].Caller.Type)
	require.Equal(t, "srvtoolu_1", first.Content[1].Caller.ToolID)

	second := svc.buildToolUseResponse(pe, "toolu_2", sandbox.ToolCallRequest{CallID: "c2", Name: "get_weather", Input: []byte(`{"city":"Berlin"}`)})
	require.Len(t, second.Content, 1, "server_tool_use must not be re-emitted on a later suspension of the same execution")
	require.Equal(t, anthropic.BlockTypeToolUse, second.Content[0].Type)
}

func TestBuildBatchToolUseResponseAnnotatesEveryCall(t *testing.T) {
	pe := &pendingExecution{
		srvToolUseID: "srvtoolu_2",
		code:         "print(1)",
		requestTmpl:  &anthropic.Request{Model: "claude"},
	}
	svc := &Service{}
	calls := []sandbox.ToolCallRequest{
		{CallID: "c1", Name: "tool_a"},
		{CallID: "c2", Name: "tool_b"},
	}
	resp := svc.buildBatchToolUseResponse(pe, map[string]string{"c1": "toolu_1", "c2": "toolu_2"}, calls)
	require.Len(t, resp.Content, 3)
	require.Equal(t, anthropic.BlockTypeServerToolUse, resp.Content[0].Type)
	for _, b := range resp.Content[1:] {
		require.Equal(t, anthropic.BlockTypeToolUse, b.Type)
		require.NotNil(t, b.Caller)
		require.Equal(t, "srvtoolu_2", b.Caller.ToolID)
	}
}

func TestToolResultValueBareString(t *testing.T) {
	block := anthropic.ContentBlock{ToolResultText: "18C"}
	require.Equal(t, "18C", toolResultValue(block))
}

func TestToolResultValueItemList(t *testing.T) {
	block := anthropic.ContentBlock{ToolResultItems: []anthropic.ToolResultContentItem{
		{Type: anthropic.BlockTypeText, Text: "18"},
		{Type: anthropic.BlockTypeText, Text: "C"},
	}}
	require.Equal(t, "18C", toolResultValue(block))
}

func TestAnnotateDirectCallersMarksToolUseOnly(t *testing.T) {
	content := []anthropic.ContentBlock{
		{Type: anthropic.BlockTypeText, Text: "hi"},
		{Type: anthropic.BlockTypeToolUse, ID: "toolu_1", Name: "search"},
	}
	annotated := AnnotateDirectCallers(content)
	require.Nil(t, annotated[0].Caller)
	require.NotNil(t, annotated[1].Caller)
	require.Equal(t, anthropic.CallerTypeDirect, annotated[1].Caller.Type)
}

func TestMustMarshalRoundTrips(t *testing.T) {
	raw := mustMarshal(map[string]string{"code": "print(1)"})
	var decoded struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "print(1)", decoded.Code)
}
