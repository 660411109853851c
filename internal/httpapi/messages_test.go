// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrock"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/config"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/modelmap"
)

type fakeRuntime struct {
	out *bedrockruntime.ConverseOutput
}

func (f *fakeRuntime) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, nil
}

func (f *fakeRuntime) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	fake := &fakeRuntime{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "hi there"},
			},
		}},
		StopReason: types.StopReasonEndTurn,
		Usage:      &types.TokenUsage{InputTokens: intPtr(10), OutputTokens: intPtr(5)},
	}}
	client := bedrock.NewWithClients(fake, nil, 30*time.Second, 30*time.Second)
	cfg := &config.Config{PTCEnabled: false}
	resolver := modelmap.NewResolver(nil)
	return New(cfg, resolver, client, nil, nil, nil, nil, zap.NewNop().Sugar())
}

func intPtr(n int32) *int32 { return &n }

func TestHandleMessagesDirect(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(anthropic.Request{
		Model:     "claude-haiku-4-5-20251001",
		Messages:  []anthropic.Message{{Role: "user", Content: []anthropic.ContentBlock{{Type: "text", Text: "hi"}}}},
		MaxTokens: 50,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp anthropic.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "assistant", resp.Role)
	require.Equal(t, "end_turn", resp.StopReason)
}

func TestHandleCountTokens(t *testing.T) {
	s := testServer(t)
	body, _ := json.Marshal(anthropic.Request{
		Model:     "claude-haiku-4-5-20251001",
		Messages:  []anthropic.Message{{Role: "user", Content: []anthropic.ContentBlock{{Type: "text", Text: "hello world"}}}},
		MaxTokens: 50,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Greater(t, out["input_tokens"], 0)
}

func TestHandleHealth(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyRequestRejectsMixedMode(t *testing.T) {
	req := &anthropic.Request{
		Tools: []anthropic.Tool{
			{Name: "execute_code", Type: "code_execution_20250522"},
		},
	}
	betas := map[string]bool{betaAdvancedToolUse: true, betaCodeExecution: true}
	_, err := classifyRequest(req, betas, true)
	require.Error(t, err)
}

func TestClassifyRequestDirect(t *testing.T) {
	req := &anthropic.Request{Tools: []anthropic.Tool{{Name: "get_weather"}}}
	mode, err := classifyRequest(req, map[string]bool{}, true)
	require.NoError(t, err)
	require.Equal(t, modeDirect, mode)
}
