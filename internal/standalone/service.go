// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package standalone implements the simpler code-execution agent loop
// (component C9): unlike PTC, the model can only run bash commands, one
// server_tool_use turn per model turn, no caller tool invocation from
// inside the sandbox, and no suspend/resume across HTTP requests.
package standalone

import (
	"context"
	"encoding/json"
	"time"

	bedrockruntimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrock"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/sandbox"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

const bashToolName = "bash_code_execution"

// DefaultMaxIterations bounds the agent loop when the caller's config
// does not override it.
const DefaultMaxIterations = 25

// IsStandaloneRequest reports whether a request should run the
// standalone agent loop: a tool named bash_code_execution is present, but
// unlike PTC, no tool declares the code_execution caller type (that
// would route it to PTC instead — the two modes are mutually
// exclusive; a request naming both is rejected by the HTTP layer).
func IsStandaloneRequest(req *anthropic.Request) bool {
	sawBash := false
	for _, t := range req.Tools {
		if t.Name == bashToolName {
			sawBash = true
		}
		for _, c := range t.AllowedCallers {
			if c.Type == anthropic.CallerTypeCodeExecution || c.Type == anthropic.CallerTypeCodeExecutionBash {
				return false // PTC claims this request instead
			}
		}
	}
	return sawBash
}

// buildBashTool synthesizes the single tool definition enabled in
// standalone mode; a text-editor tool exists in the reference
// implementation but is declared disabled there too.
func buildBashTool() anthropic.Tool {
	return anthropic.Tool{
		Name:        bashToolName,
		Description: "Runs a bash command in a fresh sandbox and returns its output.",
		InputSchema: &anthropic.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"command": map[string]interface{}{"type": "string"},
				"restart": map[string]interface{}{"type": "boolean"},
			},
			Required: []string{"command"},
		},
	}
}

// Service runs the standalone agent loop.
type Service struct {
	sandbox         *sandbox.Store
	upstream        *bedrock.Client
	opts            translator.Options
	maxIterations   int
	containerTTL    time.Duration
}

// NewService builds a standalone code-execution orchestrator.
// containerTTL bounds the lifetime advertised on the synthetic container
// handle attached to each response (see §6); it has no bearing on the
// underlying one-shot containers, each of which is torn down as soon as
// its command finishes.
func NewService(sb *sandbox.Store, upstream *bedrock.Client, opts translator.Options, maxIterations int, containerTTL time.Duration) *Service {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if containerTTL <= 0 {
		containerTTL = sandbox.DefaultConfig().SessionTimeout
	}
	return &Service{sandbox: sb, upstream: upstream, opts: opts, maxIterations: maxIterations, containerTTL: containerTTL}
}

// HandleRequest runs the agent loop to completion: repeatedly calling
// Bedrock, executing any bash_code_execution call it requests in a
// fresh sandbox container, and feeding the result back, until the model
// stops calling tools or the iteration cap is hit.
func (s *Service) HandleRequest(ctx context.Context, req *anthropic.Request) (*anthropic.Response, error) {
	messages := append([]anthropic.Message{}, req.Messages...)
	var totalUsage anthropic.Usage
	var allContent []anthropic.ContentBlock
	var messageID, stopReason string
	container := &anthropic.ContainerInfo{ID: "container_" + uuid.NewString(), ExpiresAt: time.Now().Add(s.containerTTL)}

	for i := 0; i < s.maxIterations; i++ {
		turn := *req
		turn.Tools = []anthropic.Tool{buildBashTool()}
		turn.Messages = messages

		bedrockReq, err := translator.ToBedrock(&turn, s.opts)
		if err != nil {
			return nil, err
		}
		out, err := s.upstream.Invoke(ctx, bedrockReq)
		if err != nil {
			return nil, err
		}
		msg := outputMessage(out.Output)
		resp := translator.FromBedrockOutput(req.Model, msg, out.StopReason, out.Usage, "msg_"+uuid.NewString())
		totalUsage.InputTokens += resp.Usage.InputTokens
		totalUsage.OutputTokens += resp.Usage.OutputTokens
		messageID, stopReason = resp.ID, resp.StopReason

		bashCall, called := findBashCall(resp.Content)
		allContent = append(allContent, rewriteAsServerToolUse(resp.Content)...)
		if !called || stopReason != "tool_use" {
			break
		}

		if err := anthropic.ValidateToolInput(buildBashTool(), bashCall.Input); err != nil {
			return nil, apierror.InvalidRequest("%s", err)
		}
		var args struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal(bashCall.Input, &args)
		stdout, exitCode, err := s.sandbox.RunOneShot(ctx, args.Command)
		isError := err != nil || exitCode != 0
		stderr := ""
		if err != nil {
			exitCode = -1
			stderr = err.Error()
		}
		resultBlock := bashResultBlock(bashCall.ID, stdout, stderr, exitCode, isError)

		allContent = append(allContent, resultBlock)
		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: []anthropic.ContentBlock{bashCall}},
			anthropic.Message{Role: "user", Content: []anthropic.ContentBlock{resultBlock}},
		)
	}
	if stopReason == "tool_use" {
		return nil, apierror.New(apierror.KindAPIError, 500, "standalone code execution exceeded %d iterations", s.maxIterations)
	}

	return &anthropic.Response{
		ID:         messageID,
		Type:       "message",
		Role:       "assistant",
		Model:      req.Model,
		Content:    allContent,
		StopReason: stopReason,
		Usage:      totalUsage,
		Container:  container,
	}, nil
}

// bashResultBlock builds the structured bash_code_execution_tool_result
// block a client sees in the trace: {stdout, stderr, return_code}, the
// same shape the standalone runner itself returns per spec §4.8.
func bashResultBlock(toolUseID, stdout, stderr string, returnCode int, isError bool) anthropic.ContentBlock {
	content, _ := json.Marshal(struct {
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"return_code"`
	}{Stdout: stdout, Stderr: stderr, ReturnCode: returnCode})
	return anthropic.ContentBlock{
		Type:          anthropic.BlockTypeBashCodeExecutionToolResult,
		ToolUseID:     toolUseID,
		IsError:       isError,
		ServerContent: content,
	}
}

func findBashCall(content []anthropic.ContentBlock) (anthropic.ContentBlock, bool) {
	for _, b := range content {
		if b.Type == anthropic.BlockTypeToolUse && b.Name == bashToolName {
			return b, true
		}
	}
	return anthropic.ContentBlock{}, false
}

// rewriteAsServerToolUse relabels the model's tool_use blocks for
// bash_code_execution as server_tool_use: from the caller's perspective
// this was a server-mediated call it never has to resolve itself.
func rewriteAsServerToolUse(content []anthropic.ContentBlock) []anthropic.ContentBlock {
	out := make([]anthropic.ContentBlock, 0, len(content))
	for _, b := range content {
		if b.Type == anthropic.BlockTypeToolUse && b.Name == bashToolName {
			b.Type = anthropic.BlockTypeServerToolUse
		}
		out = append(out, b)
	}
	return out
}

func outputMessage(out bedrockruntimetypes.ConverseOutput) *bedrockruntimetypes.Message {
	if m, ok := out.(*bedrockruntimetypes.ConverseOutputMemberMessage); ok {
		return &m.Value
	}
	return nil
}
