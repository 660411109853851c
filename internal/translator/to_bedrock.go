// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package translator converts between the Anthropic Messages wire
// shapes and the AWS Bedrock Converse API, in both the request
// (component C3, Anthropic->Bedrock) and response (Bedrock->Anthropic)
// directions, plus the streaming event translator (component C5).
package translator

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrockapi"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/modelmap"
)

// Options carries the feature flags that influence translation but are
// not present on the request itself.
type Options struct {
	PromptCachingEnabled            bool
	FineGrainedToolStreamingEnabled bool
	InterleavedThinkingEnabled      bool
	ExtendedThinkingEnabled         bool
	DocumentSupportEnabled          bool
}

// ConverseRequest holds everything needed to call bedrockruntime's
// Converse/ConverseStream, already split into the SDK's own parameter
// shapes.
type ConverseRequest struct {
	ModelID            string
	Messages           []types.Message
	System             []types.SystemContentBlock
	InferenceConfig    *types.InferenceConfiguration
	ToolConfig         *types.ToolConfiguration
	AdditionalFields   json.RawMessage
	AnthropicBetaFlags []string
}

// ToBedrock converts an Anthropic Messages request into Converse
// parameters, following the cache-marker insertion, stop-sequence, and
// tool-definition rules of the original converter.
func ToBedrock(req *anthropic.Request, opts Options) (*ConverseRequest, error) {
	claude := modelmap.IsClaudeFamily(req.Model)
	cachingActive := opts.PromptCachingEnabled && claude

	messages, err := convertMessages(req.Messages, cachingActive, opts)
	if err != nil {
		return nil, err
	}

	systemBlocks, err := req.SystemBlocks()
	if err != nil {
		return nil, apierror.InvalidRequest("%s", err)
	}
	system := convertSystem(systemBlocks, cachingActive)

	out := &ConverseRequest{
		ModelID:  req.Model,
		Messages: messages,
		System:   system,
	}

	out.InferenceConfig = &types.InferenceConfiguration{
		MaxTokens: int32Ptr(int32(req.MaxTokens)),
	}
	if req.Temperature != nil {
		out.InferenceConfig.Temperature = float32Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		out.InferenceConfig.TopP = float32Ptr(float32(*req.TopP))
	}
	if len(req.StopSequences) > 0 {
		out.InferenceConfig.StopSequences = req.StopSequences
	}

	additional := map[string]interface{}{}
	if req.TopK != nil {
		additional["top_k"] = *req.TopK
	}
	if req.Thinking != nil {
		additional["thinking"] = map[string]interface{}{
			"type":          req.Thinking.Type,
			"budget_tokens": req.Thinking.BudgetTokens,
		}
	}

	var betas []string
	if opts.FineGrainedToolStreamingEnabled && claude {
		betas = append(betas, "fine-grained-tool-streaming-2025-05-14")
	}
	if opts.InterleavedThinkingEnabled && claude && req.Thinking != nil {
		betas = append(betas, "interleaved-thinking-2025-05-14")
	}
	if len(betas) > 0 {
		additional["anthropic_beta"] = betas
		out.AnthropicBetaFlags = betas
	}
	if len(additional) > 0 {
		raw, err := json.Marshal(additional)
		if err != nil {
			return nil, apierror.Internal("marshal additionalModelRequestFields: %s", err)
		}
		out.AdditionalFields = raw
	}

	if len(req.Tools) > 0 {
		toolChoice, err := req.ParseToolChoice()
		if err != nil {
			return nil, apierror.InvalidRequest("%s", err)
		}
		tc, err := convertTools(req.Tools, cachingActive, toolChoice)
		if err != nil {
			return nil, err
		}
		out.ToolConfig = tc
	}

	return out, nil
}

func convertMessages(msgs []anthropic.Message, cachingActive bool, opts Options) ([]types.Message, error) {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		blocks, err := convertContentBlocks(m.Content, cachingActive, opts)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}
		out = append(out, types.Message{
			Role:    types.ConversationRole(m.Role),
			Content: blocks,
		})
	}
	return out, nil
}

// convertContentBlocks converts one message's content blocks, inserting
// a cachePoint block immediately after any block whose cache_control is
// set (when caching is active for this model), and dropping every empty
// text block (Bedrock rejects empty text segments).
func convertContentBlocks(blocks []anthropic.ContentBlock, cachingActive bool, opts Options) ([]types.ContentBlock, error) {
	out := make([]types.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		var converted types.ContentBlock
		switch b.Type {
		case anthropic.BlockTypeText:
			if b.Text == "" {
				continue
			}
			converted = bedrockapi.NewTextBlock(b.Text)
		case anthropic.BlockTypeImage:
			if b.Source == nil {
				return nil, apierror.InvalidRequest("image block missing source")
			}
			data, err := decodeBase64(b.Source.Data)
			if err != nil {
				return nil, apierror.InvalidRequest("image source: %s", err)
			}
			converted = bedrockapi.NewImageBlock(imageFormat(b.Source.MediaType), data)
		case anthropic.BlockTypeDocument:
			if !opts.DocumentSupportEnabled {
				continue
			}
			if b.Source == nil {
				return nil, apierror.InvalidRequest("document block missing source")
			}
			data, err := decodeBase64(b.Source.Data)
			if err != nil {
				return nil, apierror.InvalidRequest("document source: %s", err)
			}
			converted = bedrockapi.NewDocumentBlock("document", documentFormat(b.Source.MediaType), data)
		case anthropic.BlockTypeThinking:
			if !opts.ExtendedThinkingEnabled {
				continue
			}
			// Converted to bracketed text, matching the original
			// converter: Bedrock's reasoningContent input shape does
			// not accept a bare prior thinking block on resubmission.
			converted = bedrockapi.NewTextBlock(fmt.Sprintf("[Thinking: %s]", b.Thinking))
		case anthropic.BlockTypeRedactedThinking:
			continue
		case anthropic.BlockTypeToolUse, anthropic.BlockTypeServerToolUse:
			converted = bedrockapi.NewToolUseBlock(b.ID, b.Name, b.Input)
		case anthropic.BlockTypeToolResult, anthropic.BlockTypeServerToolResult,
			anthropic.BlockTypeCodeExecutionToolResult, anthropic.BlockTypeBashCodeExecutionToolResult:
			text := toolResultText(b)
			converted = bedrockapi.NewToolResultBlock(b.ToolUseID, text, b.IsError)
		default:
			continue
		}
		out = append(out, converted)
		if cachingActive && b.CacheControl != nil {
			out = append(out, bedrockapi.NewCachePointBlock())
		}
	}
	return out, nil
}

func toolResultText(b anthropic.ContentBlock) string {
	if b.ToolResultText != "" {
		return b.ToolResultText
	}
	if len(b.ToolResultItems) > 0 {
		combined := ""
		for _, item := range b.ToolResultItems {
			if item.Type == anthropic.BlockTypeText {
				combined += item.Text
			}
		}
		return combined
	}
	if len(b.ServerContent) > 0 {
		var structured struct {
			Stdout string `json:"stdout"`
			Stderr string `json:"stderr"`
		}
		if err := json.Unmarshal(b.ServerContent, &structured); err == nil && (structured.Stdout != "" || structured.Stderr != "") {
			if structured.Stderr == "" {
				return structured.Stdout
			}
			return structured.Stdout + "\n" + structured.Stderr
		}
		return string(b.ServerContent)
	}
	return ""
}

func convertSystem(blocks []anthropic.ContentBlock, cachingActive bool) []types.SystemContentBlock {
	out := make([]types.SystemContentBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.Type != anthropic.BlockTypeText || b.Text == "" {
			continue
		}
		out = append(out, bedrockapi.NewSystemTextBlock(b.Text))
		if cachingActive && b.CacheControl != nil {
			out = append(out, bedrockapi.NewSystemCachePointBlock())
		}
	}
	return out
}

func convertTools(tools []anthropic.Tool, cachingActive bool, toolChoice *anthropic.ToolChoiceDescriptor) (*types.ToolConfiguration, error) {
	converted := make([]types.Tool, 0, len(tools))
	for _, t := range tools {
		schema := json.RawMessage(`{"type":"object"}`)
		if t.InputSchema != nil {
			raw, err := json.Marshal(t.InputSchema)
			if err != nil {
				return nil, apierror.Internal("marshal tool schema: %s", err)
			}
			schema = raw
		}
		converted = append(converted, bedrockapi.NewToolSpec(t.Name, t.Description, schema))
		if cachingActive && t.CacheControl != nil {
			converted = append(converted, bedrockapi.NewToolCachePoint())
		}
	}
	tc := &types.ToolConfiguration{Tools: converted}
	choice, err := convertToolChoice(toolChoice)
	if err != nil {
		return nil, err
	}
	tc.ToolChoice = choice
	return tc, nil
}

// convertToolChoice translates the Messages API's tool_choice directive
// into Bedrock's toolConfig.toolChoice union; a nil/absent directive
// leaves Bedrock's own default (auto) in place.
func convertToolChoice(choice *anthropic.ToolChoiceDescriptor) (types.ToolChoice, error) {
	if choice == nil {
		return nil, nil
	}
	switch choice.Type {
	case anthropic.ToolChoiceTypeAuto:
		return &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}}, nil
	case anthropic.ToolChoiceTypeAny:
		return &types.ToolChoiceMemberAny{Value: types.AnyToolChoice{}}, nil
	case anthropic.ToolChoiceTypeTool:
		if choice.Name == "" {
			return nil, apierror.InvalidRequest("tool_choice of type \"tool\" requires a name")
		}
		name := choice.Name
		return &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: &name}}, nil
	default:
		return nil, apierror.InvalidRequest("unsupported tool_choice type %q", choice.Type)
	}
}

func int32Ptr(v int32) *int32     { return &v }
func float32Ptr(v float32) *float32 { return &v }
