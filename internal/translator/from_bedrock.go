// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrockapi"
)

// stopReasonMap mirrors bedrock_to_anthropic.py's STOP_REASON_MAP.
var stopReasonMap = map[string]string{
	bedrockapi.StopReasonEndTurn:         "end_turn",
	bedrockapi.StopReasonToolUse:         "tool_use",
	bedrockapi.StopReasonMaxTokens:       "max_tokens",
	bedrockapi.StopReasonStopSequence:    "stop_sequence",
	bedrockapi.StopReasonGuardrail:       "end_turn",
	bedrockapi.StopReasonContentFiltered: "end_turn",
}

func mapStopReason(r types.StopReason) string {
	if mapped, ok := stopReasonMap[string(r)]; ok {
		return mapped
	}
	return "end_turn"
}

// FromBedrockOutput converts a complete Converse output message into an
// Anthropic Response, filtering empty text blocks that would otherwise
// precede a tool_use block.
func FromBedrockOutput(requestedModel string, msg *types.Message, stopReason types.StopReason, usage *types.TokenUsage, messageID string) *anthropic.Response {
	resp := &anthropic.Response{
		ID:         messageID,
		Type:       "message",
		Role:       "assistant",
		Model:      requestedModel,
		StopReason: mapStopReason(stopReason),
	}
	if msg != nil {
		resp.Content = convertOutputBlocks(msg.Content)
	}
	u := bedrockapi.ExtractUsage(usage)
	resp.Usage = anthropic.Usage{
		InputTokens:              u.InputTokens,
		OutputTokens:             u.OutputTokens,
		CacheReadInputTokens:     u.CacheReadInputTokens,
		CacheCreationInputTokens: u.CacheWriteInputTokens,
	}
	return resp
}

func convertOutputBlocks(blocks []types.ContentBlock) []anthropic.ContentBlock {
	out := make([]anthropic.ContentBlock, 0, len(blocks))
	for i, b := range blocks {
		extracted := bedrockapi.Extract(b)
		switch extracted.Kind {
		case bedrockapi.KindText:
			if extracted.Text == "" {
				// Drop empty text blocks, which Bedrock sometimes emits
				// immediately before a tool_use block.
				continue
			}
			out = append(out, anthropic.ContentBlock{Type: anthropic.BlockTypeText, Text: extracted.Text})
		case bedrockapi.KindReasoning:
			if extracted.RedactedReasoning != nil {
				out = append(out, anthropic.ContentBlock{
					Type: anthropic.BlockTypeRedactedThinking,
					Data: string(extracted.RedactedReasoning),
				})
				continue
			}
			out = append(out, anthropic.ContentBlock{
				Type:      anthropic.BlockTypeThinking,
				Thinking:  extracted.ReasoningText,
				Signature: extracted.ReasoningSignature,
			})
		case bedrockapi.KindToolUse:
			out = append(out, anthropic.ContentBlock{
				Type:  anthropic.BlockTypeToolUse,
				ID:    extracted.ToolUseID,
				Name:  extracted.ToolName,
				Input: extracted.ToolInput,
			})
		case bedrockapi.KindImage:
			out = append(out, anthropic.ContentBlock{
				Type: anthropic.BlockTypeImage,
				Source: &anthropic.Source{
					Type:      "base64",
					MediaType: imageMediaType(extracted.ImageFormat),
					Data:      base64.StdEncoding.EncodeToString(extracted.ImageBytes),
				},
			})
		default:
			_ = i
		}
	}
	return out
}
