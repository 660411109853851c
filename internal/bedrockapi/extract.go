// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package bedrockapi

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BlockKind identifies which variant an extracted ContentBlock holds, so
// translation code can switch on a plain value instead of a type switch
// at every call site.
type BlockKind int

const (
	KindUnknown BlockKind = iota
	KindText
	KindReasoning
	KindToolUse
	KindToolResult
	KindImage
	KindDocument
)

// ExtractedBlock is the flattened form of a types.ContentBlock union
// member, convenient for building Anthropic content blocks from it.
type ExtractedBlock struct {
	Kind BlockKind

	Text string

	ReasoningText      string
	ReasoningSignature string
	RedactedReasoning   []byte

	ToolUseID    string
	ToolName     string
	ToolInput    json.RawMessage
	ToolResultID string
	ToolResultText string
	ToolResultErr  bool

	ImageFormat string
	ImageBytes  []byte
}

// Extract flattens a Converse response content block into an ExtractedBlock.
func Extract(b types.ContentBlock) ExtractedBlock {
	switch v := b.(type) {
	case *types.ContentBlockMemberText:
		return ExtractedBlock{Kind: KindText, Text: v.Value}
	case *types.ContentBlockMemberReasoningContent:
		return extractReasoning(v.Value)
	case *types.ContentBlockMemberToolUse:
		raw, _ := DocumentToRaw(v.Value.Input)
		return ExtractedBlock{
			Kind:      KindToolUse,
			ToolUseID: derefStr(v.Value.ToolUseId),
			ToolName:  derefStr(v.Value.Name),
			ToolInput: raw,
		}
	case *types.ContentBlockMemberImage:
		bytesSource, ok := v.Value.Source.(*types.ImageSourceMemberBytes)
		if !ok {
			return ExtractedBlock{Kind: KindUnknown}
		}
		return ExtractedBlock{
			Kind:        KindImage,
			ImageFormat: string(v.Value.Format),
			ImageBytes:  bytesSource.Value,
		}
	default:
		return ExtractedBlock{Kind: KindUnknown}
	}
}

func extractReasoning(rc types.ReasoningContentBlock) ExtractedBlock {
	switch v := rc.(type) {
	case *types.ReasoningContentBlockMemberReasoningText:
		return ExtractedBlock{
			Kind:               KindReasoning,
			ReasoningText:      derefStr(v.Value.Text),
			ReasoningSignature: derefStr(v.Value.Signature),
		}
	case *types.ReasoningContentBlockMemberRedactedContent:
		return ExtractedBlock{Kind: KindReasoning, RedactedReasoning: v.Value}
	default:
		return ExtractedBlock{Kind: KindUnknown}
	}
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StopReasonString converts the SDK's typed stop reason to a plain string.
func StopReasonString(r types.StopReason) string { return string(r) }

// ConvTokenUsage mirrors the Converse usage block in plain ints.
type ConvTokenUsage struct {
	InputTokens              int
	OutputTokens             int
	CacheReadInputTokens     int
	CacheWriteInputTokens    int
}

// ExtractUsage flattens a Converse TokenUsage into plain ints.
func ExtractUsage(u *types.TokenUsage) ConvTokenUsage {
	if u == nil {
		return ConvTokenUsage{}
	}
	out := ConvTokenUsage{}
	if u.InputTokens != nil {
		out.InputTokens = int(*u.InputTokens)
	}
	if u.OutputTokens != nil {
		out.OutputTokens = int(*u.OutputTokens)
	}
	if u.CacheReadInputTokens != nil {
		out.CacheReadInputTokens = int(*u.CacheReadInputTokens)
	}
	if u.CacheWriteInputTokens != nil {
		out.CacheWriteInputTokens = int(*u.CacheWriteInputTokens)
	}
	return out
}
