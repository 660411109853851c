// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package bedrockapi adapts the Anthropic Messages wire shapes to and
// from the AWS Bedrock Converse API's native Go SDK types
// (github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types), which are
// themselves tagged unions expressed as Go interfaces with one "Member"
// implementation per variant.
package bedrockapi

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"
)

// Stop reason strings as returned by Converse/ConverseStream.
const (
	StopReasonEndTurn          = string(types.StopReasonEndTurn)
	StopReasonToolUse          = string(types.StopReasonToolUse)
	StopReasonMaxTokens        = string(types.StopReasonMaxTokens)
	StopReasonStopSequence     = string(types.StopReasonStopSequence)
	StopReasonGuardrail        = string(types.StopReasonGuardrailIntervened)
	StopReasonContentFiltered  = string(types.StopReasonContentFiltered)
)

// jsonDocument wraps an already-marshaled JSON payload so it can be
// handed to the smithy document.Interface fields the SDK uses for
// schema-less values (tool input/output, additionalModelRequestFields).
type jsonDocument struct {
	raw json.RawMessage
}

// NewRawDocument builds a smithy document.Interface from raw JSON bytes.
// Falls back to an empty object for nil/empty input, since Converse
// rejects a missing tool_use input field.
func NewRawDocument(raw json.RawMessage) document.Interface {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	return jsonDocument{raw: raw}
}

func (d jsonDocument) MarshalSmithyDocument() ([]byte, error) { return d.raw, nil }

func (d jsonDocument) UnmarshalSmithyDocument(v interface{}) error {
	return json.Unmarshal(d.raw, v)
}

// DocumentToRaw re-serializes a smithy document.Interface (as returned
// inside a tool_use ContentBlock from Bedrock) back to raw JSON.
func DocumentToRaw(d document.Interface) (json.RawMessage, error) {
	if d == nil {
		return json.RawMessage(`{}`), nil
	}
	var v interface{}
	if err := d.UnmarshalSmithyDocument(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// NewTextBlock builds a text content block.
func NewTextBlock(text string) types.ContentBlock {
	return &types.ContentBlockMemberText{Value: text}
}

// NewCachePointBlock builds a cachePoint marker block, inserted
// immediately after a cache-eligible block per the Converse prompt
// caching contract.
func NewCachePointBlock() types.ContentBlock {
	return &types.ContentBlockMemberCachePoint{Value: types.CachePointBlockTypeDefault}
}

// NewImageBlock builds an image content block from base64-decoded bytes.
func NewImageBlock(format string, bytes []byte) types.ContentBlock {
	return &types.ContentBlockMemberImage{
		Value: types.ImageBlock{
			Format: types.ImageFormat(format),
			Source: &types.ImageSourceMemberBytes{Value: bytes},
		},
	}
}

// NewDocumentBlock builds a document content block.
func NewDocumentBlock(name, format string, bytes []byte) types.ContentBlock {
	return &types.ContentBlockMemberDocument{
		Value: types.DocumentBlock{
			Name:   &name,
			Format: types.DocumentFormat(format),
			Source: &types.DocumentSourceMemberBytes{Value: bytes},
		},
	}
}

// NewToolUseBlock builds a toolUse content block.
func NewToolUseBlock(id, name string, input json.RawMessage) types.ContentBlock {
	return &types.ContentBlockMemberToolUse{
		Value: types.ToolUseBlock{
			ToolUseId: &id,
			Name:      &name,
			Input:     NewRawDocument(input),
		},
	}
}

// NewToolResultBlock builds a toolResult content block carrying plain text.
func NewToolResultBlock(toolUseID, text string, isError bool) types.ContentBlock {
	status := types.ToolResultStatusSuccess
	if isError {
		status = types.ToolResultStatusError
	}
	return &types.ContentBlockMemberToolResult{
		Value: types.ToolResultBlock{
			ToolUseId: &toolUseID,
			Status:    status,
			Content: []types.ToolResultContentBlock{
				&types.ToolResultContentBlockMemberText{Value: text},
			},
		},
	}
}

// NewSystemTextBlock builds a system prompt text block.
func NewSystemTextBlock(text string) types.SystemContentBlock {
	return &types.SystemContentBlockMemberText{Value: text}
}

// NewSystemCachePointBlock marks the preceding system block as cacheable.
func NewSystemCachePointBlock() types.SystemContentBlock {
	return &types.SystemContentBlockMemberCachePoint{Value: types.CachePointBlockTypeDefault}
}

// NewToolSpec builds a tool specification from an Anthropic-shaped
// JSON input schema.
func NewToolSpec(name, description string, inputSchema json.RawMessage) types.Tool {
	return &types.ToolMemberToolSpec{
		Value: types.ToolSpecification{
			Name:        &name,
			Description: &description,
			InputSchema: &types.ToolInputSchemaMemberJson{Value: NewRawDocument(inputSchema)},
		},
	}
}

// NewToolCachePoint marks the preceding tool definition as cacheable.
func NewToolCachePoint() types.Tool {
	return &types.ToolMemberCachePoint{Value: types.CachePointBlockTypeDefault}
}
