// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package anthropic holds the wire types of the Anthropic Messages API
// surface that this proxy exposes to callers.
package anthropic

import (
	"encoding/json"
	"fmt"
	"time"
)

// Block type discriminants, mirrored from the Messages API "type" field.
const (
	BlockTypeText               = "text"
	BlockTypeImage               = "image"
	BlockTypeDocument             = "document"
	BlockTypeThinking             = "thinking"
	BlockTypeRedactedThinking        = "redacted_thinking"
	BlockTypeToolUse             = "tool_use"
	BlockTypeToolResult            = "tool_result"
	BlockTypeServerToolUse          = "server_tool_use"
	BlockTypeServerToolResult        = "server_tool_result"
	BlockTypeCodeExecutionToolResult     = "code_execution_tool_result"
	BlockTypeBashCodeExecutionToolResult = "bash_code_execution_tool_result"
)

// CacheControl marks a content block or tool definition as cacheable.
type CacheControl struct {
	Type string `json:"type"`
}

// Source is the payload of an image or document block.
type Source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// ToolResultContentItem is a restricted content item allowed inside a
// tool_result block: only text and image variants are valid there.
type ToolResultContentItem struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// ContentBlock is a tagged union over every Messages API content block
// kind. A single struct with omitempty fields is used instead of an
// interface hierarchy: it unmarshals directly from the wire, re-marshals
// losslessly, and is trivial to inspect by Type in translation code.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image / document
	Source *Source `json:"source,omitempty"`

	// thinking / redacted_thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`

	// tool_use / server_tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result / server_tool_result / *_tool_result variants
	ToolUseID string `json:"tool_use_id,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	// Content for a tool_result may be a bare string or a list of
	// ToolResultContentItem; ToolResultText/ToolResultItems capture
	// whichever shape was present after unmarshaling.
	ToolResultText  string                   `json:"-"`
	ToolResultItems []ToolResultContentItem  `json:"-"`

	// server_tool_result / code_execution_tool_result content: opaque
	// structured content produced by the proxy itself (e.g. stdout,
	// stderr, return_code) rather than by the upstream model.
	ServerContent json.RawMessage `json:"content,omitempty"`

	// Caller records who invoked a tool_use block once PTC is in
	// effect: the model directly, or the code-execution sandbox on the
	// model's behalf. Nil outside PTC mode.
	Caller *CallerDescriptor `json:"caller,omitempty"`

	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// rawContentBlock mirrors ContentBlock but leaves "content" untyped so
// UnmarshalJSON can sniff its shape before deciding how to populate
// ToolResultText/ToolResultItems.
type rawContentBlock struct {
	ContentBlock
	Content json.RawMessage `json:"content,omitempty"`
}

// UnmarshalJSON implements the tool_result "content: string | []item" fork.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw rawContentBlock
	type alias ContentBlock // avoid infinite recursion through embedding
	if err := json.Unmarshal(data, (*alias)(&raw.ContentBlock)); err != nil {
		return err
	}
	var withContent struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &withContent); err != nil {
		return err
	}
	*b = raw.ContentBlock
	b.ServerContent = nil
	if len(withContent.Content) == 0 {
		return nil
	}
	if b.Type == BlockTypeServerToolResult || b.Type == BlockTypeCodeExecutionToolResult ||
		b.Type == BlockTypeBashCodeExecutionToolResult {
		b.ServerContent = withContent.Content
		return nil
	}
	var asString string
	if err := json.Unmarshal(withContent.Content, &asString); err == nil {
		b.ToolResultText = asString
		return nil
	}
	var asItems []ToolResultContentItem
	if err := json.Unmarshal(withContent.Content, &asItems); err != nil {
		return fmt.Errorf("tool_result content must be a string or an item list: %w", err)
	}
	for _, item := range asItems {
		if item.Type != "text" && item.Type != "image" {
			return fmt.Errorf("tool_result content item type %q is not allowed (only text and image)", item.Type)
		}
	}
	b.ToolResultItems = asItems
	return nil
}

// MarshalJSON re-attaches whichever content shape was captured at parse
// time, or was set programmatically by translation code.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	type alias ContentBlock
	out := struct {
		alias
		Content interface{} `json:"content,omitempty"`
	}{alias: alias(b)}

	switch {
	case b.ServerContent != nil:
		out.Content = b.ServerContent
	case len(b.ToolResultItems) > 0:
		out.Content = b.ToolResultItems
	case b.ToolResultText != "":
		out.Content = b.ToolResultText
	}
	return json.Marshal(out)
}

// Message is a single turn in a conversation.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON normalizes a bare-string content field to a single text block.
func (m *Message) UnmarshalJSON(data []byte) error {
	var probe struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	m.Role = probe.Role
	if len(probe.Content) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(probe.Content, &asString); err == nil {
		m.Content = []ContentBlock{{Type: BlockTypeText, Text: asString}}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(probe.Content, &blocks); err != nil {
		return fmt.Errorf("message content must be a string or block list: %w", err)
	}
	m.Content = blocks
	return nil
}

// ToolInputSchema is the JSON schema describing a tool's input shape.
type ToolInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// CallerDescriptor records who may invoke a tool: the model acting
// directly, or the proxy's own code-execution sandbox on the model's
// behalf. See spec §3 "Caller descriptor".
type CallerDescriptor struct {
	Type  string `json:"type"`
	ToolID string `json:"tool_id,omitempty"`
}

const (
	CallerTypeDirect              = "direct"
	CallerTypeCodeExecution          = "code_execution_20250522"
	CallerTypeCodeExecutionBash        = "code_execution_bash_20250522"
)

// Tool is a tool definition as supplied by the caller.
type Tool struct {
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	InputSchema    *ToolInputSchema  `json:"input_schema,omitempty"`
	Type           string            `json:"type,omitempty"`
	AllowedCallers []CallerDescriptor `json:"allowed_callers,omitempty"`
	CacheControl   *CacheControl     `json:"cache_control,omitempty"`
}

// Thinking configures extended-thinking mode.
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Request is the body of POST /v1/messages.
type Request struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        json.RawMessage `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    json.RawMessage `json:"tool_choice,omitempty"`
	Thinking      *Thinking       `json:"thinking,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// SystemBlocks normalizes the request's System field, which may be a
// bare string or a list of {type:"text",...} blocks.
func (r *Request) SystemBlocks() ([]ContentBlock, error) {
	if len(r.System) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(r.System, &asString); err == nil {
		if asString == "" {
			return nil, nil
		}
		return []ContentBlock{{Type: BlockTypeText, Text: asString}}, nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(r.System, &blocks); err != nil {
		return nil, fmt.Errorf("system must be a string or block list: %w", err)
	}
	return blocks, nil
}

// ToolChoiceDescriptor is the parsed form of Request.ToolChoice: either a
// bare "auto"/"any" directive, or a forced call naming one tool.
type ToolChoiceDescriptor struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const (
	ToolChoiceTypeAuto = "auto"
	ToolChoiceTypeAny  = "any"
	ToolChoiceTypeTool = "tool"
)

// ParseToolChoice normalizes tool_choice, which the wire format allows as
// either a bare string ("auto"/"any") or a {"type":"tool","name":"..."}
// object, returning nil when the field is absent.
func (r *Request) ParseToolChoice() (*ToolChoiceDescriptor, error) {
	if len(r.ToolChoice) == 0 {
		return nil, nil
	}
	var asString string
	if err := json.Unmarshal(r.ToolChoice, &asString); err == nil {
		return &ToolChoiceDescriptor{Type: asString}, nil
	}
	var desc ToolChoiceDescriptor
	if err := json.Unmarshal(r.ToolChoice, &desc); err != nil {
		return nil, fmt.Errorf("tool_choice must be a string or an object: %w", err)
	}
	return &desc, nil
}

// Usage reports token consumption for a request or a stream.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// ContainerInfo describes the sandbox container backing a PTC or
// standalone response, per §6's "container: {id, expires_at}" contract.
type ContainerInfo struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Response is a complete (non-streaming) Messages API response.
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
	Container    *ContainerInfo `json:"container,omitempty"`
}

// ErrorBody is the shape of every error response this proxy returns.
type ErrorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
