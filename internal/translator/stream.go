// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrockapi"
)

// StreamTranslator converts a sequence of Bedrock ConverseStream events
// into the corresponding Anthropic SSE events, synthesizing a
// content_block_start for every index Bedrock's stream skips (Bedrock
// only emits an explicit start event for tool_use blocks) and
// accumulating usage across the whole stream so the final message_delta
// carries merged input+output token counts (component C5).
type StreamTranslator struct {
	requestedModel string
	messageID      string

	seenIndices  map[int32]bool
	deltaIsReasoning map[int32]bool
	inputUsage   anthropic.Usage
}

// NewStreamTranslator builds a translator for one streaming response.
func NewStreamTranslator(requestedModel string) *StreamTranslator {
	return &StreamTranslator{
		requestedModel:   requestedModel,
		messageID:        "msg_" + uuid.NewString(),
		seenIndices:      make(map[int32]bool),
		deltaIsReasoning: make(map[int32]bool),
	}
}

// Event is a named Anthropic SSE event ready to be written to the wire.
type Event struct {
	Name string
	Data interface{}
}

// Start emits the initial message_start event ahead of any Bedrock
// stream events, since Anthropic's wire protocol expects it first.
func (t *StreamTranslator) Start() Event {
	return Event{
		Name: anthropic.EventMessageStart,
		Data: anthropic.MessageStartEvent{
			Type: "message_start",
			Message: anthropic.Response{
				ID:      t.messageID,
				Type:    "message",
				Role:    "assistant",
				Model:   t.requestedModel,
				Content: []anthropic.ContentBlock{},
			},
		},
	}
}

// Translate converts one Bedrock stream event into zero or more
// Anthropic SSE events.
func (t *StreamTranslator) Translate(out types.ConverseStreamOutput) ([]Event, error) {
	switch v := out.(type) {
	case *types.ConverseStreamOutputMemberContentBlockStart:
		return t.onBlockStart(v.Value)
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		return t.onBlockDelta(v.Value)
	case *types.ConverseStreamOutputMemberContentBlockStop:
		return []Event{{Name: anthropic.EventContentBlockStop, Data: anthropic.ContentBlockStopEvent{
			Type: "content_block_stop", Index: int(derefI32(v.Value.ContentBlockIndex)),
		}}}, nil
	case *types.ConverseStreamOutputMemberMessageStop:
		evt := anthropic.MessageDeltaEvent{Type: "message_delta"}
		evt.Delta.StopReason = mapStopReason(v.Value.StopReason)
		evt.Usage = t.inputUsage
		return []Event{
			{Name: anthropic.EventMessageDelta, Data: evt},
			{Name: anthropic.EventMessageStop, Data: anthropic.MessageStopEvent{Type: "message_stop"}},
		}, nil
	case *types.ConverseStreamOutputMemberMetadata:
		u := bedrockapi.ExtractUsage(v.Value.Usage)
		t.inputUsage.InputTokens = u.InputTokens
		t.inputUsage.OutputTokens = u.OutputTokens
		t.inputUsage.CacheReadInputTokens = u.CacheReadInputTokens
		t.inputUsage.CacheCreationInputTokens = u.CacheWriteInputTokens
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported converse stream event %T", out)
	}
}

func (t *StreamTranslator) onBlockStart(v types.ContentBlockStartEvent) ([]Event, error) {
	index := int(derefI32(v.ContentBlockIndex))
	t.seenIndices[int32(index)] = true

	switch start := v.Start.(type) {
	case *types.ContentBlockStartMemberToolUse:
		raw, _ := bedrockapi.DocumentToRaw(start.Value.Input)
		return []Event{{Name: anthropic.EventContentBlockStart, Data: anthropic.ContentBlockStartEvent{
			Type:  "content_block_start",
			Index: index,
			ContentBlock: anthropic.ContentBlock{
				Type:  anthropic.BlockTypeToolUse,
				ID:    derefStrPtr(start.Value.ToolUseId),
				Name:  derefStrPtr(start.Value.Name),
				Input: raw,
			},
		}}}, nil
	default:
		// Bedrock didn't send an explicit start for a text/reasoning
		// block; treat this as a still-unseen index so the first delta
		// synthesizes the block_start.
		delete(t.seenIndices, int32(index))
		return nil, nil
	}
}

func (t *StreamTranslator) onBlockDelta(v types.ContentBlockDeltaEvent) ([]Event, error) {
	index := int(derefI32(v.ContentBlockIndex))
	var events []Event

	isReasoning := false
	switch v.Delta.(type) {
	case *types.ContentBlockDeltaMemberReasoningContent:
		isReasoning = true
	}

	if !t.seenIndices[int32(index)] {
		t.seenIndices[int32(index)] = true
		blockType := anthropic.BlockTypeText
		if isReasoning {
			blockType = anthropic.BlockTypeThinking
		}
		events = append(events, Event{Name: anthropic.EventContentBlockStart, Data: anthropic.ContentBlockStartEvent{
			Type:         "content_block_start",
			Index:        index,
			ContentBlock: anthropic.ContentBlock{Type: blockType},
		}})
	}

	switch d := v.Delta.(type) {
	case *types.ContentBlockDeltaMemberText:
		events = append(events, Event{Name: anthropic.EventContentBlockDelta, Data: anthropic.ContentBlockDeltaEvent{
			Type: "content_block_delta", Index: index,
			Delta: anthropic.Delta{Type: "text_delta", Text: d.Value},
		}})
	case *types.ContentBlockDeltaMemberToolUse:
		events = append(events, Event{Name: anthropic.EventContentBlockDelta, Data: anthropic.ContentBlockDeltaEvent{
			Type: "content_block_delta", Index: index,
			Delta: anthropic.Delta{Type: "input_json_delta", PartialJSON: derefStrPtr(d.Value.Input)},
		}})
	case *types.ContentBlockDeltaMemberReasoningContent:
		switch rc := d.Value.(type) {
		case *types.ReasoningContentBlockDeltaMemberText:
			events = append(events, Event{Name: anthropic.EventContentBlockDelta, Data: anthropic.ContentBlockDeltaEvent{
				Type: "content_block_delta", Index: index,
				Delta: anthropic.Delta{Type: "thinking_delta", Thinking: rc.Value},
			}})
		case *types.ReasoningContentBlockDeltaMemberSignature:
			events = append(events, Event{Name: anthropic.EventContentBlockDelta, Data: anthropic.ContentBlockDeltaEvent{
				Type: "content_block_delta", Index: index,
				Delta: anthropic.Delta{Type: "signature_delta", Signature: rc.Value},
			}})
		}
	}
	return events, nil
}

func derefI32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func derefStrPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
