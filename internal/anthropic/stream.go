// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package anthropic

// SSE event names emitted on the Messages API streaming surface.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta carries the incremental fields of a content_block_delta event.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

// MessageStartEvent opens a stream; Usage is typically input-only at
// this point, with output tokens following in message_delta.
type MessageStartEvent struct {
	Type    string  `json:"type"`
	Message Response `json:"message"`
}

// ContentBlockStartEvent opens a content block at a given index. Bedrock
// only emits an explicit "start" for tool_use blocks; text and thinking
// block starts are synthesized by the stream translator (spec §4.3/§9).
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaEvent carries one incremental update to a content block.
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

// ContentBlockStopEvent closes a content block.
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// MessageDeltaEvent carries the terminal stop_reason/usage update.
type MessageDeltaEvent struct {
	Type  string `json:"type"`
	Delta struct {
		StopReason   string `json:"stop_reason,omitempty"`
		StopSequence string `json:"stop_sequence,omitempty"`
	} `json:"delta"`
	Usage Usage `json:"usage"`
}

// MessageStopEvent closes the stream.
type MessageStopEvent struct {
	Type string `json:"type"`
}
