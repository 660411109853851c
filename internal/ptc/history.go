// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package ptc

import "github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"

// FilterNonDirectToolCalls strips server_tool_use blocks and any
// tool_use/tool_result pair whose caller was not "direct" before the
// history is sent upstream again: the sandbox's internal tool
// invocations must never leak into a continuation call, since the
// upstream model never issued them as part of its own turn. Two
// passes: first collect the ids to drop, then rebuild the message list,
// dropping any message left with empty content.
func FilterNonDirectToolCalls(messages []anthropic.Message, nonDirectToolUseIDs map[string]bool) []anthropic.Message {
	drop := make(map[string]bool, len(nonDirectToolUseIDs))
	for id := range nonDirectToolUseIDs {
		drop[id] = true
	}
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type == anthropic.BlockTypeServerToolUse {
				drop[b.ID] = true
			}
		}
	}

	out := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		kept := make([]anthropic.ContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case anthropic.BlockTypeServerToolUse, anthropic.BlockTypeServerToolResult,
				anthropic.BlockTypeCodeExecutionToolResult, anthropic.BlockTypeBashCodeExecutionToolResult:
				continue
			case anthropic.BlockTypeToolUse:
				if drop[b.ID] {
					continue
				}
			case anthropic.BlockTypeToolResult:
				if drop[b.ToolUseID] {
					continue
				}
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, anthropic.Message{Role: m.Role, Content: kept})
	}
	return out
}

// AddDirectCallerAnnotation marks a tool_use block as called by the
// model directly rather than by the sandbox: once PTC is in effect,
// every tool_use block the proxy emits must carry a non-null caller.
func AddDirectCallerAnnotation(block anthropic.ContentBlock) anthropic.ContentBlock {
	if block.Type == anthropic.BlockTypeToolUse {
		block.Caller = &anthropic.CallerDescriptor{Type: anthropic.CallerTypeDirect}
	}
	return block
}

// AnnotateDirectCallers applies AddDirectCallerAnnotation to every
// tool_use block in a response's content, in place.
func AnnotateDirectCallers(content []anthropic.ContentBlock) []anthropic.ContentBlock {
	for i, b := range content {
		content[i] = AddDirectCallerAnnotation(b)
	}
	return content
}
