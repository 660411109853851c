// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package ptc implements Programmatic Tool Calling (component C8): a
// model writes Python that calls the caller's tools directly, run to
// completion inside a long-lived sandbox session that suspends across
// HTTP requests while individual tool calls are resolved.
package ptc

import (
	"encoding/json"
	"strings"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

const executeCodeToolName = "execute_code"

// systemPromptFragment is appended to every PTC request's system prompt,
// instructing the model to front-load work per execute_code call (the
// sandbox holds no state between calls other than what the code itself
// durably establishes) and to prefer dispatching independent tool calls
// in parallel rather than one at a time.
const systemPromptFragment = `
You can write and execute Python code using the execute_code tool. Code
runs in a fresh, isolated sandbox for each conversation; within a single
execute_code call you may call any of your other tools directly as
async functions and await their results.

Do as much work as possible within a single execute_code call: each call
is stateless with respect to the ones before it except for whatever the
container's filesystem or process memory still holds, so prefer writing
one larger program over many small round trips.

When you need results from more than one independent tool call, dispatch
them concurrently instead of sequentially:

BAD (slow, sequential):
    a = await tool_one(x)
    b = await tool_two(y)

GOOD (fast, parallel):
    a, b = await asyncio.gather(tool_one(x), tool_two(y))
`

// IsPTCRequest reports whether a request should be handled via
// Programmatic Tool Calling: the execute_code tool is present, or any
// tool's allowed_callers names a code_execution caller type.
func IsPTCRequest(req *anthropic.Request) bool {
	for _, t := range req.Tools {
		if t.Name == executeCodeToolName {
			return true
		}
		for _, c := range t.AllowedCallers {
			if c.Type == anthropic.CallerTypeCodeExecution {
				return true
			}
		}
	}
	return false
}

// isPTCCallableTool reports whether a tool is callable only from inside
// the sandbox (it names a code_execution caller in allowed_callers), as
// opposed to the execute_code sentinel itself or a plain direct tool.
func isPTCCallableTool(t anthropic.Tool) bool {
	for _, c := range t.AllowedCallers {
		if c.Type == anthropic.CallerTypeCodeExecution || c.Type == anthropic.CallerTypeCodeExecutionBash {
			return true
		}
	}
	return false
}

// buildExecuteCodeTool synthesizes the execute_code tool definition
// injected ahead of the caller's own tools. callable lists the tools the
// sandbox may call directly as async functions; it is unavailable
// model-side except through execute_code, so its members are enumerated
// in the description rather than left in the top-level tool list.
func buildExecuteCodeTool(callable []anthropic.Tool) anthropic.Tool {
	schema := &anthropic.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Python code to execute in the sandbox.",
			},
		},
		Required: []string{"code"},
	}
	desc := "Executes Python code in a stateful sandbox and returns its stdout/stderr."
	if len(callable) > 0 {
		var names []string
		for _, t := range callable {
			entry := t.Name
			if t.Description != "" {
				entry += ": " + t.Description
			}
			names = append(names, entry)
		}
		desc += " The following functions are available as awaitable async calls from within the sandbox: " +
			strings.Join(names, "; ") + "."
	}
	return anthropic.Tool{
		Name:        executeCodeToolName,
		Description: desc,
		InputSchema: schema,
	}
}

// PrepareRequest builds the Bedrock-bound request for a PTC turn: it
// replaces the code_execution sentinel and every sandbox-only callable
// tool with a single execute_code tool (enumerating those callables in
// its description instead of leaving them directly invokable), and
// appends the stateless-between-calls system prompt fragment. Tools with
// no allowed_callers restriction remain directly callable as before.
func PrepareRequest(req *anthropic.Request) *anthropic.Request {
	out := *req

	var direct, callable []anthropic.Tool
	for _, t := range req.Tools {
		switch {
		case strings.HasPrefix(t.Type, "code_execution") || t.Name == executeCodeToolName:
			continue
		case isPTCCallableTool(t):
			callable = append(callable, t)
		default:
			direct = append(direct, t)
		}
	}
	out.Tools = append([]anthropic.Tool{buildExecuteCodeTool(callable)}, direct...)

	blocks, _ := req.SystemBlocks()
	blocks = append(blocks, anthropic.ContentBlock{Type: anthropic.BlockTypeText, Text: systemPromptFragment})
	raw, _ := json.Marshal(blocks)
	out.System = raw
	return &out
}

// FindExecuteCodeCall returns the execute_code tool_use block in a
// response's content, if the model called it.
func FindExecuteCodeCall(content []anthropic.ContentBlock) (anthropic.ContentBlock, bool) {
	for _, b := range content {
		if b.Type == anthropic.BlockTypeToolUse && b.Name == executeCodeToolName {
			return b, true
		}
	}
	return anthropic.ContentBlock{}, false
}
