// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one value yielded from an execution's event channel: exactly
// one of ToolCall, Batch, or Result is non-nil.
type Event struct {
	ToolCall *ToolCallRequest
	Batch    *BatchToolCallRequest
	Result   *ExecutionResult
	Err      error
}

// ToolResultValue is what the orchestrator sends back for one call_id.
type ToolResultValue struct {
	Result  interface{}
	IsError bool
}

// Execution is the Go stand-in for the Python reference's async
// generator: Events yields a ToolCall/Batch until the sandbox's code
// finishes, at which point it yields exactly one Result and closes.
// Inject resolves the most recently yielded ToolCall/Batch so the
// sandbox's code can resume.
type Execution struct {
	Events chan Event
	Inject chan map[string]ToolResultValue
}

// Execute sends code to a session's container and drives its IPC
// protocol: parsing tool-call markers as they arrive and yielding each
// one as a ToolCall event as soon as it is read (no batching window is
// applied), and finally parsing the framed output marker into an
// ExecutionResult. Runs on its own goroutine; the caller
// drives it via the returned Execution's channels.
func (s *Store) Execute(sessionID, code string) *Execution {
	exec := &Execution{
		Events: make(chan Event, 1),
		Inject: make(chan map[string]ToolResultValue),
	}
	go s.runExecution(sessionID, code, exec)
	return exec
}

func (s *Store) runExecution(sessionID, code string, exec *Execution) {
	defer close(exec.Events)

	session, _ := s.Get(sessionID)
	if session == nil {
		exec.Events <- Event{Err: errSessionGone}
		return
	}
	session.SetBusy(true)
	defer session.SetBusy(false)

	if err := s.SendCode(sessionID, code); err != nil {
		exec.Events <- Event{Err: err}
		return
	}

	started := time.Now()
	var pending []ToolCallRequest
	toolCallsSeen := 0

	for {
		line, err := s.ReadLine(sessionID)
		if err != nil {
			exec.Events <- Event{Err: err}
			return
		}

		if out, ok := parseFramed(line, markerOutputStart, markerOutputEnd); ok {
			result := parseExecutionResult(out, toolCallsSeen, time.Since(started))
			exec.Events <- Event{Result: &result}
			return
		}

		if call, ok := parseToolCall(line); ok {
			toolCallsSeen++
			pending = append(pending, call)
			more := s.collectWithinWindow(sessionID, &pending)
			_ = more

			var results map[string]ToolResultValue
			if len(pending) == 1 {
				exec.Events <- Event{ToolCall: &pending[0]}
				results = <-exec.Inject
			} else {
				batch := BatchToolCallRequest{Calls: append([]ToolCallRequest(nil), pending...)}
				exec.Events <- Event{Batch: &batch}
				results = <-exec.Inject
			}
			for _, call := range pending {
				val, ok := results[call.CallID]
				if !ok {
					val = ToolResultValue{Result: "missing tool result", IsError: true}
				}
				raw, _ := json.Marshal(map[string]interface{}{
					"call_id":  call.CallID,
					"result":   val.Result,
					"is_error": val.IsError,
				})
				if err := s.SendToolResult(sessionID, string(raw)); err != nil {
					exec.Events <- Event{Err: err}
					return
				}
			}
			pending = nil
		}
	}
}

// collectWithinWindow is the hook where further tool-call lines would
// be added to pending. It reads nothing, leaves pending unchanged and
// returns false, so every tool call is dispatched on its own and the
// configured batch window is not consulted.
func (s *Store) collectWithinWindow(sessionID string, pending *[]ToolCallRequest) bool {
	// The IPC reader above blocks per line and has no non-blocking poll,
	// so no additional lines are collected here.
	_ = sessionID
	_ = pending
	return false
}

func parseFramed(line, start, end string) (string, bool) {
	if !strings.Contains(line, start) || !strings.Contains(line, end) {
		return "", false
	}
	i := strings.Index(line, start) + len(start)
	j := strings.Index(line, end)
	if j < i {
		return "", false
	}
	return line[i:j], true
}

func parseToolCall(line string) (ToolCallRequest, bool) {
	payload, ok := parseFramed(line, markerToolCallStart, markerToolCallEnd)
	if !ok {
		return ToolCallRequest{}, false
	}
	var msg struct {
		CallID string          `json:"call_id"`
		Name   string          `json:"name"`
		Input  json.RawMessage `json:"input"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return ToolCallRequest{}, false
	}
	return ToolCallRequest{CallID: msg.CallID, Name: msg.Name, Input: msg.Input}, true
}

func parseExecutionResult(payload string, toolCallsCount int, elapsed time.Duration) ExecutionResult {
	var raw struct {
		Success    bool   `json:"success"`
		Stdout     string `json:"stdout"`
		Stderr     string `json:"stderr"`
		ReturnCode int    `json:"return_code"`
	}
	_ = json.Unmarshal([]byte(payload), &raw)
	return ExecutionResult{
		Success:         raw.Success,
		Stdout:          raw.Stdout,
		Stderr:          raw.Stderr,
		ReturnCode:      raw.ReturnCode,
		ToolCallsCount:  toolCallsCount,
		ExecutionTimeMS: elapsed.Milliseconds(),
	}
}
