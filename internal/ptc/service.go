// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package ptc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrock"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/sandbox"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

// pendingExecution is the suspended state of one in-flight sandbox run,
// kept in memory between the HTTP request that started it and the
// continuation request(s) that resolve its tool calls.
type pendingExecution struct {
	sessionID     string
	exec          *sandbox.Execution
	callIDToToolU map[string]string // sandbox call_id -> toolu_* id shown to the caller
	toolUToCallID map[string]string
	requestTmpl   *anthropic.Request // original request (model, tools, sampling params) minus messages
	history       []anthropic.Message
	codeToolUseID string
	code          string

	// srvToolUseID is this execution's synthetic server_tool_use id
	// (srvtoolu_*), stable across every suspend/resume round trip of a
	// single execute_code call: the server_tool_use block is only
	// emitted once, on the first suspension, per spec §4.7.
	srvToolUseID    string
	srvToolUseShown bool
}

// Service orchestrates Programmatic Tool Calling end to end.
type Service struct {
	sessions *sandbox.Store
	upstream *bedrock.Client
	opts     translator.Options
	log      *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*pendingExecution
}

// NewService builds a PTC orchestrator.
func NewService(sessions *sandbox.Store, upstream *bedrock.Client, opts translator.Options, log *zap.SugaredLogger) *Service {
	return &Service{
		sessions: sessions,
		upstream: upstream,
		opts:     opts,
		log:      log,
		pending:  make(map[string]*pendingExecution),
	}
}

// ToolUseResponse wraps a content block list ready to be returned to
// the caller, plus the session id it should be echoed back on a
// continuation request (as the X-Container-ID header).
type ToolUseResponse struct {
	Response  *anthropic.Response
	SessionID string
}

// HandleRequest drives one PTC turn to its first suspension point: it
// calls Bedrock, and if the model invoked execute_code, runs the code in
// a (possibly reused) sandbox session until either a tool call needs
// resolving or the code finishes.
func (s *Service) HandleRequest(ctx context.Context, req *anthropic.Request, existingSessionID string) (*ToolUseResponse, error) {
	prepared := PrepareRequest(req)
	bedrockReq, err := translator.ToBedrock(prepared, s.opts)
	if err != nil {
		return nil, err
	}

	out, err := s.upstream.Invoke(ctx, bedrockReq)
	if err != nil {
		return nil, err
	}
	msgOutput := outputMessage(out.Output)
	resp := translator.FromBedrockOutput(req.Model, msgOutput, out.StopReason, out.Usage, "msg_"+uuid.NewString())

	execBlock, called := FindExecuteCodeCall(resp.Content)
	if !called {
		resp.Content = AnnotateDirectCallers(resp.Content)
		return &ToolUseResponse{Response: resp}, nil
	}

	if err := anthropic.ValidateToolInput(buildExecuteCodeTool(nil), execBlock.Input); err != nil {
		return nil, apierror.InvalidRequest("%s", err)
	}
	var codeArg struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(execBlock.Input, &codeArg)

	sessionID, err := s.getOrCreateSession(ctx, existingSessionID)
	if err != nil {
		return nil, err
	}

	reqTmpl := *req
	reqTmpl.Messages = nil
	history := append(append([]anthropic.Message{}, req.Messages...), anthropic.Message{
		Role:    "assistant",
		Content: []anthropic.ContentBlock{execBlock},
	})

	return s.drive(ctx, sessionID, codeArg.Code, execBlock.ID, &reqTmpl, history)
}

// drive starts or resumes a sandbox execution and converts its first
// yielded event into an HTTP-facing response.
func (s *Service) drive(ctx context.Context, sessionID, code, codeToolUseID string, reqTmpl *anthropic.Request, history []anthropic.Message) (*ToolUseResponse, error) {
	exec := s.sessions.Execute(sessionID, code)
	pe := &pendingExecution{
		sessionID:     sessionID,
		exec:          exec,
		callIDToToolU: make(map[string]string),
		toolUToCallID: make(map[string]string),
		requestTmpl:   reqTmpl,
		history:       history,
		codeToolUseID: codeToolUseID,
		code:          code,
		srvToolUseID:  "srvtoolu_" + uuid.NewString(),
	}
	s.mu.Lock()
	s.pending[sessionID] = pe
	s.mu.Unlock()

	return s.advance(ctx, pe)
}

// advance blocks for the next event out of a pending execution and
// turns it into either a tool_use response (suspending again) or the
// final synthesized response.
func (s *Service) advance(ctx context.Context, pe *pendingExecution) (*ToolUseResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-pe.exec.Events:
		if !ok {
			return nil, apierror.Internal("sandbox execution ended without a result")
		}
		if ev.Err != nil {
			return nil, apierror.Internal("sandbox execution failed: %s", ev.Err)
		}
		switch {
		case ev.ToolCall != nil:
			toolU := "toolu_" + uuid.NewString()
			pe.callIDToToolU[ev.ToolCall.CallID] = toolU
			pe.toolUToCallID[toolU] = ev.ToolCall.CallID
			return &ToolUseResponse{
				Response:  s.buildToolUseResponse(pe, toolU, *ev.ToolCall),
				SessionID: pe.sessionID,
			}, nil
		case ev.Batch != nil:
			toolUByCall := make(map[string]string, len(ev.Batch.Calls))
			for _, c := range ev.Batch.Calls {
				toolU := "toolu_" + uuid.NewString()
				pe.callIDToToolU[c.CallID] = toolU
				pe.toolUToCallID[toolU] = c.CallID
				toolUByCall[c.CallID] = toolU
			}
			return &ToolUseResponse{
				Response:  s.buildBatchToolUseResponse(pe, toolUByCall, ev.Batch.Calls),
				SessionID: pe.sessionID,
			}, nil
		case ev.Result != nil:
			return s.finalizeCodeExecution(ctx, pe, *ev.Result)
		default:
			return nil, apierror.Internal("sandbox execution yielded an empty event")
		}
	}
}

// ResumeWithToolResults resolves one or more pending tool calls
// (identified by the toolu_* ids the caller echoes back) and advances
// the execution to its next suspension point.
func (s *Service) ResumeWithToolResults(ctx context.Context, sessionID string, results map[string]anthropic.ContentBlock) (*ToolUseResponse, error) {
	s.mu.Lock()
	pe, ok := s.pending[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, apierror.InvalidRequest("no pending execution for session %s", sessionID)
	}

	injected := make(map[string]sandbox.ToolResultValue, len(results))
	for toolU, block := range results {
		callID, ok := pe.toolUToCallID[toolU]
		if !ok {
			continue
		}
		injected[callID] = sandbox.ToolResultValue{
			Result:  toolResultValue(block),
			IsError: block.IsError,
		}
	}
	pe.exec.Inject <- injected
	return s.advance(ctx, pe)
}

// toolResultValue extracts the text the sandbox coroutine waiting on
// this tool call should see, handling both the bare-string and
// item-list tool_result content shapes (the latter by concatenating its
// text items, matching to_bedrock.go's toolResultText).
func toolResultValue(b anthropic.ContentBlock) interface{} {
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
	return ""
}

// finalizeCodeExecution appends the code-execution's result as a
// synthetic tool_use/tool_result turn to the (history-filtered)
// conversation and calls Bedrock again automatically: the caller never
// sees execute_code's own request/response pair, only the model's next
// turn. If that next turn calls execute_code again, this recurses back
// into the sandbox; otherwise the model's direct response is returned.
func (s *Service) finalizeCodeExecution(ctx context.Context, pe *pendingExecution, result sandbox.ExecutionResult) (*ToolUseResponse, error) {
	s.mu.Lock()
	delete(s.pending, pe.sessionID)
	s.mu.Unlock()

	stdout := result.Stdout
	if stdout == "" && result.Success {
		stdout = "(Code executed successfully with no output)"
	}
	toolResultText := stdout
	if !result.Success {
		toolResultText = "Error: " + result.Stderr
	}

	filtered := FilterNonDirectToolCalls(pe.history, nil)
	continuation := append(filtered,
		anthropic.Message{Role: "assistant", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolUse, ID: pe.codeToolUseID, Name: executeCodeToolName, Input: mustMarshal(map[string]string{"code": pe.code})},
		}},
		anthropic.Message{Role: "user", Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockTypeToolResult, ToolUseID: pe.codeToolUseID, ToolResultText: toolResultText, IsError: !result.Success},
		}},
	)

	nextReq := *pe.requestTmpl
	nextReq.Messages = continuation

	next, err := s.HandleRequest(ctx, &nextReq, pe.sessionID)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// callerDescriptor builds the code_execution caller annotation every
// sandbox-originated tool_use block carries, pointing back at this
// execution's server_tool_use id.
func (pe *pendingExecution) callerDescriptor() *anthropic.CallerDescriptor {
	return &anthropic.CallerDescriptor{Type: anthropic.CallerTypeCodeExecution, ToolID: pe.srvToolUseID}
}

// leadingServerToolUse returns the execute_code server_tool_use block to
// prepend to this suspension's response, or nil if it was already shown
// on an earlier suspension of the same execution: per spec §4.7, a
// continuation that re-suspends must not re-emit it.
func (pe *pendingExecution) leadingServerToolUse() []anthropic.ContentBlock {
	if pe.srvToolUseShown {
		return nil
	}
	pe.srvToolUseShown = true
	return []anthropic.ContentBlock{{
		Type:  anthropic.BlockTypeServerToolUse,
		ID:    pe.srvToolUseID,
		Name:  executeCodeToolName,
		Input: mustMarshal(map[string]string{"code": pe.code}),
	}}
}

func (s *Service) buildToolUseResponse(pe *pendingExecution, toolU string, call sandbox.ToolCallRequest) *anthropic.Response {
	content := pe.leadingServerToolUse()
	content = append(content, anthropic.ContentBlock{
		Type: anthropic.BlockTypeToolUse, ID: toolU, Name: call.Name, Input: call.Input, Caller: pe.callerDescriptor(),
	})
	return &anthropic.Response{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      pe.requestTmpl.Model,
		StopReason: "tool_use",
		Content:    content,
	}
}

func (s *Service) buildBatchToolUseResponse(pe *pendingExecution, toolUByCall map[string]string, calls []sandbox.ToolCallRequest) *anthropic.Response {
	content := pe.leadingServerToolUse()
	for _, c := range calls {
		content = append(content, anthropic.ContentBlock{
			Type: anthropic.BlockTypeToolUse, ID: toolUByCall[c.CallID], Name: c.Name, Input: c.Input, Caller: pe.callerDescriptor(),
		})
	}
	return &anthropic.Response{
		ID:         "msg_" + uuid.NewString(),
		Type:       "message",
		Role:       "assistant",
		Model:      pe.requestTmpl.Model,
		StopReason: "tool_use",
		Content:    content,
	}
}

func (s *Service) getOrCreateSession(ctx context.Context, existingSessionID string) (string, error) {
	if existingSessionID != "" {
		if session, _ := s.sessions.Get(existingSessionID); session != nil {
			return session.ID, nil
		}
	}
	session, err := s.sessions.Create(ctx, "", []string{})
	if err != nil {
		return "", apierror.Internal("create sandbox session: %s", err)
	}
	return session.ID, nil
}

// outputMessage unwraps the Converse output union to its Message member;
// Bedrock only ever populates the Message variant for this API.
func outputMessage(out types.ConverseOutput) *types.Message {
	if m, ok := out.(*types.ConverseOutputMemberMessage); ok {
		return &m.Value
	}
	return nil
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
