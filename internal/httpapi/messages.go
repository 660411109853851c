// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package httpapi

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/ptc"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/standalone"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

const (
	betaAdvancedToolUse      = "advanced-tool-use-2025-11-20"
	betaCodeExecution        = "code-execution-2025-08-25"
	containerIDHeader        = "X-Container-ID"
	containerExpiresAtHeader = "X-Container-Expires-At"
)

// betaFlags parses the comma-separated anthropic-beta header.
func betaFlags(r *http.Request) map[string]bool {
	out := make(map[string]bool)
	for _, raw := range r.Header.Values("anthropic-beta") {
		for _, f := range strings.Split(raw, ",") {
			f = strings.TrimSpace(f)
			if f != "" {
				out[f] = true
			}
		}
	}
	return out
}

// requestMode classifies a request into exactly one of: direct passthrough,
// PTC, or standalone code execution, per spec.md §4.7/§4.8's detection
// rules. A request whose tools qualify for both is rejected, since the
// two sandbox modes are mutually exclusive.
type requestMode int

const (
	modeDirect requestMode = iota
	modePTC
	modeStandalone
)

func classifyRequest(req *anthropic.Request, betas map[string]bool, ptcEnabled bool) (requestMode, error) {
	anyCodeExecTool := false
	anyAllowedCaller := false
	for _, t := range req.Tools {
		if strings.HasPrefix(t.Type, "code_execution") || t.Name == "execute_code" {
			anyCodeExecTool = true
		}
		if len(t.AllowedCallers) > 0 {
			anyAllowedCaller = true
		}
	}

	isPTC := ptcEnabled && betas[betaAdvancedToolUse] && anyCodeExecTool
	isStandalone := betas[betaCodeExecution] && anyCodeExecTool && !anyAllowedCaller

	switch {
	case isPTC && isStandalone:
		return modeDirect, apierror.InvalidRequest("request qualifies for both programmatic and standalone code execution; declare only one beta feature")
	case isPTC:
		return modePTC, nil
	case isStandalone:
		return modeStandalone, nil
	default:
		return modeDirect, nil
	}
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req anthropic.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, apierror.InvalidRequest("invalid request body: %s", err))
		return
	}
	req.Model = s.resolver.Resolve(req.Model)

	betas := betaFlags(r)
	mode, err := classifyRequest(&req, betas, s.cfg.PTCEnabled)
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}

	switch mode {
	case modePTC:
		s.handlePTC(w, r, &req)
	case modeStandalone:
		s.handleStandalone(w, r, &req)
	default:
		if req.Stream {
			s.handleDirectStream(w, r, &req)
		} else {
			s.handleDirect(w, r, &req)
		}
	}
}

func (s *Server) translatorOptions() translator.Options {
	return translator.Options{
		PromptCachingEnabled:            s.cfg.PromptCachingEnabled,
		FineGrainedToolStreamingEnabled: s.cfg.FineGrainedToolStreamingEnabled,
		InterleavedThinkingEnabled:      s.cfg.InterleavedThinkingEnabled,
		ExtendedThinkingEnabled:         s.cfg.ExtendedThinkingEnabled,
		DocumentSupportEnabled:          s.cfg.DocumentSupportEnabled,
	}
}

func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request, req *anthropic.Request) {
	bedrockReq, err := translator.ToBedrock(req, s.translatorOptions())
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	out, err := s.upstream.Invoke(r.Context(), bedrockReq)
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	msg := outputMessage(out.Output)
	resp := translator.FromBedrockOutput(req.Model, msg, out.StopReason, out.Usage, "msg_"+newMessageSuffix())

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDirectStream(w http.ResponseWriter, r *http.Request, req *anthropic.Request) {
	bedrockReq, err := translator.ToBedrock(req, s.translatorOptions())
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	streamCtx, cancel := contextWithTimeout(r.Context(), s.upstream.StreamTimeout())
	defer cancel()

	out, err := s.upstream.InvokeStream(streamCtx, bedrockReq)
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}

	flusher, sse := beginSSE(w)
	defer out.GetStream().Close()

	tr := translator.NewStreamTranslator(req.Model)
	sse(tr.Start())
	flusher.Flush()

	for event := range out.GetStream().Events() {
		evts, err := tr.Translate(event)
		if err != nil {
			continue
		}
		for _, e := range evts {
			sse(e)
		}
		flusher.Flush()
	}
	if err := out.GetStream().Err(); err != nil {
		s.log.Warnw("stream ended with error", "error", err)
	}
}

func (s *Server) handlePTC(w http.ResponseWriter, r *http.Request, req *anthropic.Request) {
	if s.ptc == nil {
		apierror.WriteJSON(w, apierror.New(apierror.KindAPIError, http.StatusServiceUnavailable, "sandbox unavailable: docker not reachable"))
		return
	}
	existing := r.Header.Get(containerIDHeader)

	result, err := func() (*ptc.ToolUseResponse, error) {
		if pending := pendingToolResults(req); existing != "" && len(pending) > 0 {
			return s.ptc.ResumeWithToolResults(r.Context(), existing, pending)
		}
		return s.ptc.HandleRequest(r.Context(), req, existing)
	}()
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	if result.SessionID != "" {
		w.Header().Set(containerIDHeader, result.SessionID)
		if expiresAt, ok := s.sandbox.PeekExpiry(result.SessionID); ok {
			result.Response.Container = &anthropic.ContainerInfo{ID: result.SessionID, ExpiresAt: expiresAt}
		}
	}
	writeJSON(w, http.StatusOK, result.Response)
}

func (s *Server) handleStandalone(w http.ResponseWriter, r *http.Request, req *anthropic.Request) {
	if s.standalone == nil {
		apierror.WriteJSON(w, apierror.New(apierror.KindAPIError, http.StatusServiceUnavailable, "sandbox unavailable: docker not reachable"))
		return
	}
	resp, err := s.standalone.HandleRequest(r.Context(), req)
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	if resp.Container != nil {
		w.Header().Set(containerIDHeader, resp.Container.ID)
		w.Header().Set(containerExpiresAtHeader, resp.Container.ExpiresAt.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, resp)
}

// pendingToolResults finds tool_result blocks in a continuation
// request's trailing user message, keyed by their tool_use_id, for
// resuming a suspended PTC execution.
func pendingToolResults(req *anthropic.Request) map[string]anthropic.ContentBlock {
	if len(req.Messages) == 0 {
		return nil
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		return nil
	}
	out := make(map[string]anthropic.ContentBlock)
	for _, b := range last.Content {
		if b.Type == anthropic.BlockTypeToolResult {
			out[b.ToolUseID] = b
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	var req anthropic.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.WriteJSON(w, apierror.InvalidRequest("invalid request body: %s", err))
		return
	}
	// Bedrock's Converse API exposes no standalone token-counting
	// operation (unlike the Anthropic API this proxy mimics), so every
	// model uses the same heuristic estimator; see DESIGN.md's
	// resolution of the non-Claude-estimator open question.
	tokens := translator.EstimateRequestTokens(&req)
	writeJSON(w, http.StatusOK, map[string]int{"input_tokens": tokens})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	ids, err := s.upstream.ListModels(r.Context())
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	type modelEntry struct {
		ID string `json:"id"`
	}
	entries := make([]modelEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, modelEntry{ID: id})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": entries})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	id := chiURLParam(r, "id")
	ids, err := s.upstream.ListModels(r.Context())
	if err != nil {
		apierror.WriteJSON(w, err)
		return
	}
	for _, existing := range ids {
		if existing == id {
			writeJSON(w, http.StatusOK, map[string]string{"id": id})
			return
		}
	}
	apierror.WriteJSON(w, apierror.NotFound("unknown model %q", id))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// beginSSE prepares the response for Server-Sent Events and returns a
// flusher plus a write function that frames one Event per the
// text/event-stream wire format.
func beginSSE(w http.ResponseWriter) (http.Flusher, func(translator.Event)) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)
	write := func(e translator.Event) {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return
		}
		fmt.Fprintf(bw, "event: %s\ndata: %s\n\n", e.Name, data)
		_ = bw.Flush()
	}
	return flusher, write
}
