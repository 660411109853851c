// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package sandbox is the Docker-backed code execution sandbox: a
// session store (component C6) and a container driver (component C7)
// that together give Programmatic Tool Calling and the standalone
// code-execution agent a place to run model-authored Python.
package sandbox

import (
	"sync"
	"time"
)

// RunnerScriptVersion is bumped whenever the embedded runner's IPC
// protocol changes incompatibly. A session whose container is still
// running an older runner is treated as expired rather than reused.
const RunnerScriptVersion = 3

// Config bundles the sandbox tunables, mirroring SandboxConfig in the
// Python reference.
type Config struct {
	Image                  string
	MemoryLimit            string
	CPUQuota               int64
	CPUPeriod              int64
	TimeoutSeconds         float64
	NetworkDisabled        bool
	WorkingDir             string
	SessionTimeout         time.Duration
	EnableSessionReuse     bool
	CleanupInterval        time.Duration
	ToolCallBatchWindow    time.Duration
}

// DefaultConfig matches the Python reference's SandboxConfig defaults.
func DefaultConfig() Config {
	return Config{
		Image:               "python:3.11-slim",
		MemoryLimit:         "256m",
		CPUQuota:            50000,
		CPUPeriod:           100000,
		TimeoutSeconds:      60.0,
		NetworkDisabled:     true,
		WorkingDir:          "/workspace",
		SessionTimeout:      270 * time.Second,
		EnableSessionReuse:  true,
		CleanupInterval:     60 * time.Second,
		ToolCallBatchWindow: 100 * time.Millisecond,
	}
}

// PendingToolCall is a tool call the model's running code is blocked
// on, waiting for the proxy to resolve it via a continuation request.
type PendingToolCall struct {
	CallID string
	Name   string
	Input  []byte
}

// Session is one long-lived Docker container bound to a conversation,
// surviving suspend/resume across HTTP requests via the session store.
type Session struct {
	mu sync.Mutex

	ID              string
	ContainerID     string
	RunnerVersion   int
	CreatedAt       time.Time
	LastUsedAt      time.Time
	ExpiresAt       time.Time
	ExecutionCount  int
	IsBusy          bool
	PendingToolCall []PendingToolCall // non-nil while a batch awaits resolution
}

// IsExpired reports whether the session has outlived its timeout.
func (s *Session) IsExpired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.ExpiresAt)
}

// IsCompatible reports whether the session's container is running a
// runner script compatible with the current build.
func (s *Session) IsCompatible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.RunnerVersion == RunnerScriptVersion
}

// Refresh extends the session's expiry from now, matching the Python
// reference's "expires_at = last_used_at + session_timeout" rule.
func (s *Session) Refresh(now time.Time, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastUsedAt = now
	s.ExpiresAt = now.Add(timeout)
}

// SetBusy marks or clears the session's busy flag under its own lock,
// so execution start/finish bookkeeping never races session lookups.
func (s *Session) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsBusy = busy
}

// Busy reports the session's current busy flag.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.IsBusy
}

// HasPendingToolCall reports whether a batch of tool calls is awaiting
// resolution before the sandbox's code can resume.
func (s *Session) HasPendingToolCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.PendingToolCall) > 0
}

// ToolCallRequest is yielded by Execute for each tool call the sandbox
// issues; Execute yields every call this way.
type ToolCallRequest struct {
	CallID string
	Name   string
	Input  []byte
}

// BatchToolCallRequest groups several pending tool calls into one
// event. Execute yields one only when more than one call is pending at
// once; since no batching window collects further calls, this does not
// happen in the current Execute loop.
type BatchToolCallRequest struct {
	Calls []ToolCallRequest
}

// ExecutionResult is yielded by Execute once the sandbox's code has
// finished running and emitted its final framed output.
type ExecutionResult struct {
	Success          bool
	Stdout           string
	Stderr           string
	ReturnCode       int
	ToolCallsCount   int
	ExecutionTimeMS  int64
}
