// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var errSessionGone = errors.New("sandbox session no longer exists")

// sessionEntry pairs a Session with its live container connection.
type sessionEntry struct {
	session *Session
	conn    *conn
}

// Store is the mutex-guarded session registry (component C6): a map
// keyed by session id, a TTL refreshed on every use, and a background
// reaper that closes containers whose sessions have expired.
type Store struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	driver  *Driver
	cfg     Config
	log     *zap.SugaredLogger

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// NewStore builds a Store and starts its background reaper goroutine.
func NewStore(driver *Driver, cfg Config, log *zap.SugaredLogger) *Store {
	s := &Store{
		entries:    make(map[string]*sessionEntry),
		driver:     driver,
		cfg:        cfg,
		log:        log,
		stopReaper: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	go s.runReaper()
	return s
}

// Create starts a fresh container-backed session.
func (s *Store) Create(ctx context.Context, image string, toolNames []string) (*Session, error) {
	session, c, err := s.driver.CreateSession(ctx, image, toolNames)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.entries[session.ID] = &sessionEntry{session: session, conn: c}
	s.mu.Unlock()
	return session, nil
}

// Get returns a session by id, refreshing its TTL, or nil if it does
// not exist, is expired, or is running an incompatible runner version
// (in all of those cases the stale session is scheduled for async
// closure rather than surfaced as an error to the caller).
func (s *Store) Get(id string) (*Session, *conn) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	now := time.Now()
	if entry.session.IsExpired(now) || !entry.session.IsCompatible() {
		s.log.Warnw("sandbox session stale, closing",
			"session_id", id, "expired", entry.session.IsExpired(now), "compatible", entry.session.IsCompatible())
		go s.Close(context.Background(), id)
		return nil, nil
	}
	entry.session.Refresh(now, s.cfg.SessionTimeout)
	return entry.session, entry.conn
}

// PeekExpiry returns a session's current expiry without refreshing its
// TTL, for attaching container metadata to an already-served response.
func (s *Store) PeekExpiry(id string) (time.Time, bool) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return entry.session.ExpiresAt, true
}

// Conn returns the live connection for a session id without any
// freshness checks, for internal use after Get has already validated it.
func (s *Store) Conn(id string) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e.conn
	}
	return nil
}

// SendCode writes a framed code block to the given session's container.
func (s *Store) SendCode(id, code string) error {
	c := s.Conn(id)
	if c == nil {
		return errSessionGone
	}
	return s.driver.SendCode(c, code)
}

// SendToolResult writes a resolved tool result to the given session.
func (s *Store) SendToolResult(id, raw string) error {
	c := s.Conn(id)
	if c == nil {
		return errSessionGone
	}
	return s.driver.SendToolResult(c, raw)
}

// ReadLine reads one demuxed line from the given session's container.
func (s *Store) ReadLine(id string) (string, error) {
	c := s.Conn(id)
	if c == nil {
		return "", errSessionGone
	}
	return s.driver.ReadLine(c)
}

// BatchWindow returns the configured parallel tool-call batching window.
func (s *Store) BatchWindow() time.Duration { return s.cfg.ToolCallBatchWindow }

// RunOneShot runs a single bash command to completion in a fresh,
// locked-down container, bypassing the session registry entirely: the
// standalone agent loop (C9) has no cross-request suspend/resume
// requirement, so each call gets its own throwaway container rather than
// a registry-tracked, reusable one.
func (s *Store) RunOneShot(ctx context.Context, command string) (stdout string, exitCode int, err error) {
	return s.driver.RunOneShot(ctx, s.cfg.Image, command)
}

// Close removes a session from the registry and tears down its
// container. Best-effort: the EXIT marker send failure does not block
// teardown.
func (s *Store) Close(ctx context.Context, id string) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	_ = s.driver.SendExit(entry.conn)
	if err := s.driver.Close(ctx, entry.session.ContainerID); err != nil {
		s.log.Warnw("failed to remove sandbox container", "session_id", id, "error", err)
	}
}

// CloseAll tears down every active session, called on process shutdown.
func (s *Store) CloseAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Close(ctx, id)
	}
	close(s.stopReaper)
	<-s.reaperDone
}

// ActiveSessionInfo is a snapshot of one session's liveness state.
type ActiveSessionInfo struct {
	ID               string
	IsBusy           bool
	HasPendingToolCall bool
	ExecutionCount   int
}

// ActiveSessions returns a snapshot of all non-expired sessions.
func (s *Store) ActiveSessions() []ActiveSessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]ActiveSessionInfo, 0, len(s.entries))
	for _, e := range s.entries {
		if e.session.IsExpired(now) {
			continue
		}
		out = append(out, ActiveSessionInfo{
			ID:                 e.session.ID,
			IsBusy:             e.session.Busy(),
			HasPendingToolCall: e.session.HasPendingToolCall(),
			ExecutionCount:     e.session.ExecutionCount,
		})
	}
	return out
}

func (s *Store) runReaper() {
	defer close(s.reaperDone)
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopReaper:
			return
		case <-ticker.C:
			s.reapExpired()
		}
	}
}

func (s *Store) reapExpired() {
	now := time.Now()
	s.mu.Lock()
	var expired []string
	for id, e := range s.entries {
		if e.session.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.Close(context.Background(), id)
	}
}
