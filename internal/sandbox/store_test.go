// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionRefreshExtendsExpiry(t *testing.T) {
	now := time.Now()
	s := &Session{LastUsedAt: now, ExpiresAt: now.Add(time.Second)}
	later := now.Add(10 * time.Second)
	s.Refresh(later, 270*time.Second)
	require.Equal(t, later.Add(270*time.Second), s.ExpiresAt)
}

func TestSessionIsExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(-time.Second)}
	require.True(t, s.IsExpired(now))

	s2 := &Session{ExpiresAt: now.Add(time.Second)}
	require.False(t, s2.IsExpired(now))
}

func TestSessionIsCompatible(t *testing.T) {
	s := &Session{RunnerVersion: RunnerScriptVersion}
	require.True(t, s.IsCompatible())

	stale := &Session{RunnerVersion: RunnerScriptVersion - 1}
	require.False(t, stale.IsCompatible())
}

func TestSessionBusyFlag(t *testing.T) {
	s := &Session{}
	require.False(t, s.Busy())
	s.SetBusy(true)
	require.True(t, s.Busy())
}
