// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPayloadLength(t *testing.T) {
	header := []byte{1, 0, 0, 0, 0x00, 0x00, 0x01, 0x00} // stream type 1, length 256
	require.Equal(t, uint32(256), payloadLength(header))
}

func TestParseMemoryLimit(t *testing.T) {
	require.Equal(t, int64(256*1024*1024), parseMemoryLimit("256m"))
	require.Equal(t, int64(1024*1024*1024), parseMemoryLimit("1g"))
	require.Equal(t, int64(256*1024*1024), parseMemoryLimit(""))
}

func TestBuildRunnerScriptContainsToolNames(t *testing.T) {
	script := BuildRunnerScript([]string{"execute_code"})
	require.Contains(t, script, "execute_code")
	require.Contains(t, script, markerReady)
	require.Contains(t, script, markerCodeStart)
}
