// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// TestRunOneShotIntegration exercises the real Docker multiplexed-stream
// framing against a throwaway container rather than mocking the Docker
// API, matching goadesign-goa-ai's container-integration-test style:
// probe Docker availability with testcontainers-go first, recovering
// from a panic to treat it as "Docker not available" and skip, then
// drive our own Driver against the daemon directly.
func TestRunOneShotIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var probeErr error
	var probe testcontainers.Container
	func() {
		defer func() {
			if r := recover(); r != nil {
				probeErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		probe, probeErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:      "bash:5.2",
				Cmd:        []string{"sleep", "5"},
				WaitingFor: wait.ForExec([]string{"true"}),
			},
			Started: true,
		})
	}()
	if probeErr != nil {
		t.Skipf("docker not available: %v", probeErr)
	}
	defer probe.Terminate(ctx) //nolint:errcheck

	log := zap.NewNop().Sugar()
	driver, err := NewDriver(DefaultConfig(), log)
	require.NoError(t, err)
	require.NoError(t, driver.Ping(ctx))

	stdout, exitCode, err := driver.RunOneShot(ctx, "bash:5.2", "echo hello")
	require.NoError(t, err)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout, "hello")
}
