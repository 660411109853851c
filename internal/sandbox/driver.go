// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package sandbox

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"go.uber.org/zap"
)

// Driver talks to the Docker daemon to create, attach to, and tear down
// sandbox containers (component C7).
type Driver struct {
	docker *client.Client
	cfg    Config
	log    *zap.SugaredLogger
}

// NewDriver builds a Driver from the ambient Docker environment (honors
// DOCKER_HOST etc, matching docker.from_env() in the Python reference).
func NewDriver(cfg Config, log *zap.SugaredLogger) (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker not available: %w", err)
	}
	return &Driver{docker: cli, cfg: cfg, log: log}, nil
}

// Ping reports whether the Docker daemon is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.docker.Ping(ctx)
	return err
}

// conn bundles a container id with its attached duplex stream.
type conn struct {
	containerID string
	hijacked    net.Conn
	reader      *bufio.Reader
}

// CreateSession creates a container, injects the runner script via an
// in-memory tar archive (never a bind mount, so this also works when
// the driver itself is running inside a container), attaches its duplex
// stream BEFORE starting it to avoid losing early output, and blocks
// until the runner emits its ready marker.
func (d *Driver) CreateSession(ctx context.Context, image string, toolNames []string) (*Session, *conn, error) {
	if image == "" {
		image = d.cfg.Image
	}

	containerCfg := &container.Config{
		Image:        image,
		Cmd:          []string{"python", "-u", "/tmp/runner.py"},
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   d.cfg.WorkingDir,
		Tty:          false,
	}
	hostCfg := d.sandboxHostConfig()

	created, err := d.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, nil, fmt.Errorf("create sandbox container: %w", err)
	}
	containerID := created.ID

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.docker.ContainerStop(stopCtx, containerID, container.StopOptions{})
		_ = d.docker.ContainerRemove(stopCtx, containerID, container.RemoveOptions{Force: true})
	}

	script := BuildRunnerScript(toolNames)
	if err := d.copyFileToContainer(ctx, containerID, "/tmp", "runner.py", script); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("inject runner script: %w", err)
	}

	attachResp, err := d.docker.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true, Stdin: true, Stdout: true, Stderr: true,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("attach sandbox container: %w", err)
	}

	if err := d.docker.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		attachResp.Close()
		cleanup()
		return nil, nil, fmt.Errorf("start sandbox container: %w", err)
	}

	c := &conn{containerID: containerID, hijacked: attachResp.Conn, reader: bufio.NewReader(attachResp.Reader)}
	if err := d.waitForReady(c, 10*time.Second); err != nil {
		attachResp.Close()
		cleanup()
		return nil, nil, fmt.Errorf("sandbox never became ready: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:            "container_" + containerID[:12],
		ContainerID:   containerID,
		RunnerVersion: RunnerScriptVersion,
		CreatedAt:     now,
		LastUsedAt:    now,
		ExpiresAt:     now.Add(d.cfg.SessionTimeout),
	}
	return session, c, nil
}

// sandboxHostConfig returns the lockdown HostConfig shared by every
// sandbox container this driver creates, whether it runs the long-lived
// Python runner or a one-shot bash command: no network, dropped
// capabilities, no privilege escalation, bounded memory/CPU.
func (d *Driver) sandboxHostConfig() *container.HostConfig {
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    parseMemoryLimit(d.cfg.MemoryLimit),
			CPUPeriod: d.cfg.CPUPeriod,
			CPUQuota:  d.cfg.CPUQuota,
		},
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
	}
	if !d.cfg.NetworkDisabled {
		hostCfg.NetworkMode = "bridge"
	}
	return hostCfg
}

// RunOneShot runs a single bash command to completion in a fresh,
// locked-down container and returns its combined output. Used by the
// standalone agent loop (C9), which has no suspend/resume requirement
// across HTTP requests and so has no need for the long-lived runner
// session or its IPC protocol that CreateSession sets up for PTC (C7/C8).
func (d *Driver) RunOneShot(ctx context.Context, image, command string) (stdout string, exitCode int, err error) {
	if image == "" {
		image = d.cfg.Image
	}
	containerCfg := &container.Config{
		Image:      image,
		Cmd:        []string{"bash", "-c", command},
		WorkingDir: d.cfg.WorkingDir,
		Tty:        false,
	}
	created, err := d.docker.ContainerCreate(ctx, containerCfg, d.sandboxHostConfig(), nil, nil, "")
	if err != nil {
		return "", 0, fmt.Errorf("create bash sandbox container: %w", err)
	}
	containerID := created.ID
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.docker.ContainerRemove(stopCtx, containerID, container.RemoveOptions{Force: true})
	}()

	if err := d.docker.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", 0, fmt.Errorf("start bash sandbox container: %w", err)
	}

	waitCh, errCh := d.docker.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return "", 0, fmt.Errorf("wait for bash sandbox container: %w", err)
	case result := <-waitCh:
		exitCode = int(result.StatusCode)
	}

	out, err := d.docker.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", exitCode, fmt.Errorf("read bash sandbox container logs: %w", err)
	}
	defer out.Close()

	var buf bytes.Buffer
	demuxReader := bufio.NewReader(out)
	for {
		header := make([]byte, dockerHeaderSize)
		if _, err := io.ReadFull(demuxReader, header); err != nil {
			break
		}
		n := payloadLength(header)
		payload := make([]byte, n)
		if _, err := io.ReadFull(demuxReader, payload); err != nil {
			break
		}
		buf.Write(payload)
	}
	return buf.String(), exitCode, nil
}

// copyFileToContainer builds a single-entry in-memory tar archive and
// uploads it via the Docker put_archive API, which works regardless of
// whether the daemon and this process share a filesystem.
func (d *Driver) copyFileToContainer(ctx context.Context, containerID, destDir, name, content string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(content)); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return d.docker.CopyToContainer(ctx, containerID, destDir, &buf, container.CopyToContainerOptions{})
}

// waitForReady blocks until markerReady appears on the attached stream
// or timeout elapses.
func (d *Driver) waitForReady(c *conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	_ = c.hijacked.SetReadDeadline(deadline)
	defer c.hijacked.SetReadDeadline(time.Time{}) //nolint:errcheck
	for time.Now().Before(deadline) {
		line, err := d.readDemuxedLine(c)
		if err != nil {
			return err
		}
		if strings.Contains(line, markerReady) {
			return nil
		}
	}
	return fmt.Errorf("timed out waiting for %s", markerReady)
}

// readDemuxedLine reads Docker-multiplexed frames, stripping each
// 8-byte header, and returns the concatenated payloads of every frame
// up to and including the first one that contains a newline. A line
// split across frames is reassembled; a frame that carries several
// lines is returned whole, so the result can hold more than one line.
func (d *Driver) readDemuxedLine(c *conn) (string, error) {
	var line bytes.Buffer
	for {
		header := make([]byte, dockerHeaderSize)
		if _, err := io.ReadFull(c.reader, header); err != nil {
			return "", err
		}
		n := payloadLength(header)
		payload := make([]byte, n)
		if _, err := io.ReadFull(c.reader, payload); err != nil {
			return "", err
		}
		line.Write(payload)
		if bytes.ContainsRune(payload, '\n') {
			return line.String(), nil
		}
	}
}

// SendCode writes a framed code block to the container's stdin.
func (d *Driver) SendCode(c *conn, code string) error {
	msg := fmt.Sprintf("%s\n%s\n%s\n", markerCodeStart, code, markerCodeEnd)
	_, err := c.hijacked.Write([]byte(msg))
	return err
}

// SendToolResult writes a resolved tool result back to a suspended
// sandbox awaiting it.
func (d *Driver) SendToolResult(c *conn, raw string) error {
	msg := fmt.Sprintf("%s%s%s\n", markerToolResultStart, raw, markerToolResultEnd)
	_, err := c.hijacked.Write([]byte(msg))
	return err
}

// SendExit sends the session-termination marker.
func (d *Driver) SendExit(c *conn) error {
	_, err := c.hijacked.Write([]byte(markerExitSession + "\n"))
	return err
}

// ReadLine reads demuxed output from the container's combined
// stdout/stderr stream up to the end of the first frame that contains
// a newline (see readDemuxedLine).
func (d *Driver) ReadLine(c *conn) (string, error) {
	return d.readDemuxedLine(c)
}

// Close stops and removes a session's container.
func (d *Driver) Close(ctx context.Context, containerID string) error {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = d.docker.ContainerStop(stopCtx, containerID, container.StopOptions{})
	return d.docker.ContainerRemove(stopCtx, containerID, container.RemoveOptions{Force: true})
}

func parseMemoryLimit(s string) int64 {
	if s == "" {
		return 256 * 1024 * 1024
	}
	unit := int64(1)
	numPart := s
	switch {
	case strings.HasSuffix(s, "g") || strings.HasSuffix(s, "G"):
		unit = 1024 * 1024 * 1024
		numPart = s[:len(s)-1]
	case strings.HasSuffix(s, "m") || strings.HasSuffix(s, "M"):
		unit = 1024 * 1024
		numPart = s[:len(s)-1]
	case strings.HasSuffix(s, "k") || strings.HasSuffix(s, "K"):
		unit = 1024
		numPart = s[:len(s)-1]
	}
	var n int64
	_, _ = fmt.Sscanf(numPart, "%d", &n)
	return n * unit
}
