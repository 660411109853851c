// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Command proxy runs the Anthropic-Bedrock API proxy: it loads
// configuration from the environment, builds the dependency graph
// (model mapping, upstream client, sandbox store, PTC/standalone
// services), and serves the HTTP surface until SIGTERM/SIGINT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrock"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/config"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/httpapi"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/metrics"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/modelmap"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/ptc"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/sandbox"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/standalone"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/version"
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print the build version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck
	sugar := log.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	resolver := modelmap.NewResolver(cfg.ModelMappingOverrides)

	upstream, err := bedrock.New(ctx, cfg.AWSRegion, cfg.BedrockTimeout, cfg.StreamingTimeout)
	if err != nil {
		return fmt.Errorf("build bedrock client: %w", err)
	}

	opts := translator.Options{
		PromptCachingEnabled:            cfg.PromptCachingEnabled,
		FineGrainedToolStreamingEnabled: cfg.FineGrainedToolStreamingEnabled,
		InterleavedThinkingEnabled:      cfg.InterleavedThinkingEnabled,
		ExtendedThinkingEnabled:         cfg.ExtendedThinkingEnabled,
		DocumentSupportEnabled:          cfg.DocumentSupportEnabled,
	}

	sandboxCfg := sandbox.Config{
		Image:               cfg.SandboxImage,
		MemoryLimit:         cfg.SandboxMemoryLimit,
		CPUQuota:            cfg.SandboxCPUQuota,
		CPUPeriod:           cfg.SandboxCPUPeriod,
		TimeoutSeconds:      cfg.SandboxTimeoutSeconds,
		NetworkDisabled:     true,
		WorkingDir:          "/workspace",
		SessionTimeout:      secondsToDuration(cfg.SandboxSessionTimeoutSeconds),
		EnableSessionReuse:  true,
		CleanupInterval:     secondsToDuration(cfg.SandboxCleanupIntervalSeconds),
		ToolCallBatchWindow: cfg.ToolCallBatchWindow,
	}

	var sandboxStore *sandbox.Store
	var ptcService *ptc.Service
	var standaloneService *standalone.Service
	if cfg.PTCEnabled {
		driver, err := sandbox.NewDriver(sandboxCfg, sugar)
		if err == nil {
			err = driver.Ping(context.Background())
		}
		if err != nil {
			sugar.Warnw("sandbox driver unavailable, PTC/standalone code execution disabled", "error", err)
		} else {
			sandboxStore = sandbox.NewStore(driver, sandboxCfg, sugar)
			ptcService = ptc.NewService(sandboxStore, upstream, opts, sugar)
			standaloneService = standalone.NewService(sandboxStore, upstream, opts, cfg.StandaloneMaxIterations, sandboxCfg.SessionTimeout)
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	server := httpapi.New(cfg, resolver, upstream, sandboxStore, ptcService, standaloneService, m, sugar)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		sugar.Infow("listening", "addr", httpServer.Addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sugar.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		sugar.Warnw("graceful shutdown failed", "error", err)
	}
	if sandboxStore != nil {
		sandboxStore.CloseAll(shutdownCtx)
	}
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "DEBUG":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARNING":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	case "CRITICAL":
		zapLevel = zap.NewAtomicLevelAt(zap.FatalLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	return cfg.Build()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
