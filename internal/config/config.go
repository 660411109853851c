// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package config loads the proxy's runtime configuration from the
// environment, mirroring app/core/config.py's Settings object.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the proxy reads at startup.
type Config struct {
	// Server
	Host string
	Port int

	// AWS / Bedrock
	AWSRegion          string
	BedrockTimeout     time.Duration
	StreamingTimeout   time.Duration
	ModelMappingOverrides map[string]string

	// Feature flags
	PromptCachingEnabled          bool
	FineGrainedToolStreamingEnabled bool
	InterleavedThinkingEnabled     bool
	ExtendedThinkingEnabled        bool
	DocumentSupportEnabled         bool

	// PTC / sandbox
	PTCEnabled               bool
	SandboxImage             string
	SandboxMemoryLimit       string
	SandboxCPUQuota          int64
	SandboxCPUPeriod         int64
	SandboxTimeoutSeconds    float64
	SandboxSessionTimeoutSeconds float64
	SandboxCleanupIntervalSeconds float64
	ToolCallBatchWindow      time.Duration

	// Standalone code execution
	StandaloneMaxIterations int

	// Logging
	LogLevel string
}

// Load reads configuration from the process environment, optionally
// after loading a .env file (if present) for local development, exactly
// as the Python reference's pydantic-settings env_file=".env" does.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	cfg := &Config{
		Host:                 getEnv("HOST", "0.0.0.0"),
		Port:                 getEnvInt("PORT", 8080),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		BedrockTimeout:       getEnvSeconds("BEDROCK_TIMEOUT", 1800),
		StreamingTimeout:     getEnvSeconds("STREAMING_TIMEOUT", 1800),
		ModelMappingOverrides: getEnvMap("MODEL_MAPPING_OVERRIDES"),

		PromptCachingEnabled:           getEnvBool("PROMPT_CACHING_ENABLED", true),
		FineGrainedToolStreamingEnabled: getEnvBool("FINE_GRAINED_TOOL_STREAMING_ENABLED", false),
		InterleavedThinkingEnabled:     getEnvBool("INTERLEAVED_THINKING_ENABLED", false),
		ExtendedThinkingEnabled:        getEnvBool("ENABLE_EXTENDED_THINKING", true),
		DocumentSupportEnabled:         getEnvBool("ENABLE_DOCUMENT_SUPPORT", true),

		PTCEnabled:                    getEnvBool("PTC_ENABLED", true),
		SandboxImage:                  getEnv("SANDBOX_IMAGE", "python:3.11-slim"),
		SandboxMemoryLimit:            getEnv("SANDBOX_MEMORY_LIMIT", "256m"),
		SandboxCPUQuota:               int64(getEnvInt("SANDBOX_CPU_QUOTA", 50000)),
		SandboxCPUPeriod:              int64(getEnvInt("SANDBOX_CPU_PERIOD", 100000)),
		SandboxTimeoutSeconds:         getEnvFloat("SANDBOX_TIMEOUT_SECONDS", 60.0),
		SandboxSessionTimeoutSeconds:  getEnvFloat("SANDBOX_SESSION_TIMEOUT_SECONDS", 270.0),
		SandboxCleanupIntervalSeconds: getEnvFloat("SANDBOX_CLEANUP_INTERVAL_SECONDS", 60.0),
		ToolCallBatchWindow:           time.Duration(getEnvFloat("TOOL_CALL_BATCH_WINDOW_MS", 100.0)) * time.Millisecond,

		StandaloneMaxIterations: getEnvInt("STANDALONE_MAX_ITERATIONS", 25),

		LogLevel: strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
	}

	switch cfg.LogLevel {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvSeconds(key string, defSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defSeconds)) * time.Second
}

func getEnvBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvMap parses "callerID=bedrockID,callerID2=bedrockID2" into a map,
// standing in for the out-of-scope admin-managed override table.
func getEnvMap(key string) map[string]string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}
