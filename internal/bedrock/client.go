// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package bedrock is the upstream client (component C4): it wraps the
// real bedrockruntime SDK client rather than hand-signing requests, so
// retries and error typing come from the AWS SDK; per-call timeouts are
// context deadlines applied by this package.
package bedrock

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrockapi"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

// RuntimeClient is the narrow surface of *bedrockruntime.Client this
// package depends on, so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// ControlPlaneClient is the narrow surface of *bedrock.Client this
// package uses for model discovery (distinct from bedrock-runtime).
type ControlPlaneClient interface {
	ListFoundationModels(ctx context.Context, params *bedrock.ListFoundationModelsInput, optFns ...func(*bedrock.Options)) (*bedrock.ListFoundationModelsOutput, error)
}

// Client is the proxy's handle onto AWS Bedrock.
type Client struct {
	runtime      RuntimeClient
	control      ControlPlaneClient
	callTimeout  time.Duration
	streamTimeout time.Duration
}

// New builds a Client from the default AWS credential chain, matching
// boto3's default session resolution in the Python reference.
func New(ctx context.Context, region string, callTimeout, streamTimeout time.Duration) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, apierror.Internal("load AWS config: %s", err)
	}
	return &Client{
		runtime:       bedrockruntime.NewFromConfig(cfg),
		control:       bedrock.NewFromConfig(cfg),
		callTimeout:   callTimeout,
		streamTimeout: streamTimeout,
	}, nil
}

// NewWithClients builds a Client around already-constructed (or faked)
// SDK clients, for tests.
func NewWithClients(runtime RuntimeClient, control ControlPlaneClient, callTimeout, streamTimeout time.Duration) *Client {
	return &Client{runtime: runtime, control: control, callTimeout: callTimeout, streamTimeout: streamTimeout}
}

// StreamTimeout reports the deadline callers should apply to the
// context passed to InvokeStream.
func (c *Client) StreamTimeout() time.Duration { return c.streamTimeout }

// Invoke calls Converse (non-streaming).
func (c *Client) Invoke(ctx context.Context, req *translator.ConverseRequest) (*bedrockruntime.ConverseOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	input := &bedrockruntime.ConverseInput{
		ModelId:         &req.ModelID,
		Messages:        req.Messages,
		System:          req.System,
		InferenceConfig: req.InferenceConfig,
		ToolConfig:      req.ToolConfig,
	}
	if len(req.AdditionalFields) > 0 {
		input.AdditionalModelRequestFields = bedrockapi.NewRawDocument(req.AdditionalFields)
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// InvokeStream calls ConverseStream. The caller is responsible for
// bounding ctx's lifetime (e.g. to c.streamTimeout via the HTTP
// handler): unlike Invoke, the returned stream is read long after this
// call returns, so a timeout scoped to this function would cut it short.
func (c *Client) InvokeStream(ctx context.Context, req *translator.ConverseRequest) (*bedrockruntime.ConverseStreamOutput, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         &req.ModelID,
		Messages:        req.Messages,
		System:          req.System,
		InferenceConfig: req.InferenceConfig,
		ToolConfig:      req.ToolConfig,
	}
	if len(req.AdditionalFields) > 0 {
		input.AdditionalModelRequestFields = bedrockapi.NewRawDocument(req.AdditionalFields)
	}

	out, err := c.runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// ListModels returns text-output foundation models available in the
// account's region, filtering to modalities containing "TEXT" as the
// original list_available_models does.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	out, err := c.control.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		return nil, classifyError(err)
	}
	var ids []string
	for _, m := range out.ModelSummaries {
		supportsText := false
		for _, mod := range m.OutputModalities {
			if string(mod) == "TEXT" {
				supportsText = true
				break
			}
		}
		if supportsText && m.ModelId != nil {
			ids = append(ids, *m.ModelId)
		}
	}
	return ids, nil
}

// classifyError maps an AWS SDK error to the proxy's own taxonomy,
// mirroring map_bedrock_error.
func classifyError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apierror.FromBedrockErrorCode(apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return apierror.Internal("bedrock request failed: %s", err)
}

