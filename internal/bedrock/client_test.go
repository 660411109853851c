// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package bedrock

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/apierror"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

type fakeRuntimeClient struct {
	converseOut    *bedrockruntime.ConverseOutput
	converseErr    error
	converseCalled bool
}

func (f *fakeRuntimeClient) Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.converseCalled = true
	return f.converseOut, f.converseErr
}

func (f *fakeRuntimeClient) ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, nil
}

type fakeAPIError struct {
	code, message string
}

func (e *fakeAPIError) Error() string       { return e.message }
func (e *fakeAPIError) ErrorCode() string    { return e.code }
func (e *fakeAPIError) ErrorMessage() string { return e.message }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func TestInvokeSuccess(t *testing.T) {
	fake := &fakeRuntimeClient{converseOut: &bedrockruntime.ConverseOutput{}}
	c := NewWithClients(fake, nil, 30*time.Second, 30*time.Second)

	out, err := c.Invoke(context.Background(), &translator.ConverseRequest{ModelID: "m"})
	require.NoError(t, err)
	require.NotNil(t, out)
	require.True(t, fake.converseCalled)
}

func TestInvokeClassifiesThrottling(t *testing.T) {
	fake := &fakeRuntimeClient{converseErr: &fakeAPIError{code: "ThrottlingException", message: "slow down"}}
	c := NewWithClients(fake, nil, 30*time.Second, 30*time.Second)

	_, err := c.Invoke(context.Background(), &translator.ConverseRequest{ModelID: "m"})
	require.Error(t, err)
	apiErr, ok := err.(*apierror.Error)
	require.True(t, ok)
	require.Equal(t, apierror.KindRateLimit, apiErr.Kind)
	require.Equal(t, 429, apiErr.HTTPStatus)
}
