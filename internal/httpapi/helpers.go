// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package httpapi

import (
	"context"
	"net/http"
	"time"

	bedrockruntimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func newMessageSuffix() string { return uuid.NewString() }

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

func chiURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func outputMessage(out bedrockruntimetypes.ConverseOutput) *bedrockruntimetypes.Message {
	if m, ok := out.(*bedrockruntimetypes.ConverseOutputMemberMessage); ok {
		return &m.Value
	}
	return nil
}
