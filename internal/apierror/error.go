// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package apierror is the typed error taxonomy shared by every
// component, mirroring app/core/exceptions.py's BedrockAPIError
// hierarchy and its map_bedrock_error dispatch table.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

// Kind is the Anthropic-shaped error.error.type discriminant.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request_error"
	KindAuthentication Kind = "authentication_error"
	KindPermission     Kind = "permission_error"
	KindNotFound       Kind = "not_found_error"
	KindRateLimit      Kind = "rate_limit_error"
	KindAPIError       Kind = "api_error"
	KindOverloaded     Kind = "overloaded_error"
)

// Error is the canonical error type returned by every component.
// HTTPStatus reports the status code the HTTP layer should use.
type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	RetryAfterSeconds int
	cause      error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with an explicit kind/status.
func New(kind Kind, status int, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), HTTPStatus: status}
}

// Wrap attaches a taxonomy kind/status to an underlying error, keeping
// it reachable via errors.Unwrap.
func Wrap(kind Kind, status int, cause error) *Error {
	return &Error{Kind: kind, Message: cause.Error(), HTTPStatus: status, cause: cause}
}

func InvalidRequest(format string, args ...interface{}) *Error {
	return New(KindInvalidRequest, http.StatusBadRequest, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, http.StatusNotFound, format, args...)
}

func Internal(format string, args ...interface{}) *Error {
	return New(KindAPIError, http.StatusInternalServerError, format, args...)
}

// bedrockErrorCodeMap mirrors map_bedrock_error's dispatch table: AWS
// exception names to (Kind, HTTP status).
var bedrockErrorCodeMap = map[string]struct {
	kind   Kind
	status int
}{
	"ThrottlingException":          {KindRateLimit, http.StatusTooManyRequests},
	"TooManyRequestsException":     {KindRateLimit, http.StatusTooManyRequests},
	"ServiceQuotaExceededException": {KindRateLimit, http.StatusTooManyRequests},
	"ServiceUnavailableException":  {KindAPIError, http.StatusServiceUnavailable},
	"ModelNotReadyException":       {KindAPIError, http.StatusServiceUnavailable},
	"ResourceNotFoundException":    {KindNotFound, http.StatusNotFound},
	"ValidationException":          {KindInvalidRequest, http.StatusBadRequest},
	"AccessDeniedException":        {KindPermission, http.StatusForbidden},
}

// FromBedrockErrorCode maps an AWS error code/message pair to the
// proxy's own error taxonomy; unrecognized codes fall back to a
// generic 500 api_error, matching map_bedrock_error's default branch.
func FromBedrockErrorCode(code, message string) *Error {
	if mapped, ok := bedrockErrorCodeMap[code]; ok {
		return New(mapped.kind, mapped.status, "%s", message)
	}
	return New(KindAPIError, http.StatusInternalServerError, "bedrock error [%s]: %s", code, message)
}

// WriteJSON encodes err as an Anthropic-shaped error body and writes it
// with the error's HTTP status, wrapping non-*Error values as a
// generic 500 api_error.
func WriteJSON(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*Error)
	if !ok {
		apiErr = Wrap(KindAPIError, http.StatusInternalServerError, err)
	}
	body := anthropic.ErrorBody{Type: "error"}
	body.Error.Type = string(apiErr.Kind)
	body.Error.Message = apiErr.Message

	w.Header().Set("Content-Type", "application/json")
	if apiErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", apiErr.RetryAfterSeconds))
	}
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(body)
}
