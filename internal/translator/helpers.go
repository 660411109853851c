// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"encoding/base64"
	"strings"
)

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// imageFormat extracts the Converse ImageFormat ("png", "jpeg", ...)
// from a media type like "image/png".
func imageFormat(mediaType string) string {
	parts := strings.SplitN(mediaType, "/", 2)
	if len(parts) != 2 {
		return "png"
	}
	format := parts[1]
	if format == "jpg" {
		format = "jpeg"
	}
	return format
}

// imageMediaType is imageFormat's inverse, for re-encoding a Converse
// image block ("png") back into an Anthropic media type ("image/png").
func imageMediaType(format string) string {
	return "image/" + format
}

// documentFormat extracts the Converse DocumentFormat from a media type
// like "application/pdf".
func documentFormat(mediaType string) string {
	switch mediaType {
	case "application/pdf":
		return "pdf"
	case "text/csv":
		return "csv"
	case "text/plain":
		return "txt"
	case "text/html":
		return "html"
	case "text/markdown":
		return "md"
	case "application/vnd.ms-excel":
		return "xls"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "application/msword":
		return "doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	default:
		return "txt"
	}
}
