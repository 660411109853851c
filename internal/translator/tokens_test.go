// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateTokensASCII(t *testing.T) {
	// 8 ascii chars / 4 * 1.05 overhead = 2.1 -> floor 2
	require.Equal(t, 2, EstimateTokens("abcdefgh"))
}

func TestEstimateTokensCJK(t *testing.T) {
	// 3 CJK chars counted 1:1, *1.05 overhead = 3.15 -> floor 3
	require.Equal(t, 3, EstimateTokens("你好吗"))
}

func TestEstimateTokensFloorsAtOne(t *testing.T) {
	require.Equal(t, 1, EstimateTokens("a"))
}

func TestEstimateTokensEmpty(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
}
