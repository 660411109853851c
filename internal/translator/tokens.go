// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/anthropic"
)

// cjkRanges mirrors bedrock_service.py's _is_cjk_char range table: CJK
// ideographs and the Hiragana/Katakana/Hangul syllable blocks count as
// one token per character; everything else is estimated at one token
// per four characters.
var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF}, {0x3400, 0x4DBF},
	{0x20000, 0x2A6DF}, {0x2A700, 0x2B73F}, {0x2B740, 0x2B81F}, {0x2B820, 0x2CEAF},
	{0xF900, 0xFAFF}, {0x2F800, 0x2FA1F},
	{0x3040, 0x309F}, {0x30A0, 0x30FF},
	{0xAC00, 0xD7AF},
}

func isCJK(r rune) bool {
	for _, rng := range cjkRanges {
		if r >= rng[0] && r <= rng[1] {
			return true
		}
	}
	return false
}

// EstimateTokens is the heuristic estimator behind the count_tokens
// endpoint, used for every model: no upstream token-count call is made.
// It is a best-effort approximation, not an exact count.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cjkChars := 0
	otherChars := 0
	for _, r := range text {
		if isCJK(r) {
			cjkChars++
		} else {
			otherChars++
		}
	}
	estimate := float64(cjkChars) + float64(otherChars)/4.0
	estimate *= 1.05 // overhead factor, matching the original estimator
	n := int(estimate)
	if n < 1 {
		n = 1
	}
	return n
}

// EstimateRequestTokens estimates the input token count of a full
// request body, including the per-image and per-document flat
// surcharges the original estimator applies.
func EstimateRequestTokens(req *anthropic.Request) int {
	total := 0
	if blocks, err := req.SystemBlocks(); err == nil {
		total += estimateBlocks(blocks)
	}
	for _, m := range req.Messages {
		total += estimateBlocks(m.Content)
	}
	return total
}

func estimateBlocks(blocks []anthropic.ContentBlock) int {
	total := 0
	for _, b := range blocks {
		switch b.Type {
		case anthropic.BlockTypeText:
			total += EstimateTokens(b.Text)
		case anthropic.BlockTypeImage:
			total += 85
		case anthropic.BlockTypeDocument:
			total += 250
		case anthropic.BlockTypeToolResult:
			total += EstimateTokens(toolResultText(b))
		}
	}
	return total
}
