// Package textsplit splits document text into paragraph-aligned chunks
// bounded by an approximate token budget.
package textsplit

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultTargetTokens is the chunk budget used when the caller passes 0.
const DefaultTargetTokens = 300

// charsPerToken is a rough chars-per-token heuristic; the budget is
// target tokens * charsPerToken, measured in runes.
const charsPerToken = 4

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Split breaks text into chunks on blank-line paragraph boundaries.
// Paragraphs accumulate into a chunk while it stays under the budget; an
// overflowing paragraph starts the next chunk. Empty chunks are dropped,
// so any non-blank input yields at least one chunk. Ordinal numbering is
// up to the caller.
func Split(text string, targetTokens int) []string {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	budget := targetTokens * charsPerToken

	paras := paragraphSep.Split(text, -1)
	var chunks []string
	var buf string
	for _, p := range paras {
		if utf8.RuneCountInString(buf)+utf8.RuneCountInString(p) < budget {
			if buf != "" {
				buf += "\n" + p
			} else {
				buf = p
			}
		} else {
			if buf != "" {
				chunks = append(chunks, strings.TrimSpace(buf))
			}
			buf = p
		}
	}
	if buf != "" {
		chunks = append(chunks, strings.TrimSpace(buf))
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Truncate returns at most n runes of s. Byte-length truncation would cut
// multi-byte Cyrillic text mid-rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
