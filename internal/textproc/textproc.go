// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package textproc normalizes raw text before it is embedded or stored.
// Cleaning is deterministic: the same input always yields the same output.
package textproc

import (
	"strings"

	"golang.org/x/net/html"
)

// skipElements lists elements whose text content is never user-visible
// prose.
var skipElements = map[string]bool{
	"script": true,
	"style":  true,
	"head":   true,
}

// Clean strips HTML markup and collapses all runs of whitespace to a
// single space. Plain text passes through with only whitespace
// normalization. The result may be empty; callers treat empty cleaned
// text as invalid input.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	stripped := stripHTML(text)
	return CollapseWhitespace(stripped)
}

// CollapseWhitespace replaces every run of Unicode whitespace with a
// single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripHTML extracts the text content from markup using a streaming
// tokenizer. Content inside script/style/head elements is dropped.
// Inputs without any tags come back unchanged.
func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tok.Next() {
		case html.ErrorToken:
			// io.EOF ends the stream; alt errors still yield the text
			// gathered so far, which is the best we can do for broken
			// markup.
			return b.String()
		case html.StartTagToken:
			name, _ := tok.TagName()
			if skipElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if skipDepth > 0 && skipElements[string(name)] {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tok.Text())
				b.WriteByte(' ')
			}
		}
	}
}
