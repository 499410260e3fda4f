// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package textproc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemo-dev/mnemo/internal/textproc"
)

func TestCleanPlainText(t *testing.T) {
	assert.Equal(t, "hello world", textproc.Clean("hello world"))
}

func TestCleanCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", textproc.Clean("  a\t\tb\n\n c  "))
}

func TestCleanStripsTags(t *testing.T) {
	in := "<p>The <b>quick</b> fox</p>"
	assert.Equal(t, "The quick fox", textproc.Clean(in))
}

func TestCleanDropsScriptAndStyle(t *testing.T) {
	in := `<html><head><title>t</title></head><body>
		<style>p { color: red }</style>
		<script>alert("x")</script>
		<p>visible</p></body></html>`
	assert.Equal(t, "visible", textproc.Clean(in))
}

func TestCleanEmpty(t *testing.T) {
	assert.Equal(t, "", textproc.Clean(""))
	assert.Equal(t, "", textproc.Clean("   \n\t "))
	assert.Equal(t, "", textproc.Clean("<div><span></span></div>"))
}

func TestCleanDeterministic(t *testing.T) {
	in := "<p>same   input</p>"
	first := textproc.Clean(in)
	for range 5 {
		assert.Equal(t, first, textproc.Clean(in))
	}
}

func TestCleanBrokenMarkup(t *testing.T) {
	// Unclosed tags still yield the text gathered so far.
	assert.Equal(t, "partial text", textproc.Clean("<div>partial <em>text"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "one two", textproc.CollapseWhitespace("one  \ttwo"))
	assert.Equal(t, "", textproc.CollapseWhitespace(""))
}
