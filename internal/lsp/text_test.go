package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyChangesIncremental(t *testing.T) {
	text := "div {\n  color: red;\n}\n"
	got := applyChanges(text, []textDocumentContentChangeEvent{
		{
			Range: &lspRange{Start: position{Line: 1, Character: 9}, End: position{Line: 1, Character: 12}},
			Text:  "blue",
		},
		{
			Range: &lspRange{Start: position{Line: 0, Character: 0}, End: position{Line: 0, Character: 0}},
			Text:  "// page\n",
		},
	})
	assert.Equal(t, "// page\ndiv {\n  color: blue;\n}\n", got)
}

func TestApplyChangesFullReplace(t *testing.T) {
	got := applyChanges("old", []textDocumentContentChangeEvent{
		{Text: "new text"},
		{Range: &lspRange{Start: position{Line: 0, Character: 3}, End: position{Line: 0, Character: 8}}, Text: ""},
	})
	assert.Equal(t, "new", got)
}

func TestOffsetForPositionCountsUTF16(t *testing.T) {
	text := "a😀b\nc"
	assert.Equal(t, 0, offsetForPosition(text, position{Line: 0, Character: 0}))
	assert.Equal(t, 1, offsetForPosition(text, position{Line: 0, Character: 1}))
	// The emoji is two UTF-16 units and four bytes.
	assert.Equal(t, 1, offsetForPosition(text, position{Line: 0, Character: 2}))
	assert.Equal(t, 5, offsetForPosition(text, position{Line: 0, Character: 3}))
	assert.Equal(t, 6, offsetForPosition(text, position{Line: 0, Character: 4}))
	assert.Equal(t, 6, offsetForPosition(text, position{Line: 0, Character: 40}))
	assert.Equal(t, 7, offsetForPosition(text, position{Line: 1, Character: 0}))
	assert.Equal(t, len(text), offsetForPosition(text, position{Line: 9, Character: 0}))
}

func TestOffsetForPositionStopsBeforeCRLF(t *testing.T) {
	text := "ab\r\ncd"
	assert.Equal(t, 2, offsetForPosition(text, position{Line: 0, Character: 10}))
	assert.Equal(t, 4, offsetForPosition(text, position{Line: 1, Character: 0}))
}
