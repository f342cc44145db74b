package lsp

import (
	"unicode/utf16"
	"unicode/utf8"
)

// applyChanges applies didChange content changes in order. A change without
// a range replaces the whole text.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if end < start {
			start, end = end, start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition converts an LSP position (UTF-16 code units) into a byte
// offset. Positions past the end of a line clamp to the line end and lines
// past the end of the text clamp to len(text).
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i := 0
	for line := 0; line < pos.Line; line++ {
		next := indexNewline(text[i:])
		if next < 0 {
			return len(text)
		}
		i += next + 1
	}
	units := 0
	for i < len(text) && units < pos.Character {
		if text[i] == '\n' || (text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n') {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		need := utf16.RuneLen(r)
		if need < 0 {
			need = 1
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return i
}

func indexNewline(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
