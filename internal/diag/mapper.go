package diag

import (
	"strings"
	"unicode/utf16"
)

// ToDiagnostic positions rec against text and returns the renderable form.
// Related records are assumed to live in the same document as rec.
func ToDiagnostic(rec Record, uri, text string) Diagnostic {
	return newDocument(uri, text).diagnostic(&rec)
}

// ToDiagnostics maps every record against the same document text. The
// result has one diagnostic per record, in order.
func ToDiagnostics(records []Record, uri, text string) []Diagnostic {
	if len(records) == 0 {
		return nil
	}
	doc := newDocument(uri, text)
	out := make([]Diagnostic, 0, len(records))
	for i := range records {
		out = append(out, doc.diagnostic(&records[i]))
	}
	return out
}

type document struct {
	uri   string
	lines []string
}

func newDocument(uri, text string) *document {
	return &document{uri: uri, lines: strings.Split(text, "\n")}
}

func (d *document) diagnostic(rec *Record) Diagnostic {
	out := Diagnostic{
		Range:    d.rangeFor(rec),
		Severity: rec.Kind.Severity(),
		Message:  rec.Message,
		Source:   Source,
		Code:     rec.Code,
	}
	if len(rec.Related) > 0 {
		out.Related = d.appendRelated(nil, rec.Related)
	}
	return out
}

// appendRelated flattens nested related records depth-first.
func (d *document) appendRelated(out []RelatedInformation, recs []Record) []RelatedInformation {
	for i := range recs {
		out = append(out, RelatedInformation{
			URI:     d.uri,
			Range:   d.rangeFor(&recs[i]),
			Message: recs[i].Message,
		})
		out = d.appendRelated(out, recs[i].Related)
	}
	return out
}

func (d *document) rangeFor(rec *Record) Range {
	if !rec.Localized() {
		return Range{End: Position{Character: 1}}
	}
	line := maxZero(rec.Line - 1)
	col := maxZero(rec.Column - 1)
	end := col + 1
	if rec.Length > 0 {
		end = col + rec.Length
	} else if n := d.wordLength(line, col); n > 0 {
		end = col + n
	}
	return Range{
		Start: Position{Line: line, Character: col},
		End:   Position{Line: line, Character: end},
	}
}

// wordLength returns the length in UTF-16 units of the first run of word
// characters at or after col on the given line, or 0 when there is none.
func (d *document) wordLength(line, col int) int {
	if line >= len(d.lines) {
		return 0
	}
	text := strings.TrimSuffix(d.lines[line], "\r")
	units := utf16.Encode([]rune(text))
	if col >= len(units) {
		return 0
	}
	i := col
	for i < len(units) && !isWordUnit(units[i]) {
		i++
	}
	n := 0
	for i < len(units) && isWordUnit(units[i]) {
		n++
		i++
	}
	return n
}

func isWordUnit(u uint16) bool {
	switch {
	case u >= 'a' && u <= 'z', u >= 'A' && u <= 'Z', u >= '0' && u <= '9', u == '_':
		return true
	}
	return false
}

func maxZero(value int) int {
	if value < 0 {
		return 0
	}
	return value
}
