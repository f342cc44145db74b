package compiler

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"chtl/internal/diag"
)

var (
	// path:line:column: severity: message
	locatedLine = regexp.MustCompile(`^(.+):(\d+):(\d+):\s*(error|warning):\s*(.+)$`)
	// Severity: message
	bareLine = regexp.MustCompile(`(?i)^(error|warning):\s*(.+)$`)
)

// Parse converts raw compiler output into records. Structured output wins;
// otherwise text lines are matched and, when none match, the whole trimmed
// output becomes one unlocalized error. Messages are kept as the compiler
// wrote them.
func Parse(raw string) []diag.Record {
	if records, ok := ParseStructured(raw); ok {
		return records
	}
	records := ParseText(raw)
	if len(records) == 0 {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			return []diag.Record{{Kind: diag.KindError, Message: trimmed}}
		}
	}
	return records
}

// ParseResult interprets the output of a finished run. Failures go through
// Parse. Successful runs only report what one of the two grammars
// recognizes, so informational chatter on stdout never becomes an error.
func ParseResult(res Result) []diag.Record {
	if !res.Success {
		return Parse(res.Output)
	}
	if records, ok := ParseStructured(res.Output); ok {
		return records
	}
	return ParseText(res.Output)
}

// ParseStructured decodes a JSON object with an "errors" array. It reports
// false when raw is not such an object, so the caller can fall back to text
// parsing. Elements are decoded one by one: a malformed field degrades only
// that field, a string element becomes an unlocalized error and any other
// non-object element (null included) is skipped.
func ParseStructured(raw string) ([]diag.Record, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, false
	}
	list := bytes.TrimSpace(payload.Errors)
	if len(list) == 0 || list[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(list, &elems); err != nil {
		return nil, false
	}
	records := make([]diag.Record, 0, len(elems))
	for _, elem := range elems {
		if bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
			continue
		}
		var rec diag.Record
		if err := json.Unmarshal(elem, &rec); err != nil {
			var msg string
			if json.Unmarshal(elem, &msg) != nil {
				continue
			}
			rec = diag.Record{Kind: diag.KindError, Message: msg}
		}
		normalizeRecord(&rec)
		records = append(records, rec)
	}
	return records, true
}

// ParseText matches output line by line. Lines in neither form are skipped.
func ParseText(raw string) []diag.Record {
	var records []diag.Record
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := locatedLine.FindStringSubmatch(line); m != nil {
			rec := diag.Record{
				Kind:    diag.Kind(m[4]),
				Message: m[5],
			}
			if l, c, ok := parsePosition(m[2], m[3]); ok {
				rec.Line, rec.Column, rec.Positioned = l, c, true
			}
			records = append(records, rec)
			continue
		}
		if m := bareLine.FindStringSubmatch(line); m != nil {
			records = append(records, diag.Record{
				Kind:    diag.ParseKind(m[1]),
				Message: m[2],
			})
		}
	}
	return records
}

func parsePosition(lineDigits, colDigits string) (line, col int, ok bool) {
	l, err := strconv.ParseUint(lineDigits, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.ParseUint(colDigits, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	line, err = safecast.Conv[int](l)
	if err != nil {
		return 0, 0, false
	}
	col, err = safecast.Conv[int](c)
	if err != nil {
		return 0, 0, false
	}
	return line, col, true
}

// normalizeRecord maps free-form kinds onto the known ones.
func normalizeRecord(rec *diag.Record) {
	rec.Kind = diag.ParseKind(string(rec.Kind))
	for i := range rec.Related {
		normalizeRecord(&rec.Related[i])
	}
}
