package diag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Code is an opaque compiler-supplied identifier. The compiler may emit it as
// a JSON string or number; both decode to the same textual form.
type Code string

// UnmarshalJSON accepts strings, numbers and null.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("code must be a string or number: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// Record is a problem reported by the compiler before it is positioned
// against document text. Line and Column are 1-based as reported.
type Record struct {
	Kind    Kind   `json:"type" msgpack:"kind"`
	Message string `json:"message" msgpack:"message"`
	Line    int    `json:"line,omitempty" msgpack:"line,omitempty"`
	Column  int    `json:"column,omitempty" msgpack:"column,omitempty"`
	// Positioned is set when the compiler reported both a line and a column,
	// including zero or negative ones.
	Positioned bool     `json:"-" msgpack:"positioned,omitempty"`
	Length     int      `json:"length,omitempty" msgpack:"length,omitempty"`
	Code       Code     `json:"code,omitempty" msgpack:"code,omitempty"`
	Related    []Record `json:"relatedInfo,omitempty" msgpack:"related,omitempty"`
}

// Localized reports whether r carries a position. Records built in code
// with positive Line and Column count as positioned.
func (r *Record) Localized() bool {
	return r.Positioned || (r.Line > 0 && r.Column > 0)
}

// wireRecord is the compiler's JSON element with every field left raw, so a
// malformed field degrades alone instead of failing the record.
type wireRecord struct {
	Type    json.RawMessage `json:"type"`
	Message json.RawMessage `json:"message"`
	Line    json.RawMessage `json:"line"`
	Column  json.RawMessage `json:"column"`
	Length  json.RawMessage `json:"length"`
	Code    json.RawMessage `json:"code"`
	Related json.RawMessage `json:"relatedInfo"`
}

// UnmarshalJSON decodes a compiler record leniently. Only a non-object fails;
// a field of the wrong shape is treated as absent, except a non-string
// message, which keeps its JSON text.
func (r *Record) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return nil
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out Record
	var kind string
	if json.Unmarshal(w.Type, &kind) == nil {
		out.Kind = Kind(kind)
	}
	out.Message = rawText(w.Message)
	line, hasLine := rawInt(w.Line)
	col, hasCol := rawInt(w.Column)
	out.Line, out.Column = line, col
	out.Positioned = hasLine && hasCol
	out.Length, _ = rawInt(w.Length)
	if len(w.Code) > 0 && out.Code.UnmarshalJSON(w.Code) != nil {
		out.Code = ""
	}
	var related []json.RawMessage
	if json.Unmarshal(w.Related, &related) == nil {
		for _, elem := range related {
			if isNull(elem) {
				continue
			}
			var rec Record
			if rec.UnmarshalJSON(elem) == nil {
				out.Related = append(out.Related, rec)
			}
		}
	}
	*r = out
	return nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// rawText returns a JSON string's value, "" for null or absent, and the
// compact JSON text of anything else.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if json.Compact(&buf, raw) == nil {
		return buf.String()
	}
	return string(raw)
}

// rawInt reads an integral JSON number, or a string holding one. 3.0 is 3;
// fractions, overflow and other shapes report false.
func rawInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}
	var n json.Number
	if raw[0] == '"' {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	} else if json.Unmarshal(raw, &n) != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		v, err := safecast.Conv[int](i)
		return v, err == nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	v, err := safecast.Convert[int](f)
	return v, err == nil
}

// Position is a 0-based line and UTF-16 character offset.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open span between two positions on the same document.
type Range struct {
	Start Position
	End   Position
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// RelatedInformation points at a secondary location for a diagnostic.
type RelatedInformation struct {
	URI     string
	Range   Range
	Message string
}

// Diagnostic is a positioned, severity-tagged problem ready for rendering.
type Diagnostic struct {
	Range    Range
	Severity Severity
	Message  string
	Source   string
	Code     Code
	Related  []RelatedInformation
}

// Source is the tag attached to every diagnostic built by this package.
const Source = "chtl"
