package diag

import "strings"

// Severity defines the importance of a diagnostic. Values match the editor
// protocol's DiagnosticSeverity.
type Severity uint8

const (
	// SevError is for errors.
	SevError Severity = iota + 1
	// SevWarning is for warnings.
	SevWarning
	// SevInfo is for informational diagnostics.
	SevInfo
	// SevHint is for hints.
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInfo:
		return "info"
	case SevHint:
		return "hint"
	}
	return "unknown"
}

// Kind is the compiler's classification of a record.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
	KindHint    Kind = "hint"
)

// ParseKind maps a severity word in any case to a Kind. Unknown words map to
// KindError.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindWarning:
		return KindWarning
	case KindInfo:
		return KindInfo
	case KindHint:
		return KindHint
	default:
		return KindError
	}
}

// Severity returns the severity for k; unrecognized kinds are errors.
func (k Kind) Severity() Severity {
	switch k {
	case KindError:
		return SevError
	case KindWarning:
		return SevWarning
	case KindInfo:
		return SevInfo
	case KindHint:
		return SevHint
	default:
		return SevError
	}
}
