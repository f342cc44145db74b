package session

import (
	"context"

	"chtl/internal/compiler"
	"chtl/internal/diag"
)

// Document is a snapshot of an editor document.
type Document struct {
	URI     string
	Version int
	Text    string
}

// DocumentSource returns the current snapshot of an open document.
type DocumentSource interface {
	Document(uri string) (Document, bool)
}

// Publisher receives the full diagnostic set for a document. A nil or empty
// list clears it.
type Publisher interface {
	Publish(uri string, version int, diags []diag.Diagnostic)
}

// Runner runs the compiler on in-memory content. *compiler.Invoker
// implements it.
type Runner interface {
	Run(ctx context.Context, content string, args []string) (compiler.Result, error)
	Fingerprint() string
}

// State is the lifecycle state of a document session.
type State uint8

const (
	StateIdle State = iota
	StatePending
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Outcome describes what happened to one validation.
type Outcome uint8

const (
	// OutcomePublished means the diagnostics replaced the published set.
	OutcomePublished Outcome = iota + 1
	// OutcomeStale means the document changed or closed while the compiler
	// ran, so the result was dropped.
	OutcomeStale
	// OutcomeCanceled means the run was cancelled by close or shutdown.
	OutcomeCanceled
	// OutcomeDisabled means validation is switched off.
	OutcomeDisabled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeStale:
		return "stale"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
