// Package diag defines the diagnostic model shared by the compiler bridge,
// the validation sessions and the language server.
//
// # Data model
//
// Record is what the external CHTL compiler reports: a kind (error, warning,
// info, hint), a message, an optional 1-based position, an optional length
// and code, and nested related records. A Record with no line or column is
// unlocalized.
//
// Diagnostic is the renderable form of a Record. It carries a 0-based range
// measured in UTF-16 code units (the editor protocol's convention), a
// Severity, the message, the source tag "chtl", the compiler code and a flat
// list of related locations in the same document.
//
// # Mapping
//
// ToDiagnostic positions a Record against the document text. When the
// compiler gives no length, the range covers the first word at or after the
// reported column; unlocalized records land on the first character of the
// document.
//
// # Collection
//
// Bag collects diagnostics for one document under a size limit and offers
// deterministic sorting and deduplication for CLI output.
//
// Package diag performs no IO and never mutates a Diagnostic after it has
// been built.
package diag
