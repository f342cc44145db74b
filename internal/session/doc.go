// Package session schedules and runs document validations against the
// external compiler.
//
// A Manager owns one session per open document. Edits go through Schedule,
// which debounces them; each fire stamps the document version, runs the
// compiler, parses its output, maps it to diagnostics and, only if the
// document still has the stamped version, replaces the published set for
// that document.
//
// Validations of the same document may overlap. An edit never kills a
// running compiler; it only guarantees that the older result is discarded.
// Closing a document or shutting the manager down cancels in-flight runs.
//
// Session states move Idle → Pending (timer armed) → Running (compiler in
// flight) → Idle.
package session
