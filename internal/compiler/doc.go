// Package compiler is the bridge to the external CHTL compiler.
//
// Invoker materializes editor content into a private temporary file, spawns
// the compiler with the argument grammar
//
//	<binary> [-jar <path>] <fixed flags...> <caller flags...> <input path>
//
// and captures stdout, stderr and the exit status. The temporary file is
// removed before Run returns on every path, including spawn failures and
// panics. A failure to start the process is reported as *SpawnError so that
// callers can tell configuration problems from content problems.
//
// Parse turns the captured output into diag.Records. Two grammars are tried
// in order: a JSON object with an "errors" array (ParseStructured), then the
// line-oriented text form (ParseText). Non-empty output that matches
// neither grammar becomes a single unlocalized error so that a failing
// invocation always surfaces something.
//
// Locate resolves which compiler to run from user configuration and the
// bundled default.
package compiler
