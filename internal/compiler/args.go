package compiler

import (
	"fmt"
	"strings"
)

// Mode selects the compiler's build profile.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode validates a mode name; empty selects development.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeDevelopment):
		return ModeDevelopment, nil
	case string(ModeProduction):
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected development|production)", s)
	}
}

// Args are the caller flags of one invocation. The input path is not part
// of Args; the invoker appends it last.
type Args struct {
	ValidateOnly bool
	JSONOutput   bool
	Mode         Mode
	ModulePath   string
	Output       string
	Extra        []string
}

// ValidateArgs are the flags used for editor validation: no output file and
// machine-readable errors.
func ValidateArgs() Args {
	return Args{ValidateOnly: true, JSONOutput: true}
}

// Strings renders the flags in the order the compiler expects.
func (a Args) Strings() []string {
	out := make([]string, 0, 8+len(a.Extra))
	if a.ValidateOnly {
		out = append(out, "--validate-only")
	}
	if a.JSONOutput {
		out = append(out, "--json-output")
	}
	if a.Mode != "" {
		out = append(out, "--"+string(a.Mode))
	}
	if a.ModulePath != "" {
		out = append(out, "--module-path", a.ModulePath)
	}
	if a.Output != "" {
		out = append(out, "-o", a.Output)
	}
	return append(out, a.Extra...)
}
