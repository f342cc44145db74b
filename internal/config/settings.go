package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Settings is the "chtl" section an editor sends through
// initializationOptions or workspace/didChangeConfiguration. Absent fields
// leave the file configuration untouched.
type Settings struct {
	Diagnostics struct {
		Enable *bool `json:"enable"`
		Delay  *int  `json:"delay"`
		Max    *int  `json:"maxProblems"`
	} `json:"diagnostics"`
	Compiler struct {
		Path       *string `json:"path"`
		JavaPath   *string `json:"javaPath"`
		Mode       *string `json:"mode"`
		OutputPath *string `json:"outputPath"`
		ModulePath *string `json:"modulePath"`
		AutoSave   *bool   `json:"autoSave"`
	} `json:"compiler"`
}

// ParseSettings decodes either {"chtl": {...}} or the bare section.
func ParseSettings(raw json.RawMessage) (Settings, error) {
	var settings Settings
	if len(raw) == 0 || string(raw) == "null" {
		return settings, nil
	}
	var wrapped struct {
		CHTL *json.RawMessage `json:"chtl"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return settings, fmt.Errorf("decode settings: %w", err)
	}
	if wrapped.CHTL != nil {
		raw = *wrapped.CHTL
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return settings, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// Apply returns c with the fields set in s replaced. Values that would fail
// Validate are ignored and reported in the returned error; the rest still
// apply.
func (c Config) Apply(s Settings) (Config, error) {
	var errs []error
	if s.Diagnostics.Enable != nil {
		c.Diagnostics.Enable = *s.Diagnostics.Enable
	}
	if s.Diagnostics.Delay != nil {
		if *s.Diagnostics.Delay < 0 {
			errs = append(errs, fmt.Errorf("diagnostics.delay must not be negative, got %d", *s.Diagnostics.Delay))
		} else {
			c.Diagnostics.DelayMS = *s.Diagnostics.Delay
		}
	}
	if s.Diagnostics.Max != nil {
		if *s.Diagnostics.Max < 0 {
			errs = append(errs, fmt.Errorf("diagnostics.maxProblems must not be negative, got %d", *s.Diagnostics.Max))
		} else {
			c.Diagnostics.Max = *s.Diagnostics.Max
		}
	}
	if s.Compiler.Path != nil {
		c.Compiler.Path = *s.Compiler.Path
	}
	if s.Compiler.JavaPath != nil {
		c.Compiler.Java = *s.Compiler.JavaPath
		if c.Compiler.Java == "" {
			c.Compiler.Java = defaultJava
		}
	}
	if s.Compiler.Mode != nil {
		if mode, err := parseModeSetting(*s.Compiler.Mode); err != nil {
			errs = append(errs, err)
		} else {
			c.Compiler.Mode = mode
		}
	}
	if s.Compiler.OutputPath != nil {
		c.Compiler.Output = *s.Compiler.OutputPath
	}
	if s.Compiler.ModulePath != nil {
		c.Compiler.ModulePath = *s.Compiler.ModulePath
	}
	if s.Compiler.AutoSave != nil {
		c.Compiler.AutoCompile = *s.Compiler.AutoSave
	}
	return c, errors.Join(errs...)
}
