package main

import (
	"fmt"
	"os"
	"strings"
)

// switchMode is the value of an auto|on|off flag such as --ui or --color.
type switchMode string

const (
	modeAuto switchMode = "auto"
	modeOn   switchMode = "on"
	modeOff  switchMode = "off"
)

func readSwitchMode(flag, value string) (switchMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return modeAuto, nil
	case "on":
		return modeOn, nil
	case "off":
		return modeOff, nil
	default:
		return "", fmt.Errorf("invalid --%s value %q (expected auto|on|off)", flag, value)
	}
}

// enabledFor resolves auto against whether f is a terminal.
func (m switchMode) enabledFor(f *os.File) bool {
	switch m {
	case modeOn:
		return true
	case modeOff:
		return false
	default:
		return isTerminal(f)
	}
}
