package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chtl/internal/build"
)

func TestProgressModelCountsFinishedFiles(t *testing.T) {
	events := make(chan build.Event)
	model := NewProgressModel("compiling", "/src", []string{"/src/a.chtl", "/src/b.chtl"}, events).(*progressModel)

	model.applyEvent(build.Event{File: "/src/a.chtl", Status: build.StatusWorking})
	model.applyEvent(build.Event{File: "/src/a.chtl", Status: build.StatusDone, Elapsed: 120 * time.Millisecond})
	model.applyEvent(build.Event{File: "/src/b.chtl", Status: build.StatusError, Err: errors.New("boom")})
	model.applyEvent(build.Event{File: "/src/b.chtl", Status: build.StatusError})
	model.applyEvent(build.Event{File: "/elsewhere.chtl", Status: build.StatusDone})

	assert.Equal(t, 2, model.finished)
	assert.Equal(t, 1, model.failed)

	view := model.View()
	assert.Contains(t, view, "compiling 2/2, 1 failed")
	assert.Contains(t, view, "a.chtl (120ms)")
	assert.False(t, strings.Contains(view, "/src/a.chtl"), "paths are shown relative to the base dir")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "ab", truncate("abcdefghij", 2))
}
