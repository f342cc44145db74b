package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"chtl/internal/build"
	"chtl/internal/ui"
)

// runCompileWithUI compiles files while a progress view renders the events.
// The summary is returned once both the build and the view have finished.
func runCompileWithUI(ctx context.Context, title, baseDir string, c build.Compiler, files []string, opts build.Options) (build.Summary, error) {
	events := make(chan build.Event, 256)
	outcome := make(chan build.Summary, 1)

	go func() {
		opts.Progress = build.ChannelSink{Ch: events}
		outcome <- build.CompileAll(ctx, c, files, opts)
		close(events)
	}()

	model := ui.NewProgressModel(title, baseDir, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// The view may quit before the build is done; keep the sink unblocked.
	go func() {
		for range events {
		}
	}()
	summary := <-outcome
	return summary, uiErr
}
