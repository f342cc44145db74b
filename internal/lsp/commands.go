package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"chtl/internal/build"
)

const (
	commandCompile    = "chtl.compile"
	commandCompileAll = "chtl.compileAll"
)

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	switch params.Command {
	case commandCompile:
		var uri string
		if len(params.Arguments) == 0 || json.Unmarshal(params.Arguments[0], &uri) != nil {
			return s.sendError(msg.ID, codeInvalidParams, commandCompile+" expects a document URI")
		}
		path := URIToPath(uri)
		if path == "" {
			return s.sendError(msg.ID, codeInvalidParams, "not a file URI: "+uri)
		}
		s.spawnTask(func(ctx context.Context) {
			res := s.compileFile(ctx, path)
			s.reply(msg.ID, res)
		})
		return nil
	case commandCompileAll:
		s.mu.Lock()
		root := s.workspaceRoot
		s.mu.Unlock()
		if root == "" {
			return s.sendError(msg.ID, codeInvalidRequest, "no workspace folder is open")
		}
		s.spawnTask(func(ctx context.Context) {
			res := s.compileAll(ctx, root)
			s.reply(msg.ID, res)
		})
		return nil
	default:
		return s.sendError(msg.ID, codeInvalidParams, "unknown command: "+params.Command)
	}
}

func (s *Server) spawnTask(fn func(ctx context.Context)) {
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn(s.ctx)
	}()
}

func (s *Server) reply(id json.RawMessage, res compileResult) {
	if err := s.sendResponse(id, res); err != nil {
		s.logger.Warn("failed to answer command", "err", err)
	}
}

func (s *Server) buildOptions() (Compiler, build.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := build.Options{
		Mode:       s.cfg.CompileMode(),
		ModulePath: s.modulePath,
		Logger:     s.logger.With("component", "build"),
	}
	if root := s.cfg.Root(s.workspaceRoot); root != "" {
		opts.OutputDir = s.cfg.OutputDir(root)
	}
	return s.compiler, opts, s.compilerErr
}

func (s *Server) compileFile(ctx context.Context, path string) compileResult {
	comp, opts, compErr := s.buildOptions()
	if compErr != nil {
		s.notifyCompilerMissing()
	}
	s.logMessage(messageInfo, "Compiling "+path+"...")
	res, err := build.CompileFile(ctx, comp, path, opts)
	if err != nil {
		return compileResult{Canceled: true, Message: "Compilation cancelled"}
	}
	out := compileResult{Outputs: []string{res.Output}}
	if res.Success {
		out.Compiled = 1
		out.Message = "CHTL compiled successfully: " + filepath.Base(res.Output)
		s.logMessage(messageInfo, "Compilation successful: "+res.Output)
		s.showMessage(messageInfo, out.Message)
		return out
	}
	out.Failed = 1
	out.Message = "CHTL compilation failed: " + filepath.Base(path)
	s.logMessage(messageError, "Compilation failed: "+path)
	for _, line := range build.ErrorLines(res.Records) {
		s.logMessage(messageError, line)
	}
	s.showMessage(messageError, out.Message)
	return out
}

// compileAll compiles every CHTL file under root. A new run cancels the one
// still in progress.
func (s *Server) compileAll(ctx context.Context, root string) compileResult {
	files, err := build.Discover(root)
	if err != nil {
		s.logger.Warn("failed to list CHTL files", "root", root, "err", err)
		s.showMessage(messageError, "CHTL: "+err.Error())
		return compileResult{Message: err.Error()}
	}
	if len(files) == 0 {
		const none = "No CHTL files found in workspace"
		s.showMessage(messageInfo, none)
		return compileResult{Message: none}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	if s.compileCancel != nil {
		s.compileCancel()
	}
	s.compileCancel = cancel
	s.mu.Unlock()

	comp, opts, compErr := s.buildOptions()
	if compErr != nil {
		s.notifyCompilerMissing()
	}
	var finished atomic.Int32
	opts.Progress = build.FuncSink(func(evt build.Event) {
		switch evt.Status {
		case build.StatusDone, build.StatusError:
			n := finished.Add(1)
			s.logMessage(messageLog, fmt.Sprintf("%d/%d - %s: %s", n, len(files), filepath.Base(evt.File), evt.Status))
		}
	})
	summary := build.CompileAll(ctx, comp, files, opts)

	out := compileResult{
		Compiled: summary.Compiled,
		Failed:   summary.Failed,
		Skipped:  summary.Skipped,
		Canceled: summary.Canceled,
		Message:  summary.Message(),
	}
	for _, res := range summary.Results {
		if res.Success {
			out.Outputs = append(out.Outputs, res.Output)
			continue
		}
		s.logMessage(messageError, "Compilation failed: "+res.Path)
		for _, line := range build.ErrorLines(res.Records) {
			s.logMessage(messageError, line)
		}
	}
	s.showMessage(messageInfo, out.Message)
	return out
}
