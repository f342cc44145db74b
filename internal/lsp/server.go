package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"chtl/internal/cache"
	"chtl/internal/config"
	"chtl/internal/session"
	"chtl/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Config is the file configuration. When ConfigFixed is false it is
	// replaced by the chtl.toml discovered from the workspace root at
	// initialize.
	Config      config.Config
	ConfigFixed bool
	Toolchain   Toolchain
	// Cache stores validation results across documents; nil disables it.
	Cache  *cache.Store
	Logger *slog.Logger
}

// Server handles stdio JSON-RPC for the CHTL language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	logger *slog.Logger

	docs      *documentStore
	manager   *session.Manager
	toolchain Toolchain

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup
	nextID atomic.Int64

	mu                sync.Mutex
	fileConfig        config.Config
	configFixed       bool
	settings          config.Settings
	cfg               config.Config
	compiler          Compiler
	modulePath        string
	compilerErr       error
	missingNotified   bool
	workspaceRoot     string
	clientCaps        clientCapabilities
	shutdownRequested bool
	pending           map[string]func(*rpcMessage)
	compileCancel     context.CancelFunc
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	toolchain := opts.Toolchain
	if toolchain == nil {
		toolchain = LocalToolchain{Logger: logger}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		in:          bufio.NewReader(in),
		out:         bufio.NewWriter(out),
		logger:      logger,
		docs:        newDocumentStore(),
		toolchain:   toolchain,
		ctx:         ctx,
		cancel:      cancel,
		fileConfig:  opts.Config,
		configFixed: opts.ConfigFixed,
		cfg:         opts.Config,
		pending:     make(map[string]func(*rpcMessage)),
	}
	s.manager = session.NewManager(session.Options{
		Source:            s.docs,
		Publisher:         s,
		OnCompilerMissing: s.onCompilerMissing,
		Cache:             opts.Cache,
		Delay:             opts.Config.Delay(),
		MaxDiagnostics:    opts.Config.Diagnostics.Max,
		Logger:            logger.With("component", "session"),
	})
	s.applyConfig(opts.Config)
	return s
}

// Run serves LSP requests until exit or end of input. Every validation and
// compile task is stopped before it returns.
func (s *Server) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	defer s.stop()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse message", "err", err)
			if sendErr := s.sendError(json.RawMessage("null"), codeParseError, "parse error"); sendErr != nil {
				return sendErr
			}
			continue
		}
		if msg.Method == "" {
			s.handleResponse(&msg)
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	s.logger.Debug("message", "method", msg.Method, "request", len(msg.ID) > 0)
	s.mu.Lock()
	shutdown := s.shutdownRequested
	s.mu.Unlock()
	if shutdown && msg.Method != "exit" {
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeInvalidRequest, "server is shutting down")
		}
		return nil
	}
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized()
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if shutdown {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "workspace/didChangeWatchedFiles":
		return s.handleDidChangeWatchedFiles(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "$/cancelRequest", "$/setTrace":
		return nil
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = URIToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = URIToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	var warnings []string
	s.mu.Lock()
	s.workspaceRoot = root
	s.clientCaps = params.Capabilities
	if !s.configFixed && root != "" {
		if cfg, err := config.Discover(root); err != nil {
			warnings = append(warnings, err.Error())
		} else {
			s.fileConfig = cfg
		}
	}
	if settings, err := config.ParseSettings(params.InitializationOptions); err != nil {
		warnings = append(warnings, err.Error())
	} else {
		s.settings = settings
	}
	s.mu.Unlock()

	for _, w := range warnings {
		s.logger.Warn("configuration problem", "err", w)
		s.showMessage(messageWarning, "CHTL: "+w)
	}
	s.logger.Info("initialize", "root", root)

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			ExecuteCommandProvider: &executeCommandOptions{
				Commands: []string{commandCompile, commandCompileAll},
			},
		},
		ServerInfo: &serverInfo{Name: "chtl", Version: version.Current().Version},
	}
	if err := s.sendResponse(msg.ID, result); err != nil {
		return err
	}
	s.reconfigure()
	return nil
}

func (s *Server) handleInitialized() error {
	s.mu.Lock()
	dynamic := s.clientCaps.Workspace.DidChangeWatchedFiles.DynamicRegistration
	s.mu.Unlock()
	if !dynamic {
		return nil
	}
	params := registrationParams{Registrations: []registration{{
		ID:     "chtl-watch",
		Method: "workspace/didChangeWatchedFiles",
		RegisterOptions: didChangeWatchedFilesRegistrationOptions{
			Watchers: []fileSystemWatcher{{GlobPattern: "**/*.chtl"}},
		},
	}}}
	return s.sendRequest("client/registerCapability", params, nil)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.stop()
	return s.sendResponse(msg.ID, nil)
}

// stop cancels compile tasks, shuts the validation manager down and waits
// for everything in flight. It is idempotent.
func (s *Server) stop() {
	s.cancel()
	s.manager.Shutdown()
	s.tasks.Wait()
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	doc := s.docs.open(uri, params.TextDocument.Version, params.TextDocument.Text)
	s.manager.Trigger(doc)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	doc := s.docs.change(uri, params.TextDocument.Version, params.ContentChanges)
	s.manager.Schedule(doc)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	doc, ok := s.docs.save(uri, params.Text)
	if !ok {
		return nil
	}
	s.manager.Trigger(doc)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.docs.close(uri)
	s.manager.Close(uri)
	return nil
}

// invalidNotification logs malformed params. Requests get an error reply;
// notifications have nobody to answer, so the connection stays up.
func (s *Server) invalidNotification(msg *rpcMessage, err error) error {
	s.logger.Warn("invalid params", "method", msg.Method, "err", err)
	if len(msg.ID) > 0 {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	return nil
}
