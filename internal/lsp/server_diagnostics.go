package lsp

import (
	"encoding/json"
	"os"
	"path/filepath"

	"chtl/internal/compiler"
	"chtl/internal/config"
	"chtl/internal/diag"
)

const (
	compilerMissingMessage = "CHTL compiler not found. Please check the compiler path in settings."
	openSettingsAction     = "Open Settings"
)

// Publish implements session.Publisher. An empty list clears the document.
func (s *Server) Publish(uri string, version int, diags []diag.Diagnostic) {
	params := publishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toLSPDiagnostics(diags),
	}
	if version > 0 {
		params.Version = &version
	}
	if err := s.sendNotification("textDocument/publishDiagnostics", params); err != nil {
		s.logger.Warn("failed to publish diagnostics", "uri", uri, "err", err)
		return
	}
	s.logger.Debug("published diagnostics", "uri", uri, "version", version, "count", len(diags))
}

func toLSPDiagnostics(diags []diag.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		item := lspDiagnostic{
			Range:    toLSPRange(d.Range),
			Severity: int(d.Severity),
			Code:     string(d.Code),
			Source:   d.Source,
			Message:  d.Message,
		}
		for _, rel := range d.Related {
			item.RelatedInformation = append(item.RelatedInformation, diagnosticRelatedInformation{
				Location: location{URI: rel.URI, Range: toLSPRange(rel.Range)},
				Message:  rel.Message,
			})
		}
		out = append(out, item)
	}
	return out
}

func toLSPRange(r diag.Range) lspRange {
	return lspRange{
		Start: position{Line: r.Start.Line, Character: r.Start.Character},
		End:   position{Line: r.End.Line, Character: r.End.Character},
	}
}

func (s *Server) onCompilerMissing(err *compiler.SpawnError) {
	s.mu.Lock()
	notify := !s.missingNotified
	s.mu.Unlock()
	if notify {
		s.logger.Warn("compiler binary missing", "binary", err.Binary)
		s.notifyCompilerMissing()
	}
}

// notifyCompilerMissing asks the user to fix the compiler path, once per
// compiler configuration.
func (s *Server) notifyCompilerMissing() {
	s.mu.Lock()
	if s.missingNotified {
		s.mu.Unlock()
		return
	}
	s.missingNotified = true
	s.mu.Unlock()

	params := showMessageRequestParams{
		Type:    messageError,
		Message: compilerMissingMessage,
		Actions: []messageActionItem{{Title: openSettingsAction}},
	}
	err := s.sendRequest("window/showMessageRequest", params, func(msg *rpcMessage) {
		var choice *messageActionItem
		if err := json.Unmarshal(msg.Result, &choice); err != nil || choice == nil {
			return
		}
		if choice.Title == openSettingsAction {
			s.openSettings()
		}
	})
	if err != nil {
		s.logger.Warn("failed to notify about missing compiler", "err", err)
	}
}

// openSettings shows the chtl.toml that configures the compiler, or tells
// the user where to put one.
func (s *Server) openSettings() {
	s.mu.Lock()
	path := s.fileConfig.Path
	root := s.workspaceRoot
	canShow := s.clientCaps.Window.ShowDocument.Support
	s.mu.Unlock()

	if path == "" && root != "" {
		candidate := filepath.Join(root, config.FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" && canShow {
		params := showDocumentParams{URI: PathToURI(path), TakeFocus: true}
		if err := s.sendRequest("window/showDocument", params, nil); err != nil {
			s.logger.Warn("failed to open settings", "err", err)
		}
		return
	}
	hint := "Set chtl.compiler.path in the editor settings"
	if root != "" {
		hint += " or [compiler].path in " + filepath.Join(root, config.FileName)
	}
	s.showMessage(messageInfo, hint+".")
}
