package lsp

import (
	"encoding/json"
	"reflect"

	"chtl/internal/config"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	settings, err := config.ParseSettings(params.Settings)
	if err != nil {
		s.logger.Warn("ignoring settings", "err", err)
		s.showMessage(messageWarning, "CHTL: "+err.Error())
		return nil
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.reconfigure()
	s.revalidateOpen()
	return nil
}

// reconfigure merges the editor settings over the file configuration and
// applies the result. Invalid setting values are reported and skipped.
func (s *Server) reconfigure() {
	s.mu.Lock()
	merged, err := s.fileConfig.Apply(s.settings)
	merged = merged.ResolvePaths(s.workspaceRoot)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("invalid settings", "err", err)
		s.showMessage(messageWarning, "CHTL: "+err.Error())
	}
	if missing := s.applyConfig(merged); missing {
		s.notifyCompilerMissing()
	}
}

// applyConfig pushes cfg into the validation manager and resolves the
// compiler. It reports whether the compiler is missing and the user has not
// been told about it for this configuration yet.
func (s *Server) applyConfig(cfg config.Config) bool {
	s.manager.SetEnabled(cfg.Diagnostics.Enable)
	s.manager.SetDelay(cfg.Delay())
	s.manager.SetMaxDiagnostics(cfg.Diagnostics.Max)

	comp, modulePath, err := s.toolchain.Resolve(cfg)
	s.manager.SetRunner(comp)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !reflect.DeepEqual(s.cfg.Compiler, cfg.Compiler) {
		s.missingNotified = false
	}
	s.cfg = cfg
	s.compiler = comp
	s.modulePath = modulePath
	s.compilerErr = err
	if err != nil {
		s.logger.Warn("compiler unavailable", "err", err)
	}
	return err != nil && !s.missingNotified
}

func (s *Server) revalidateOpen() {
	for _, uri := range s.docs.uris() {
		if doc, ok := s.docs.Document(uri); ok {
			s.manager.Trigger(doc)
		}
	}
}

func (s *Server) currentConfig() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
