package lsp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"chtl/internal/build"
)

// handleDidChangeWatchedFiles revalidates open documents changed on disk
// and clears diagnostics of deleted files. With auto-compile on, changed
// files are also compiled.
func (s *Server) handleDidChangeWatchedFiles(msg *rpcMessage) error {
	var params didChangeWatchedFilesParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.invalidNotification(msg, err)
	}
	autoCompile := s.currentConfig().Compiler.AutoCompile
	for _, change := range params.Changes {
		uri := canonicalURI(change.URI)
		path := URIToPath(uri)
		if path == "" || !strings.EqualFold(filepath.Ext(path), build.Ext) {
			continue
		}
		switch change.Type {
		case fileCreated:
			s.logger.Debug("file created", "path", path)
		case fileChanged:
			if doc, ok := s.docs.Document(uri); ok {
				s.manager.Trigger(doc)
			}
			if autoCompile {
				s.spawnTask(func(ctx context.Context) { s.compileFile(ctx, path) })
			}
		case fileDeleted:
			if _, open := s.docs.Document(uri); open {
				s.manager.Close(uri)
				continue
			}
			s.Publish(uri, 0, nil)
		}
	}
	return nil
}
