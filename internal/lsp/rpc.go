package lsp

import (
	"encoding/json"
	"strconv"
)

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendNotification(method string, params any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	}
	return s.send(msg)
}

// sendRequest sends a server-to-client request. onResult, when set, runs on
// the read loop once the client answers.
func (s *Server) sendRequest(method string, params any, onResult func(*rpcMessage)) error {
	id := strconv.FormatInt(s.nextID.Add(1), 10)
	if onResult != nil {
		s.mu.Lock()
		s.pending[id] = onResult
		s.mu.Unlock()
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	}
	if err := s.send(msg); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Server) handleResponse(msg *rpcMessage) {
	if len(msg.ID) == 0 {
		return
	}
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		// Clients may echo string IDs as numbers.
		id = string(msg.ID)
	}
	s.mu.Lock()
	handler, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if msg.Error != nil {
		s.logger.Debug("client request failed", "id", id, "code", msg.Error.Code, "message", msg.Error.Message)
		return
	}
	if ok {
		handler(msg)
	}
}

func (s *Server) showMessage(kind int, message string) {
	if err := s.sendNotification("window/showMessage", showMessageParams{Type: kind, Message: message}); err != nil {
		s.logger.Warn("failed to show message", "err", err)
	}
}

func (s *Server) logMessage(kind int, message string) {
	if err := s.sendNotification("window/logMessage", showMessageParams{Type: kind, Message: message}); err != nil {
		s.logger.Warn("failed to log message", "err", err)
	}
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
