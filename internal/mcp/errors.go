package mcp

import (
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorKind is the stable machine-readable error classification
// returned to tool callers.
type ErrorKind string

// Tool error kinds.
const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindNotFound     ErrorKind = "not_found"
	KindRateLimited  ErrorKind = "rate_limited"
	KindConflict     ErrorKind = "conflict"
	KindDegraded     ErrorKind = "degraded"
	KindInternal     ErrorKind = "internal"
)

// toolError is the JSON body of every error result.
type toolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// errorResult builds a tool error with a stable kind and a safe
// message.
func errorResult(kind ErrorKind, message string) *mcp.CallToolResult {
	body, err := json.Marshal(map[string]toolError{
		"error": {Kind: kind, Message: message},
	})
	if err != nil {
		return mcp.NewToolResultError(string(kind))
	}
	result := mcp.NewToolResultError(string(body))
	return result
}

// internalError logs the full error and returns a result whose detail
// depends on production mode: masked there, verbatim in development.
func (s *Server) internalError(op, safeMessage string, err error) *mcp.CallToolResult {
	s.logger.Error("tool call failed",
		slog.String("tool", op), slog.String("error", err.Error()))
	message := safeMessage
	if !s.production {
		message = safeMessage + ": " + err.Error()
	}
	return errorResult(KindInternal, message)
}
