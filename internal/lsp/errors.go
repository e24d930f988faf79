package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the bridge.
var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("lsp: connection shut down")

	// ErrNotConnected indicates the handshake has not completed.
	ErrNotConnected = errors.New("lsp: not connected")

	// ErrDisposed indicates the connection has been disposed.
	ErrDisposed = errors.New("lsp: connection disposed")

	// ErrUnsupportedLanguage indicates no endpoint path is configured for
	// the language id.
	ErrUnsupportedLanguage = errors.New("lsp: no endpoint for language")
)

// RPCError is a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC and LSP error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
	CodeContentModified      = -32801
)
