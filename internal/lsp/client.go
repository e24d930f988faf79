package lsp

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/driftwood-editor/driftwood/internal/editor"
)

const shutdownTimeout = 2 * time.Second

// Client is a language server client over one WebSocket connection. It owns
// the handshake and the typed request surface.
//
// Lifecycle: Dial, register callbacks, Initialize, use, Close. Feature
// requests degrade gracefully: a transport or server error is logged and an
// empty result is returned, so a flaky server never breaks the editor.
// Document sync methods return their errors because the caller owns
// resynchronization.
type Client struct {
	endpoint string
	log      *zap.Logger

	transport *Transport
	caps      ServerCapabilities
	ready     atomic.Bool
	closing   atomic.Bool

	mu sync.Mutex

	// OnDiagnostics receives every publishDiagnostics notification. Set
	// before Initialize.
	OnDiagnostics func(PublishDiagnosticsParams)

	// OnDisconnect fires once when the connection drops for a reason other
	// than a local Close. Set before Initialize.
	OnDisconnect func(err error)
}

// Dial connects the WebSocket. The handshake is a separate step so the
// caller can observe the connecting and initializing phases distinctly.
func Dial(ctx context.Context, endpoint string, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	transport, err := DialTransport(ctx, endpoint, log)
	if err != nil {
		return nil, err
	}

	return &Client{endpoint: endpoint, log: log, transport: transport}, nil
}

// Initialize performs the initialize/initialized handshake and starts
// message handling. No other request may be sent before it completes.
func (c *Client) Initialize(ctx context.Context, rootURI DocumentURI) error {
	c.transport.OnNotification("textDocument/publishDiagnostics", c.handleDiagnostics)
	c.transport.OnNotification("window/showMessage", c.handleShowMessage)
	c.transport.OnNotification("window/logMessage", c.handleLogMessage)
	// Answer null: declining every offered action is a valid response, and
	// this client has no UI to ask with.
	c.transport.OnRequest("window/showMessageRequest", func(string, json.RawMessage) (any, *RPCError) {
		return nil, nil
	})
	c.transport.OnClose(c.handleClose)
	c.transport.Start()

	params := InitializeParams{
		RootURI:      rootURI,
		Capabilities: DefaultClientCapabilities(),
	}

	var result InitializeResult
	if err := c.transport.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	if err := c.transport.Notify("initialized", InitializedParams{}); err != nil {
		return err
	}

	c.mu.Lock()
	c.caps = result.Capabilities
	c.mu.Unlock()
	c.ready.Store(true)

	if result.ServerInfo != nil {
		c.log.Info("language server initialized",
			zap.String("server", result.ServerInfo.Name),
			zap.String("version", result.ServerInfo.Version))
	}
	return nil
}

// Capabilities returns the server's declared capabilities.
func (c *Client) Capabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caps
}

// Ready reports whether the handshake has completed.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Close tears the connection down: best-effort shutdown request, exit
// notification, then socket close. Safe to call more than once.
func (c *Client) Close() error {
	if c.closing.Swap(true) {
		return nil
	}

	if c.ready.Load() && !c.transport.IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.transport.Call(ctx, "shutdown", nil, nil); err != nil {
			c.log.Debug("shutdown request failed", zap.Error(err))
		}
		cancel()
		_ = c.transport.Notify("exit", nil)
	}
	return c.transport.Close()
}

func (c *Client) handleClose(err error) {
	c.ready.Store(false)
	if c.closing.Load() {
		return
	}
	if c.OnDisconnect != nil {
		c.OnDisconnect(err)
	}
}

func (c *Client) handleDiagnostics(_ string, params json.RawMessage) {
	var p PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		c.log.Debug("malformed publishDiagnostics", zap.Error(err))
		return
	}
	if c.OnDiagnostics != nil {
		c.OnDiagnostics(p)
	}
}

func (c *Client) handleShowMessage(_ string, params json.RawMessage) {
	var p ShowMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	switch p.Type {
	case MessageTypeError:
		c.log.Warn("server message", zap.String("message", p.Message))
	default:
		c.log.Info("server message", zap.String("message", p.Message))
	}
}

func (c *Client) handleLogMessage(_ string, params json.RawMessage) {
	var p ShowMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	c.log.Debug("server log", zap.Int("type", int(p.Type)), zap.String("message", p.Message))
}

// --- Document sync ---

// DidOpen announces a newly tracked document.
func (c *Client) DidOpen(uri DocumentURI, languageID string, version int, text string) error {
	if !c.ready.Load() {
		return ErrNotConnected
	}
	return c.transport.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    version,
			Text:       text,
		},
	})
}

// DidChange sends the full new content of a changed document.
func (c *Client) DidChange(uri DocumentURI, version int, text string) error {
	if !c.ready.Load() {
		return ErrNotConnected
	}
	return c.transport.Notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: uri},
			Version:                version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: text}},
	})
}

// DidClose announces that a document is no longer tracked.
func (c *Client) DidClose(uri DocumentURI) error {
	if !c.ready.Load() {
		return ErrNotConnected
	}
	return c.transport.Notify("textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})
}

// --- Feature requests ---

// call issues a feature request and hands the raw result to parse. Any
// failure is logged and reported as false so callers can fall back to an
// empty answer.
func (c *Client) call(ctx context.Context, method string, params any, raw *json.RawMessage) bool {
	if !c.ready.Load() {
		return false
	}
	if err := c.transport.Call(ctx, method, params, raw); err != nil {
		c.log.Debug("request failed", zap.String("method", method), zap.Error(err))
		return false
	}
	return true
}

// Completion requests completions at a position.
func (c *Client) Completion(ctx context.Context, uri DocumentURI, pos Position) editor.CompletionList {
	empty := editor.CompletionList{Items: []editor.CompletionItem{}}

	var raw json.RawMessage
	ok := c.call(ctx, "textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: &CompletionContext{TriggerKind: CompletionTriggerKindInvoked},
	}, &raw)
	if !ok {
		return empty
	}

	list, err := ParseCompletionResult(raw)
	if err != nil {
		c.log.Debug("malformed completion result", zap.Error(err))
		return empty
	}
	return list
}

// Hover requests hover content at a position. Nil means no hover.
func (c *Client) Hover(ctx context.Context, uri DocumentURI, pos Position) *editor.HoverResult {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/hover", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}, &raw) {
		return nil
	}

	result, err := ParseHoverResult(raw)
	if err != nil {
		c.log.Debug("malformed hover result", zap.Error(err))
		return nil
	}
	return result
}

// SignatureHelp requests signature help at a position. Nil means none.
func (c *Client) SignatureHelp(ctx context.Context, uri DocumentURI, pos Position) *editor.SignatureHelpResult {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/signatureHelp", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}, &raw) {
		return nil
	}

	result, err := ParseSignatureHelpResult(raw)
	if err != nil {
		c.log.Debug("malformed signature help result", zap.Error(err))
		return nil
	}
	return result
}

// Definition requests the definition locations for the symbol at a position.
func (c *Client) Definition(ctx context.Context, uri DocumentURI, pos Position) []editor.Location {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/definition", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}, &raw) {
		return []editor.Location{}
	}

	locs, err := ParseLocationResult(raw)
	if err != nil {
		c.log.Debug("malformed definition result", zap.Error(err))
		return []editor.Location{}
	}
	return locs
}

// References requests all references to the symbol at a position.
func (c *Client) References(ctx context.Context, uri DocumentURI, pos Position, includeDeclaration bool) []editor.Location {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/references", ReferenceParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		Context: ReferenceContext{IncludeDeclaration: includeDeclaration},
	}, &raw) {
		return []editor.Location{}
	}

	locs, err := ParseLocationResult(raw)
	if err != nil {
		c.log.Debug("malformed references result", zap.Error(err))
		return []editor.Location{}
	}
	return locs
}

// DocumentSymbols requests the document outline.
func (c *Client) DocumentSymbols(ctx context.Context, uri DocumentURI) []editor.SymbolEntry {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/documentSymbol", DocumentSymbolParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	}, &raw) {
		return []editor.SymbolEntry{}
	}

	symbols, err := ParseSymbolResult(raw)
	if err != nil {
		c.log.Debug("malformed document symbol result", zap.Error(err))
		return []editor.SymbolEntry{}
	}
	return symbols
}

// Formatting requests whole-document formatting edits.
func (c *Client) Formatting(ctx context.Context, uri DocumentURI, opts FormattingOptions) []editor.TextEdit {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/formatting", DocumentFormattingParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Options:      opts,
	}, &raw) {
		return []editor.TextEdit{}
	}
	if isNullResult(raw) {
		return []editor.TextEdit{}
	}

	var edits []TextEdit
	if err := json.Unmarshal(raw, &edits); err != nil {
		c.log.Debug("malformed formatting result", zap.Error(err))
		return []editor.TextEdit{}
	}
	return TextEditsToHost(edits)
}

// Rename requests a workspace-wide rename of the symbol at a position.
// Nil means the server declined the rename.
func (c *Client) Rename(ctx context.Context, uri DocumentURI, pos Position, newName string) *editor.WorkspaceEdit {
	var raw json.RawMessage
	if !c.call(ctx, "textDocument/rename", RenameParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     pos,
		},
		NewName: newName,
	}, &raw) {
		return nil
	}
	if isNullResult(raw) {
		return nil
	}

	var we WorkspaceEdit
	if err := json.Unmarshal(raw, &we); err != nil {
		c.log.Debug("malformed rename result", zap.Error(err))
		return nil
	}
	return WorkspaceEditToHost(we)
}
