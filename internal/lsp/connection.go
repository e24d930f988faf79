package lsp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/driftwood-editor/driftwood/internal/editor"
)

// State is the connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateInitializing
	StateConnected
	StateReconnecting
	StateDisposed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connection binds one buffer to one language server: it owns the client
// lifecycle, keeps the server's view of the document current, installs
// feature providers while connected, and routes diagnostics into the marker
// store under its owner key.
//
// Reconnection only happens after a handshake has succeeded; a connection
// that never got past initialize fails outright. Once disposed, a connection
// never touches the registry or marker store again.
type Connection struct {
	cfg      Config
	endpoint *Endpoint
	language string
	uri      DocumentURI
	owner    string

	buffer   editor.Buffer
	registry *editor.Registry
	markers  *editor.MarkerStore
	log      *zap.Logger

	state    atomic.Int32
	disposed atomic.Bool

	mu        sync.Mutex
	client    *Client
	regs      *RegistrationSet
	bufferSub editor.Disposable
	version   int
	everReady bool

	// OnStateChange fires on every state transition. Optional.
	OnStateChange func(State)

	// OnError fires when sync or reconnection fails. Optional.
	OnError func(error)
}

// NewConnection validates the language against the endpoint table and builds
// a disconnected connection. An unsupported language fails here, before any
// network activity.
func NewConnection(cfg Config, registry *editor.Registry, markers *editor.MarkerStore, buffer editor.Buffer, language string, uri DocumentURI, log *zap.Logger) (*Connection, error) {
	if log == nil {
		log = zap.NewNop()
	}

	endpoint, err := NewEndpoint(cfg.Endpoint, cfg.Languages)
	if err != nil {
		return nil, err
	}
	if !endpoint.Supports(language) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	return &Connection{
		cfg:      cfg,
		endpoint: endpoint,
		language: language,
		uri:      uri,
		owner:    "lsp/" + language,
		buffer:   buffer,
		registry: registry,
		markers:  markers,
		log:      log.With(zap.String("language", language)),
	}, nil
}

// State returns the current lifecycle phase.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Version returns the last document version sent to the server. Versions
// only ever grow, across reconnects included.
func (c *Connection) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Owner returns the marker owner key for this connection.
func (c *Connection) Owner() string {
	return c.owner
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}

func (c *Connection) reportError(err error) {
	c.log.Warn("connection error", zap.Error(err))
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Connect dials, performs the handshake, opens the document, and installs
// providers. On failure the connection returns to disconnected and does not
// retry; automatic retry is reserved for drops after a successful handshake.
func (c *Connection) Connect(ctx context.Context) error {
	if c.disposed.Load() {
		return ErrDisposed
	}

	wsURL, err := c.endpoint.URL(c.language)
	if err != nil {
		return err
	}

	// Connecting over a live session replaces it.
	c.mu.Lock()
	old := c.client
	c.client = nil
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	c.setState(StateConnecting)
	client, err := Dial(ctx, wsURL, c.log)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	client.OnDiagnostics = c.handleDiagnostics
	client.OnDisconnect = c.handleDisconnect

	c.setState(StateInitializing)
	if err := client.Initialize(ctx, DocumentURI(c.cfg.RootURI)); err != nil {
		_ = client.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("handshake: %w", err)
	}

	// Dispose may have raced the handshake; never keep a socket open past it.
	if c.disposed.Load() {
		_ = client.Close()
		return ErrDisposed
	}

	c.mu.Lock()
	c.client = client
	c.everReady = true
	c.version++
	version := c.version
	c.mu.Unlock()

	if err := client.DidOpen(c.uri, c.language, version, c.buffer.Value()); err != nil {
		_ = client.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("open document: %w", err)
	}

	c.installProviders(client)
	c.subscribeBuffer()
	c.setState(StateConnected)
	c.log.Info("connected", zap.String("url", wsURL))
	return nil
}

// installProviders replaces any previous registration set, so repeated
// connects never stack duplicate providers.
func (c *Connection) installProviders(client *Client) {
	c.mu.Lock()
	old := c.regs
	c.mu.Unlock()
	if old != nil {
		old.Dispose()
	}

	regs := RegisterProviders(c.registry, client, c.language, c.uri)

	c.mu.Lock()
	c.regs = regs
	c.mu.Unlock()
}

func (c *Connection) subscribeBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bufferSub != nil {
		return
	}
	c.bufferSub = c.buffer.OnDidChangeContent(c.handleBufferChange)
}

// handleBufferChange pushes the full new content with the next version.
func (c *Connection) handleBufferChange() {
	if c.disposed.Load() {
		return
	}

	c.mu.Lock()
	client := c.client
	c.version++
	version := c.version
	c.mu.Unlock()

	if client == nil || !client.Ready() {
		return
	}
	if err := client.DidChange(c.uri, version, c.buffer.Value()); err != nil {
		c.reportError(fmt.Errorf("sync document: %w", err))
	}
}

// handleDiagnostics replaces this owner's markers for the published URI.
func (c *Connection) handleDiagnostics(params PublishDiagnosticsParams) {
	if c.disposed.Load() {
		return
	}
	c.markers.Set(string(params.URI), c.owner, DiagnosticsToMarkers(params.Diagnostics))
}

// handleDisconnect runs when the socket drops out from under an established
// connection. Providers come down immediately; reconnection runs in the
// background, bounded by config.
func (c *Connection) handleDisconnect(err error) {
	if c.disposed.Load() {
		return
	}

	c.teardownProviders()
	c.setState(StateDisconnected)
	if err != nil {
		c.reportError(fmt.Errorf("connection lost: %w", err))
	}

	c.mu.Lock()
	ever := c.everReady
	c.mu.Unlock()
	if ever && c.cfg.Reconnect.Enabled && c.cfg.Reconnect.MaxAttempts > 0 {
		go c.reconnectLoop()
	}
}

func (c *Connection) teardownProviders() {
	c.mu.Lock()
	regs := c.regs
	c.regs = nil
	c.mu.Unlock()
	if regs != nil {
		regs.Dispose()
	}
}

func (c *Connection) reconnectLoop() {
	for attempt := 1; attempt <= c.cfg.Reconnect.MaxAttempts; attempt++ {
		if c.disposed.Load() {
			return
		}

		c.setState(StateReconnecting)
		time.Sleep(c.cfg.ReconnectDelay())
		if c.disposed.Load() {
			return
		}

		c.log.Info("reconnecting",
			zap.Int("attempt", attempt),
			zap.Int("max", c.cfg.Reconnect.MaxAttempts))

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout())
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		c.reportError(fmt.Errorf("reconnect attempt %d: %w", attempt, err))
	}

	c.setState(StateDisconnected)
	c.reportError(fmt.Errorf("reconnect: gave up after %d attempts", c.cfg.Reconnect.MaxAttempts))
}

// Dispose permanently tears the connection down: providers out, buffer
// subscription released, markers cleared, socket closed. Safe to call more
// than once; after it, every callback is inert.
func (c *Connection) Dispose() {
	if c.disposed.Swap(true) {
		return
	}

	c.teardownProviders()

	c.mu.Lock()
	client := c.client
	c.client = nil
	sub := c.bufferSub
	c.bufferSub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Dispose()
	}
	if client != nil {
		_ = client.Close()
	}

	c.markers.Set(string(c.uri), c.owner, nil)
	c.setState(StateDisposed)
	c.log.Info("disposed")
}
