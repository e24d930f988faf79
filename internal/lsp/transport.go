package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Transport speaks JSON-RPC 2.0 over a single WebSocket. Each WebSocket
// message carries exactly one JSON-RPC message; there is no Content-Length
// framing on this transport.
type Transport struct {
	conn *websocket.Conn
	log  *zap.Logger

	// writeMu serializes writes; gorilla allows at most one concurrent
	// writer per connection.
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan *Response
	handlers map[string]NotificationHandler
	requests map[string]RequestHandler

	nextID atomic.Int64
	closed atomic.Bool
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	onClose   func(err error)
}

// NotificationHandler handles a server-pushed notification. Handlers run on
// the read loop goroutine and must not block.
type NotificationHandler func(method string, params json.RawMessage)

// RequestHandler answers a server-to-client request. A nil result is sent
// as a JSON null.
type RequestHandler func(method string, params json.RawMessage) (any, *RPCError)

// Request is an outgoing JSON-RPC request or notification.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an incoming JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type serverReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// DialTransport opens a WebSocket to the given ws(s) URL. The caller must
// register handlers and then call Start before issuing requests.
func DialTransport(ctx context.Context, endpoint string, log *zap.Logger) (*Transport, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	return &Transport{
		conn:     conn,
		log:      log,
		pending:  make(map[int64]chan *Response),
		handlers: make(map[string]NotificationHandler),
		requests: make(map[string]RequestHandler),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the read loop. Call once, after handler registration.
func (t *Transport) Start() {
	go t.readLoop()
}

// OnNotification registers a handler for a server notification method.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// OnRequest registers a handler for a server-to-client request method.
func (t *Transport) OnRequest(method string, handler RequestHandler) {
	t.mu.Lock()
	t.requests[method] = handler
	t.mu.Unlock()
}

// OnClose registers a callback invoked exactly once when the transport
// stops, with the read error that ended it (nil for a local Close).
func (t *Transport) OnClose(fn func(err error)) {
	t.onClose = fn
}

// Call sends a request and waits for the matching response. Request ids are
// unique for the lifetime of the transport.
func (t *Transport) Call(ctx context.Context, method string, params, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *Response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := &Request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := t.send(req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		// Connection closed with the request in flight; the pending entry
		// is settled here, never left dangling.
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 && string(resp.Result) != "null" {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&Request{JSONRPC: "2.0", Method: method, Params: params})
}

// Close shuts the transport down and settles every pending request.
func (t *Transport) Close() error {
	t.closeWith(nil)
	return nil
}

// IsClosed reports whether the transport has stopped.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

func (t *Transport) closeWith(err error) {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = err
		close(t.done)
		_ = t.conn.Close()

		t.mu.Lock()
		t.pending = make(map[int64]chan *Response)
		t.mu.Unlock()

		if t.onClose != nil {
			t.onClose(err)
		}
	})
}

func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *Transport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() {
				// Local close already settled everything.
				t.closeWith(nil)
			} else {
				t.closeWith(err)
			}
			return
		}
		t.dispatch(data)
	}
}

// dispatch routes one wire message. The discriminant is explicit: a message
// with an id and no method is a response; with both it is a server request;
// with only a method it is a notification.
func (t *Transport) dispatch(data []byte) {
	method := gjson.GetBytes(data, "method")
	id := gjson.GetBytes(data, "id")

	switch {
	case !method.Exists() && id.Exists():
		t.handleResponse(data)
	case method.Exists() && id.Exists():
		t.handleServerRequest(method.String(), data)
	case method.Exists():
		t.handleNotification(method.String(), data)
	default:
		t.log.Debug("dropping unroutable message")
	}
}

func (t *Transport) handleResponse(data []byte) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.log.Debug("malformed response", zap.Error(err))
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if ok {
		ch <- &resp
	}
}

func (t *Transport) handleServerRequest(method string, data []byte) {
	t.mu.Lock()
	handler := t.requests[method]
	t.mu.Unlock()

	// Echo the id verbatim; servers may use numbers or strings.
	rawID := json.RawMessage(gjson.GetBytes(data, "id").Raw)

	reply := serverReply{JSONRPC: "2.0", ID: rawID}
	if handler == nil {
		reply.Error = &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + method}
	} else {
		params := json.RawMessage(gjson.GetBytes(data, "params").Raw)
		result, rpcErr := handler(method, params)
		reply.Result = result
		reply.Error = rpcErr
	}

	if err := t.send(&reply); err != nil {
		t.log.Debug("server request reply failed", zap.String("method", method), zap.Error(err))
	}
}

func (t *Transport) handleNotification(method string, data []byte) {
	t.mu.Lock()
	handler := t.handlers[method]
	t.mu.Unlock()

	if handler != nil {
		params := json.RawMessage(gjson.GetBytes(data, "params").Raw)
		handler(method, params)
	}
}
