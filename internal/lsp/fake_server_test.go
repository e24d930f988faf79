package lsp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// wireMsg is one message observed on the fake server's socket.
type wireMsg struct {
	method string
	raw    string
}

// fakeServer is a scripted language server behind a real WebSocket. Requests
// are answered from the results table; everything observed is pushed onto
// channels for assertions.
type fakeServer struct {
	t        *testing.T
	httpSrv  *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	results map[string]string
	errs    map[string]string
	silent  map[string]bool

	dials atomic.Int32

	requests      chan wireMsg
	notifications chan wireMsg
	replies       chan wireMsg
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	s := &fakeServer{
		t:             t,
		results:       map[string]string{},
		errs:          map[string]string{},
		silent:        map[string]bool{},
		requests:      make(chan wireMsg, 64),
		notifications: make(chan wireMsg, 64),
		replies:       make(chan wireMsg, 64),
	}
	s.results["initialize"] = `{"capabilities":{}}`
	s.results["shutdown"] = `null`

	s.httpSrv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.close)
	return s
}

// respond scripts the raw JSON result for a request method.
func (s *fakeServer) respond(method, rawResult string) {
	s.mu.Lock()
	s.results[method] = rawResult
	s.mu.Unlock()
}

// silence makes the server swallow requests for a method without answering.
func (s *fakeServer) silence(method string) {
	s.mu.Lock()
	s.silent[method] = true
	s.mu.Unlock()
}

// fail scripts a JSON-RPC error object for a request method.
func (s *fakeServer) fail(method, rawError string) {
	s.mu.Lock()
	s.errs[method] = rawError
	s.mu.Unlock()
}

// url returns the ws:// address of the server.
func (s *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http")
}

// send pushes a raw server-to-client message on the latest connection.
func (s *fakeServer) send(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		s.t.Fatal("send: no client connected")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		s.t.Logf("fake server send: %v", err)
	}
}

// dropClient closes the latest connection from the server side.
func (s *fakeServer) dropClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) > 0 {
		_ = s.conns[len(s.conns)-1].Close()
	}
}

func (s *fakeServer) close() {
	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.httpSrv.Close()
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.dials.Add(1)

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(conn, data)
	}
}

func (s *fakeServer) dispatch(conn *websocket.Conn, data []byte) {
	method := gjson.GetBytes(data, "method")
	id := gjson.GetBytes(data, "id")

	switch {
	case method.Exists() && id.Exists():
		s.requests <- wireMsg{method: method.String(), raw: string(data)}
		s.reply(conn, method.String(), id.Raw)
	case method.Exists():
		s.notifications <- wireMsg{method: method.String(), raw: string(data)}
	default:
		s.replies <- wireMsg{raw: string(data)}
	}
}

func (s *fakeServer) reply(conn *websocket.Conn, method, rawID string) {
	s.mu.Lock()
	result, hasResult := s.results[method]
	errObj, hasErr := s.errs[method]
	muted := s.silent[method]
	s.mu.Unlock()

	if muted {
		return
	}

	msg, _ := sjson.SetRaw(`{"jsonrpc":"2.0"}`, "id", rawID)
	switch {
	case hasErr:
		msg, _ = sjson.SetRaw(msg, "error", errObj)
	case hasResult:
		msg, _ = sjson.SetRaw(msg, "result", result)
	default:
		msg, _ = sjson.SetRaw(msg, "result", "null")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		s.t.Logf("fake server reply: %v", err)
	}
}

// waitNotification blocks for the next notification with the given method,
// skipping others.
func (s *fakeServer) waitNotification(t *testing.T, method string) wireMsg {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-s.notifications:
			if msg.method == method {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s notification", method)
			return wireMsg{}
		}
	}
}

// waitRequest blocks for the next request with the given method.
func (s *fakeServer) waitRequest(t *testing.T, method string) wireMsg {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-s.requests:
			if msg.method == method {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s request", method)
			return wireMsg{}
		}
	}
}

// waitReply blocks for the next client response to a server-sent request.
func (s *fakeServer) waitReply(t *testing.T) wireMsg {
	t.Helper()
	select {
	case msg := <-s.replies:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client reply")
		return wireMsg{}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
