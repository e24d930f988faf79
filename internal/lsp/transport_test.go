package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func dialTest(t *testing.T, srv *fakeServer) *Transport {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := DialTransport(ctx, srv.url(), nil)
	if err != nil {
		t.Fatalf("DialTransport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTransport_CallRoundTrip(t *testing.T) {
	srv := newFakeServer(t)
	srv.respond("demo/echo", `{"value":42}`)

	tr := dialTest(t, srv)
	tr.Start()

	var result struct {
		Value int `json:"value"`
	}
	if err := tr.Call(context.Background(), "demo/echo", map[string]int{"n": 1}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Value != 42 {
		t.Errorf("result.Value = %d, want 42", result.Value)
	}

	req := srv.waitRequest(t, "demo/echo")
	if got := gjson.Get(req.raw, "jsonrpc").String(); got != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", got)
	}
	if got := gjson.Get(req.raw, "params.n").Int(); got != 1 {
		t.Errorf("params.n = %d, want 1", got)
	}
}

func TestTransport_CallReturnsServerError(t *testing.T) {
	srv := newFakeServer(t)
	srv.fail("demo/bad", `{"code":-32602,"message":"bad params"}`)

	tr := dialTest(t, srv)
	tr.Start()

	err := tr.Call(context.Background(), "demo/bad", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call error = %v, want *RPCError", err)
	}
	if rpcErr.Code != CodeInvalidParams {
		t.Errorf("code = %d, want %d", rpcErr.Code, CodeInvalidParams)
	}
}

func TestTransport_RequestIDsAreUnique(t *testing.T) {
	srv := newFakeServer(t)
	srv.respond("demo/echo", `null`)

	tr := dialTest(t, srv)
	tr.Start()

	for i := 0; i < 3; i++ {
		if err := tr.Call(context.Background(), "demo/echo", nil, nil); err != nil {
			t.Fatalf("Call %d: %v", i, err)
		}
	}

	seen := map[int64]bool{}
	for i := 0; i < 3; i++ {
		req := srv.waitRequest(t, "demo/echo")
		id := gjson.Get(req.raw, "id").Int()
		if seen[id] {
			t.Fatalf("request id %d reused", id)
		}
		seen[id] = true
	}
}

func TestTransport_NotifyHasNoID(t *testing.T) {
	srv := newFakeServer(t)
	tr := dialTest(t, srv)
	tr.Start()

	if err := tr.Notify("demo/event", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	msg := srv.waitNotification(t, "demo/event")
	if gjson.Get(msg.raw, "id").Exists() {
		t.Errorf("notification carries an id: %s", msg.raw)
	}
}

func TestTransport_NotificationDispatch(t *testing.T) {
	srv := newFakeServer(t)
	tr := dialTest(t, srv)

	got := make(chan string, 1)
	tr.OnNotification("demo/push", func(_ string, params json.RawMessage) {
		got <- gjson.GetBytes(params, "text").String()
	})
	tr.Start()

	srv.send(`{"jsonrpc":"2.0","method":"demo/push","params":{"text":"hello"}}`)

	select {
	case text := <-got:
		if text != "hello" {
			t.Errorf("params.text = %q, want hello", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification handler never ran")
	}
}

func TestTransport_ServerRequestAnswered(t *testing.T) {
	srv := newFakeServer(t)
	tr := dialTest(t, srv)

	tr.OnRequest("demo/ask", func(string, json.RawMessage) (any, *RPCError) {
		return nil, nil
	})
	tr.Start()

	srv.send(`{"jsonrpc":"2.0","id":"srv-7","method":"demo/ask","params":{}}`)

	reply := srv.waitReply(t)
	if got := gjson.Get(reply.raw, "id").String(); got != "srv-7" {
		t.Errorf("reply id = %q, want srv-7 echoed verbatim", got)
	}
	if got := gjson.Get(reply.raw, "result").Type; got != gjson.Null {
		t.Errorf("reply result type = %v, want null", got)
	}
}

func TestTransport_UnknownServerRequestRejected(t *testing.T) {
	srv := newFakeServer(t)
	tr := dialTest(t, srv)
	tr.Start()

	srv.send(`{"jsonrpc":"2.0","id":9,"method":"demo/unknown"}`)

	reply := srv.waitReply(t)
	if got := gjson.Get(reply.raw, "error.code").Int(); got != CodeMethodNotFound {
		t.Errorf("error.code = %d, want %d", got, CodeMethodNotFound)
	}
}

func TestTransport_CloseSettlesPendingCalls(t *testing.T) {
	srv := newFakeServer(t)
	srv.silence("demo/slow")

	tr := dialTest(t, srv)
	tr.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Call(context.Background(), "demo/slow", nil, nil)
	}()

	srv.waitRequest(t, "demo/slow")
	_ = tr.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrShutdown) {
			t.Errorf("pending call error = %v, want ErrShutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call left dangling after Close")
	}
}

func TestTransport_RemoteCloseSettlesPendingCalls(t *testing.T) {
	srv := newFakeServer(t)
	srv.silence("demo/slow")

	tr := dialTest(t, srv)
	closed := make(chan error, 1)
	tr.OnClose(func(err error) { closed <- err })
	tr.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tr.Call(context.Background(), "demo/slow", nil, nil)
	}()

	srv.waitRequest(t, "demo/slow")
	srv.dropClient()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrShutdown) {
			t.Errorf("pending call error = %v, want ErrShutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call left dangling after remote close")
	}

	select {
	case err := <-closed:
		if err == nil {
			t.Error("OnClose error = nil, want the read error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose never fired")
	}
}

func TestTransport_CallAfterClose(t *testing.T) {
	srv := newFakeServer(t)
	tr := dialTest(t, srv)
	tr.Start()
	_ = tr.Close()

	if err := tr.Call(context.Background(), "demo/echo", nil, nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Call after Close = %v, want ErrShutdown", err)
	}
	if err := tr.Notify("demo/event", nil); !errors.Is(err, ErrShutdown) {
		t.Errorf("Notify after Close = %v, want ErrShutdown", err)
	}
}
