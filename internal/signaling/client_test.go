package signaling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer sends greeting, then writes back every message it receives.
func echoServer(t *testing.T, greeting []string) string {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for _, g := range greeting {
			if err := c.WriteMessage(websocket.TextMessage, []byte(g)); err != nil {
				return
			}
		}
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestClient_DeliversWellFormedEnvelopesInOrder(t *testing.T) {
	url := echoServer(t, []string{
		`{"type":"offer","payload":"v=0"}`,
		`garbage`,
		`{"type":"ice"}`,
		`{"type":"ice","payload":"candidate:1"}`,
	})

	got := make(chan Envelope, 8)
	c, err := Dial(context.Background(), url, func(e Envelope) { got <- e }, ClientOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	want := []MessageType{MessageTypeOffer, MessageTypeICE}
	for i, w := range want {
		select {
		case e := <-got:
			if e.Type != w {
				t.Fatalf("envelope %d type=%q, want %q", i, e.Type, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for envelope %d", i)
		}
	}
	select {
	case e := <-got:
		t.Fatalf("unexpected envelope %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_SendRoundTrip(t *testing.T) {
	url := echoServer(t, nil)
	got := make(chan Envelope, 1)
	c, err := Dial(context.Background(), url, func(e Envelope) { got <- e }, ClientOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	raw, _ := EncodeSDP(MessageTypeAnswer, "v=0")
	if err := c.Send(raw); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case e := <-got:
		if e.Type != MessageTypeAnswer {
			t.Fatalf("type=%q", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestClient_CloseReportsNilAndRejectsSends(t *testing.T) {
	url := echoServer(t, nil)
	closed := make(chan error, 1)
	c, err := Dial(context.Background(), url, nil, ClientOptions{OnClose: func(err error) { closed <- err }})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	_ = c.Close()
	_ = c.Close()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("OnClose err=%v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	<-c.Done()
	if err := c.Send([]byte(`{}`)); err != ErrClientClosed {
		t.Fatalf("Send after close err=%v", err)
	}
}

func TestClient_ServerGoneReportsError(t *testing.T) {
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = c.Close()
	}))
	defer ts.Close()

	closed := make(chan error, 1)
	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http"), nil, ClientOptions{OnClose: func(err error) { closed <- err }})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	select {
	case err := <-closed:
		if err == nil {
			t.Fatal("OnClose err=nil, want read error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := Dial(ctx, "ws://127.0.0.1:1/ws", nil, ClientOptions{}); err == nil {
		t.Fatal("expected dial error")
	}
}
