package callws

import (
	"context"
	"testing"

	ws "nhooyr.io/websocket"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	if c := r.Get("s1"); c != nil {
		t.Fatalf("empty registry returned a connection")
	}
	c := &ws.Conn{}
	if prevClosed := r.Replace("s1", c); prevClosed {
		t.Fatalf("first Replace reported a closed predecessor")
	}
	if got := r.Get("s1"); got != c {
		t.Fatalf("Get returned a different connection")
	}
	r.Remove("s1")
	if got := r.Get("s1"); got != nil {
		t.Fatalf("Remove left a connection behind")
	}
}

func TestSendJSONWithoutConnIsNoop(t *testing.T) {
	r := NewRegistry()
	if err := r.SendJSON(context.Background(), "missing", map[string]any{"type": "say"}); err != nil {
		t.Fatalf("send to absent session: %v", err)
	}
}
