package editor

import (
	"context"
	"testing"
	"time"

	"github.com/strongdm/paramref/internal/messages"
	"github.com/strongdm/paramref/internal/websocket"
)

type fakeSource struct {
	recorder
	in           chan websocket.ClientMessage
	onDisconnect func(string)
}

func (s *fakeSource) Incoming() <-chan websocket.ClientMessage { return s.in }
func (s *fakeSource) OnDisconnect(fn func(string))             { s.onDisconnect = fn }

func TestRouterCreatesAndRemovesHosts(t *testing.T) {
	t.Parallel()

	src := &fakeSource{in: make(chan websocket.ClientMessage, 4)}
	r := NewRouter(src, newMemCatalog("firstName"), Options{Debounce: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	src.in <- websocket.ClientMessage{ClientID: "a", Payload: []byte(`{"type":"editor.change","version":1,"payload":{"field":"body","text":"@@fi","cursor":4}}`)}
	src.in <- websocket.ClientMessage{ClientID: "b", Payload: []byte(`not json`)}

	src.waitFor(t, openWith(t, "firstName"))
	src.waitFor(t, func(env *messages.Envelope) bool {
		return env.Type == messages.TypeError && env.SessionID == "b"
	})
	if n := r.Len(); n != 1 {
		t.Fatalf("hosts = %d, want 1", n)
	}

	src.onDisconnect("a")
	if n := r.Len(); n != 0 {
		t.Fatalf("hosts after disconnect = %d, want 0", n)
	}
}
