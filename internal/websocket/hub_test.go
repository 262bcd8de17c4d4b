package websocket

// Slow or stalled clients can be torn down while the hub is still
// broadcasting. enqueue must not send on a closed channel and must prefer
// recent messages when the send buffer is full.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"kr.dev/diff"
)

func TestHubEnqueueAfterClientClosureDoesNotPanic(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, 0, 0)
	c := &client{
		id:     "test-client",
		send:   make(chan []byte, 1),
		closed: make(chan struct{}),
		hub:    hub,
	}

	close(c.closed)
	close(c.send)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue panicked: %v", r)
		}
	}()

	hub.enqueue(c, []byte("payload"))
}

func TestHubEnqueueDropsOldestMessageWhenFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, 0, 0)
	c := &client{
		id:     "ring-client",
		send:   make(chan []byte, 2),
		closed: make(chan struct{}),
		hub:    hub,
	}

	c.send <- []byte("older")
	c.send <- []byte("newer")

	hub.enqueue(c, []byte("latest"))

	if first := <-c.send; string(first) != "newer" {
		t.Fatalf("expected 'newer' to remain, got %q", string(first))
	}
	if second := <-c.send; string(second) != "latest" {
		t.Fatalf("expected 'latest' to be enqueued, got %q", string(second))
	}
}

func TestRingBufferKeepsNewestInOrder(t *testing.T) {
	t.Parallel()

	rb := NewEventRingBuffer(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		rb.Add(Event{Event: name})
	}

	var got []string
	for _, e := range rb.All() {
		got = append(got, e.Event)
	}
	diff.Test(t, t.Errorf, got, []string{"c", "d", "e"})

	got = got[:0]
	for _, e := range rb.Tail(2) {
		got = append(got, e.Event)
	}
	diff.Test(t, t.Errorf, got, []string{"d", "e"})

	if rb.Count() != 3 {
		t.Fatalf("count = %d, want 3", rb.Count())
	}
}

func TestRingBufferPartialFill(t *testing.T) {
	t.Parallel()

	rb := NewEventRingBuffer(8)
	rb.Add(Event{Event: "one"})
	rb.Add(Event{Event: "two"})

	tail := rb.Tail(5)
	if len(tail) != 2 || tail[0].Event != "one" || tail[1].Event != "two" {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := rb.Tail(0); len(got) != 0 {
		t.Fatalf("Tail(0) returned %d events", len(got))
	}
}

func TestEncodeNDJSONKeepsNewestWithinBudget(t *testing.T) {
	t.Parallel()

	events := []Event{{Event: "first"}, {Event: "second"}, {Event: "third"}}
	one, _ := json.Marshal(events[2])

	data, n := encodeNDJSON(events, len(one)+1)
	if n != 1 {
		t.Fatalf("included = %d, want 1", n)
	}
	if !strings.Contains(string(data), `"third"`) {
		t.Fatalf("expected newest event, got %s", data)
	}

	all, n := encodeNDJSON(events, 0)
	if n != 3 || strings.Count(string(all), "\n") != 3 {
		t.Fatalf("unbounded encode returned %d events: %s", n, all)
	}
}

func TestBroadcastLogKeepsFields(t *testing.T) {
	t.Parallel()

	hub := NewHub(8, 0, 0)
	hub.BroadcastLog(`event=catalog.reload path="/tmp/my params.toml" count=3`)

	events := hub.RecentEvents(1)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	got := events[0]
	if got.Event != "catalog.reload" {
		t.Fatalf("event = %q", got.Event)
	}
	diff.Test(t, t.Errorf, got.Fields, map[string]string{
		"path":  "/tmp/my params.toml",
		"count": "3",
	})
	if got.Seq == 0 || got.InstanceID == "" || got.Time == "" {
		t.Fatalf("expected stamped event, got %+v", got)
	}
}

func TestHubStreamsHistoryAndRoutesMessages(t *testing.T) {
	t.Parallel()

	hub := NewHub(16, 0, 0)
	disconnected := make(chan string, 1)
	hub.OnDisconnect(func(id string) { disconnected <- id })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, bulk, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read bulk: %v", err)
	}
	if !strings.Contains(string(bulk), "paramref.hello") {
		t.Fatalf("bulk missing hello: %s", bulk)
	}

	if err := conn.WriteMessage(gws.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var msg ClientMessage
	select {
	case msg = <-hub.Incoming():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
	if string(msg.Payload) != `{"type":"ping"}` {
		t.Fatalf("payload = %s", msg.Payload)
	}

	if err := hub.SendJSONToClient(msg.ClientID, map[string]string{"type": "pong"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	// Broadcast events may interleave with the unicast reply.
	for {
		_, reply, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read reply: %v", err)
		}
		if string(reply) == `{"type":"pong"}` {
			break
		}
	}

	_ = conn.Close()
	select {
	case id := <-disconnected:
		if id != msg.ClientID {
			t.Fatalf("disconnect id = %q, want %q", id, msg.ClientID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for disconnect")
	}
}

func TestSendToUnknownClient(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, 0, 0)
	if err := hub.SendToClient("missing", []byte("x")); err == nil {
		t.Fatal("expected error for unknown client")
	}
	if err := hub.SendToClient("", []byte("x")); err == nil {
		t.Fatal("expected error for empty client id")
	}
}
