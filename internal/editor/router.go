package editor

import (
	"context"
	"sync"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/messages"
	"github.com/strongdm/paramref/internal/suggest"
	"github.com/strongdm/paramref/internal/websocket"
)

// Source is the hub surface the Router consumes.
type Source interface {
	Sender
	Incoming() <-chan websocket.ClientMessage
	OnDisconnect(fn func(clientID string))
}

// Router creates a Host for every client that sends editor traffic and
// tears it down when the client disconnects.
type Router struct {
	hub     Source
	catalog suggest.Catalog
	opts    Options

	mu    sync.Mutex
	hosts map[string]*Host
}

func NewRouter(hub Source, catalog suggest.Catalog, opts Options) *Router {
	r := &Router{
		hub:     hub,
		catalog: catalog,
		opts:    opts,
		hosts:   make(map[string]*Host),
	}
	hub.OnDisconnect(r.remove)
	return r
}

// Run dispatches inbound messages until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	defer r.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.hub.Incoming():
			env, err := messages.Decode(msg.Payload)
			if err != nil {
				eventlog.Emit("editor.message.invalid", map[string]any{"client": msg.ClientID, "error": err})
				reject(r.hub, msg.ClientID, err)
				continue
			}
			r.host(ctx, msg.ClientID).Handle(env)
		}
	}
}

// Len reports the number of live hosts.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hosts)
}

func (r *Router) host(ctx context.Context, clientID string) *Host {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hosts[clientID]; ok {
		return h
	}
	h := NewHost(ctx, clientID, r.hub, r.catalog, r.opts)
	r.hosts[clientID] = h
	eventlog.Emit("editor.session.open", map[string]any{"client": clientID})
	return h
}

func (r *Router) remove(clientID string) {
	r.mu.Lock()
	h, ok := r.hosts[clientID]
	delete(r.hosts, clientID)
	r.mu.Unlock()
	if !ok {
		return
	}
	eventlog.Emit("editor.session.close", map[string]any{"client": clientID})
	// The hub calls this from its run loop; the host may be blocked sending
	// through that same loop.
	go h.Close()
}

func (r *Router) closeAll() {
	r.mu.Lock()
	hosts := r.hosts
	r.hosts = make(map[string]*Host)
	r.mu.Unlock()
	for _, h := range hosts {
		h.Close()
	}
}

func reject(s Sender, clientID string, err error) {
	env, wrapErr := messages.WrapPayload(clientID, messages.TypeError, messages.ErrorPayload{Message: err.Error()})
	if wrapErr != nil {
		return
	}
	_ = s.SendJSONToClient(clientID, env)
}
