package composer

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strongdm/paramref/internal/suggest"
)

// runMsg carries a callback onto the bubbletea event loop.
type runMsg func()

// teaRuntime makes the bubbletea Update loop the owner loop of the
// completers. Post and AfterFunc callbacks arrive as runMsg and run inside
// Update.
type teaRuntime struct {
	mu   sync.Mutex
	send func(tea.Msg)
	held []tea.Msg
}

var _ suggest.Runtime = (*teaRuntime)(nil)

// bind attaches the program's Send. Messages posted before bind are
// delivered in order once it is called.
func (r *teaRuntime) bind(send func(tea.Msg)) {
	r.mu.Lock()
	r.send = send
	held := r.held
	r.held = nil
	r.mu.Unlock()
	for _, msg := range held {
		send(msg)
	}
}

// Post must not be called from inside Update: Program.Send blocks until the
// loop receives.
func (r *teaRuntime) Post(f func()) {
	r.mu.Lock()
	send := r.send
	if send == nil {
		r.held = append(r.held, runMsg(f))
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	send(runMsg(f))
}

func (r *teaRuntime) Go(f func()) {
	go f()
}

func (r *teaRuntime) AfterFunc(d time.Duration, f func()) suggest.Timer {
	return time.AfterFunc(d, func() { r.Post(f) })
}
