// Package suggest drives @@parameter suggestions for one text input: it
// tracks the open token, answers from the last fetched set immediately,
// debounces catalog searches, and discards results that arrive after their
// search has been superseded.
package suggest

import (
	"context"
	"time"

	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// DefaultBlurGrace is how long the list stays open after focus is lost, so
// a pointer selection inside the list can still land.
const DefaultBlurGrace = 200 * time.Millisecond

// Options tunes a Completer.
type Options struct {
	// Context bounds the Completer's catalog searches.
	Context     context.Context
	Debounce    time.Duration
	BlurGrace   time.Duration
	Instruments *otel.SuggestInstruments
	Source      string
	// OnChange is called on the owner loop whenever state changes without a
	// direct call: a search result landing or the blur grace expiring.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the state a host renders.
type Snapshot struct {
	Open       bool                 `json:"open"`
	Span       *paramref.TokenSpan  `json:"span,omitempty"`
	Candidates []paramref.Parameter `json:"candidates"`
	Selected   int                  `json:"selectedIndex"`
}

// Completer owns the suggestion session of one input. Every method must be
// called on the Runtime's owner loop.
type Completer struct {
	rt       Runtime
	cache    Cache
	fetcher  *Fetcher
	session  *Session
	inst     *otel.SuggestInstruments
	onChange func(Snapshot)

	text   string
	cursor int

	applied   uint64
	grace     time.Duration
	blurTimer Timer
	blurGen   uint64
}

// New returns a Completer searching through searcher.
func New(rt Runtime, searcher Searcher, opts Options) *Completer {
	c := &Completer{
		rt:       rt,
		inst:     opts.Instruments,
		onChange: opts.OnChange,
		grace:    opts.BlurGrace,
	}
	if c.grace <= 0 {
		c.grace = DefaultBlurGrace
	}
	c.fetcher = NewFetcher(rt, searcher, c.apply, FetcherOptions{
		Context:     opts.Context,
		Debounce:    opts.Debounce,
		Instruments: opts.Instruments,
		Source:      opts.Source,
	})
	return c
}

// Update records the latest text and cursor and re-evaluates the open token.
func (c *Completer) Update(text string, cursor int) {
	c.text, c.cursor = text, cursor

	span, ok := paramref.Scan(text, cursor)
	if !ok {
		c.close()
		return
	}

	if c.session == nil {
		c.session = newSession(span)
	} else {
		if c.session.Span == span {
			return
		}
		searchChanged := c.session.Span.Search != span.Search
		c.session.Span = span
		c.session.dismissed = false
		if !searchChanged {
			return
		}
	}

	if local, ok := c.cache.Filter(span.Search); ok {
		c.session.setCandidates(local)
	}
	c.fetcher.Request(span.Search)
}

// Next moves the selection down, wrapping to the first candidate.
func (c *Completer) Next() { c.session.next() }

// Prev moves the selection up, wrapping to the last candidate.
func (c *Completer) Prev() { c.session.prev() }

// Hover selects candidate i without accepting it.
func (c *Completer) Hover(i int) bool { return c.session.hover(i) }

// Accept replaces the open token with the selected candidate. With nothing
// selected it changes nothing and leaves the session open.
func (c *Completer) Accept() (paramref.Replacement, bool) {
	param, ok := c.session.selected()
	if !ok {
		return paramref.Replacement{Text: c.text, Cursor: c.cursor}, false
	}
	return c.accept(param.Name)
}

// Select accepts candidate i, as a pointer click does.
func (c *Completer) Select(i int) (paramref.Replacement, bool) {
	if !c.session.hover(i) {
		return paramref.Replacement{Text: c.text, Cursor: c.cursor}, false
	}
	return c.Accept()
}

func (c *Completer) accept(name string) (paramref.Replacement, bool) {
	rep, ok := paramref.Replace(c.text, c.session.Span, name)
	if !ok {
		return paramref.Replacement{Text: c.text, Cursor: c.cursor}, false
	}
	c.stopBlur()
	c.text, c.cursor = rep.Text, rep.Cursor
	c.close()
	return rep, true
}

// Cancel hides the list without touching the text. It reopens when the
// token under the cursor changes.
func (c *Completer) Cancel() {
	if c.session == nil {
		return
	}
	c.session.dismissed = true
	c.session.Selected = -1
	c.fetcher.Cancel()
}

// Blur closes the session once the grace period passes, unless Focus or an
// accept intervenes.
func (c *Completer) Blur() {
	c.stopBlur()
	gen := c.blurGen
	c.blurTimer = c.rt.AfterFunc(c.grace, func() {
		if gen != c.blurGen {
			return
		}
		c.blurTimer = nil
		if c.session == nil {
			return
		}
		c.close()
		c.notify()
	})
}

// Focus cancels a pending blur close.
func (c *Completer) Focus() {
	c.stopBlur()
}

// Close releases timers and cancels outstanding searches.
func (c *Completer) Close() {
	c.stopBlur()
	c.fetcher.Close()
	c.session = nil
}

// Text returns the text as of the last Update or accept.
func (c *Completer) Text() string { return c.text }

// Cursor returns the cursor as of the last Update or accept.
func (c *Completer) Cursor() int { return c.cursor }

// Session returns the live session, or nil when no token is open.
func (c *Completer) Session() *Session { return c.session }

// Snapshot copies the renderable state.
func (c *Completer) Snapshot() Snapshot {
	snap := Snapshot{Candidates: []paramref.Parameter{}, Selected: -1}
	if c.session == nil {
		return snap
	}
	span := c.session.Span
	snap.Span = &span
	if c.session.Visible() {
		snap.Open = true
		snap.Candidates = append(snap.Candidates, c.session.Candidates...)
		snap.Selected = c.session.Selected
	}
	return snap
}

// FetchesIssued returns how many catalog searches this Completer has issued.
func (c *Completer) FetchesIssued() int {
	return c.fetcher.Issued()
}

func (c *Completer) apply(res Result) {
	if c.session == nil || c.session.Span.Search != res.Search || res.Generation <= c.applied {
		c.inst.RecordStale(context.Background())
		return
	}
	c.applied = res.Generation
	c.cache.Store(res.Candidates)
	c.session.setCandidates(res.Candidates)
	c.notify()
}

func (c *Completer) close() {
	c.fetcher.Cancel()
	c.session = nil
}

func (c *Completer) stopBlur() {
	c.blurGen++
	if c.blurTimer != nil {
		c.blurTimer.Stop()
		c.blurTimer = nil
	}
}

func (c *Completer) notify() {
	if c.onChange != nil {
		c.onChange(c.Snapshot())
	}
}
