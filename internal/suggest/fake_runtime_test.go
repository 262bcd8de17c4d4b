package suggest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/strongdm/paramref/internal/paramref"
)

// fakeRuntime is a manual clock plus manually released background work, so
// tests decide exactly when timers fire and in which order searches resolve.
type fakeRuntime struct {
	now        time.Duration
	timers     []*fakeTimer
	work       []func()
	posted     []func()
	ignoreStop bool
}

type fakeTimer struct {
	rt      *fakeRuntime
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.fired || t.stopped {
		return false
	}
	if t.rt.ignoreStop {
		// Simulates a timer that already fired and queued its callback.
		return false
	}
	t.stopped = true
	return true
}

func (r *fakeRuntime) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{rt: r, at: r.now + d, f: f}
	r.timers = append(r.timers, t)
	return t
}

func (r *fakeRuntime) Go(f func()) { r.work = append(r.work, f) }

func (r *fakeRuntime) Post(f func()) { r.posted = append(r.posted, f) }

// Advance moves the clock forward, firing due timers in deadline order.
func (r *fakeRuntime) Advance(d time.Duration) {
	target := r.now + d
	for {
		var next *fakeTimer
		for _, t := range r.timers {
			if t.fired || t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		r.now = next.at
		next.fired = true
		next.f()
		r.drain()
	}
	r.now = target
}

// RunWork runs the i-th pending background job and delivers what it posts.
func (r *fakeRuntime) RunWork(i int) {
	f := r.work[i]
	r.work = append(r.work[:i:i], r.work[i+1:]...)
	f()
	r.drain()
}

func (r *fakeRuntime) RunAllWork() {
	for len(r.work) > 0 {
		r.RunWork(0)
	}
}

func (r *fakeRuntime) drain() {
	for len(r.posted) > 0 {
		f := r.posted[0]
		r.posted = r.posted[1:]
		f()
	}
}

// fakeCatalog answers searches from a fixed list and records every call.
type fakeCatalog struct {
	params   []paramref.Parameter
	calls    []string
	err      error
	validErr error
	extra    map[string][]paramref.Parameter
}

func newFakeCatalog(names ...string) *fakeCatalog {
	c := &fakeCatalog{}
	for _, n := range names {
		c.params = append(c.params, paramrefParam(n))
	}
	return c
}

func (c *fakeCatalog) SearchParameters(_ context.Context, term string) ([]paramref.Parameter, error) {
	c.calls = append(c.calls, term)
	if c.err != nil {
		return nil, c.err
	}
	out := []paramref.Parameter{}
	for _, p := range c.params {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			out = append(out, p)
		}
	}
	out = append(out, c.extra[term]...)
	return out, nil
}

func (c *fakeCatalog) ValidateText(_ context.Context, text string) (paramref.ValidationResult, error) {
	c.calls = append(c.calls, text)
	if c.validErr != nil {
		return paramref.ValidationResult{}, c.validErr
	}
	return paramref.Validate(text, paramref.NewNameSet(c.params)), nil
}

func paramrefParam(name string) paramref.Parameter {
	return paramref.Parameter{Name: name, DataType: paramref.TypeString, Active: true}
}

var errCatalogDown = errors.New("catalog unavailable")

func candidateNames(s Snapshot) []string {
	out := make([]string, 0, len(s.Candidates))
	for _, p := range s.Candidates {
		out = append(out, p.Name)
	}
	return out
}
