package suggest

import "github.com/strongdm/paramref/internal/paramref"

// Session is the suggestion state for one open token. It exists only while
// a span is open and is discarded when the span closes.
type Session struct {
	Span       paramref.TokenSpan
	Candidates []paramref.Parameter
	Selected   int

	dismissed bool
}

func newSession(span paramref.TokenSpan) *Session {
	return &Session{Span: span, Selected: -1}
}

// Visible reports whether the suggestion list is showing.
func (s *Session) Visible() bool {
	return s != nil && !s.dismissed && len(s.Candidates) > 0
}

// setCandidates replaces the candidate list wholesale and clears the
// selection.
func (s *Session) setCandidates(candidates []paramref.Parameter) {
	s.Candidates = candidates
	s.Selected = -1
}

func (s *Session) next() {
	if !s.Visible() {
		return
	}
	if s.Selected < len(s.Candidates)-1 {
		s.Selected++
		return
	}
	s.Selected = 0
}

func (s *Session) prev() {
	if !s.Visible() {
		return
	}
	if s.Selected > 0 {
		s.Selected--
		return
	}
	s.Selected = len(s.Candidates) - 1
}

func (s *Session) hover(i int) bool {
	if !s.Visible() || i < 0 || i >= len(s.Candidates) {
		return false
	}
	s.Selected = i
	return true
}

// selected returns the selected candidate, if the selection is in range.
func (s *Session) selected() (paramref.Parameter, bool) {
	if !s.Visible() || s.Selected < 0 || s.Selected >= len(s.Candidates) {
		return paramref.Parameter{}, false
	}
	return s.Candidates[s.Selected], true
}
