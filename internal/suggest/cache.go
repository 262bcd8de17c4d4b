package suggest

import "github.com/strongdm/paramref/internal/paramref"

// Cache keeps the most recently applied fetch result so new keystrokes can
// be answered locally while the next fetch is in flight.
type Cache struct {
	candidates []paramref.Parameter
}

// Store replaces the cached set.
func (c *Cache) Store(candidates []paramref.Parameter) {
	c.candidates = append([]paramref.Parameter(nil), candidates...)
}

// Filter returns the cached candidates whose names contain search. ok is
// false when nothing has been cached yet.
func (c *Cache) Filter(search string) (out []paramref.Parameter, ok bool) {
	if len(c.candidates) == 0 {
		return nil, false
	}
	return paramref.FilterLocal(c.candidates, search), true
}
