package suggest

import (
	"strings"

	"github.com/strongdm/paramref/internal/paramref"
)

// Key is a navigation or confirmation key understood by HandleKey.
type Key string

const (
	KeyNone   Key = ""
	KeyDown   Key = "down"
	KeyUp     Key = "up"
	KeyEnter  Key = "enter"
	KeyTab    Key = "tab"
	KeyEscape Key = "escape"
)

// ParseKey maps DOM and terminal key names onto Key.
func ParseKey(name string) Key {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "down", "arrowdown":
		return KeyDown
	case "up", "arrowup":
		return KeyUp
	case "enter", "return":
		return KeyEnter
	case "tab":
		return KeyTab
	case "esc", "escape":
		return KeyEscape
	default:
		return KeyNone
	}
}

// KeyResult reports what HandleKey did. Handled keys should not reach the
// input; Accepted carries the replacement to apply.
type KeyResult struct {
	Handled     bool
	Accepted    bool
	Replacement paramref.Replacement
}

// HandleKey applies key while the list is showing. Enter is consumed even
// with nothing selected; Tab is consumed only when it accepts.
func (c *Completer) HandleKey(key Key) KeyResult {
	if !c.session.Visible() {
		return KeyResult{}
	}
	switch key {
	case KeyDown:
		c.Next()
		return KeyResult{Handled: true}
	case KeyUp:
		c.Prev()
		return KeyResult{Handled: true}
	case KeyEnter:
		rep, ok := c.Accept()
		return KeyResult{Handled: true, Accepted: ok, Replacement: rep}
	case KeyTab:
		rep, ok := c.Accept()
		if !ok {
			return KeyResult{}
		}
		return KeyResult{Handled: true, Accepted: true, Replacement: rep}
	case KeyEscape:
		c.Cancel()
		return KeyResult{Handled: true}
	}
	return KeyResult{}
}
