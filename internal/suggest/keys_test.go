package suggest

import "testing"

func TestParseKey(t *testing.T) {
	t.Parallel()

	cases := map[string]Key{
		"ArrowDown": KeyDown,
		"down":      KeyDown,
		"ArrowUp":   KeyUp,
		"Enter":     KeyEnter,
		"return":    KeyEnter,
		"Tab":       KeyTab,
		"Escape":    KeyEscape,
		"esc":       KeyEscape,
		"a":         KeyNone,
	}
	for in, want := range cases {
		if got := ParseKey(in); got != want {
			t.Fatalf("ParseKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandleKeyIgnoredWhileClosed(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCompleter(newFakeCatalog("abc"))
	c.Update("plain text", 5)
	for _, k := range []Key{KeyDown, KeyUp, KeyEnter, KeyTab, KeyEscape} {
		if res := c.HandleKey(k); res.Handled {
			t.Fatalf("%s handled with no open list", k)
		}
	}
}

func TestHandleKeyEnterConsumedWithoutSelection(t *testing.T) {
	t.Parallel()

	c, rt, _ := newTestCompleter(newFakeCatalog("abc"))
	c.Update("@@a", 3)
	settle(rt)

	res := c.HandleKey(KeyEnter)
	if !res.Handled || res.Accepted {
		t.Fatalf("unexpected enter result %+v", res)
	}
	if res.Replacement.Text != "@@a" {
		t.Fatalf("text changed: %q", res.Replacement.Text)
	}
}

func TestHandleKeyTabPassesThroughWithoutSelection(t *testing.T) {
	t.Parallel()

	c, rt, _ := newTestCompleter(newFakeCatalog("abc"))
	c.Update("@@a", 3)
	settle(rt)

	if res := c.HandleKey(KeyTab); res.Handled {
		t.Fatalf("tab without selection should reach the input")
	}

	c.HandleKey(KeyDown)
	res := c.HandleKey(KeyTab)
	if !res.Handled || !res.Accepted || res.Replacement.Text != "@@abc" || res.Replacement.Cursor != 5 {
		t.Fatalf("unexpected tab result %+v", res)
	}
}

func TestHandleKeyNavigationAndEscape(t *testing.T) {
	t.Parallel()

	c, rt, _ := newTestCompleter(newFakeCatalog("a1", "a2"))
	c.Update("@@a", 3)
	settle(rt)

	c.HandleKey(KeyUp)
	if got := c.Snapshot().Selected; got != 1 {
		t.Fatalf("up from none selected %d, want 1", got)
	}
	c.HandleKey(KeyDown)
	if got := c.Snapshot().Selected; got != 0 {
		t.Fatalf("down from last selected %d, want 0", got)
	}
	if res := c.HandleKey(KeyEscape); !res.Handled {
		t.Fatalf("escape not handled")
	}
	if c.Snapshot().Open {
		t.Fatalf("escape should close the list")
	}
	if c.Text() != "@@a" {
		t.Fatalf("escape changed text to %q", c.Text())
	}
}
