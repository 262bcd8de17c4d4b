package paramref

import "testing"

func TestReplaceRoundTrip(t *testing.T) {
	t.Parallel()

	text := "Hello @@nam world"
	span, ok := Scan(text, 11)
	if !ok {
		t.Fatalf("expected open span")
	}
	if span != (TokenSpan{Start: 6, Search: "nam"}) {
		t.Fatalf("unexpected span %+v", span)
	}

	got, ok := Replace(text, span, "name")
	if !ok {
		t.Fatalf("Replace reported failure")
	}
	if got.Text != "Hello @@name world" {
		t.Fatalf("text = %q", got.Text)
	}
	if got.Cursor != 12 {
		t.Fatalf("cursor = %d, want 12", got.Cursor)
	}
}

func TestReplacePreservesTextAfterCursor(t *testing.T) {
	t.Parallel()

	// Cursor sits inside an existing token; the tail after the cursor is kept.
	text := "Hi @@fiXYZ!"
	span, ok := Scan(text, 7)
	if !ok {
		t.Fatalf("expected open span")
	}
	got, ok := Replace(text, span, "firstName")
	if !ok {
		t.Fatalf("Replace reported failure")
	}
	if got.Text != "Hi @@firstNameXYZ!" {
		t.Fatalf("text = %q", got.Text)
	}
	if want := span.Start + 2 + len("firstName"); got.Cursor != want {
		t.Fatalf("cursor = %d, want %d", got.Cursor, want)
	}
}

func TestReplaceMarkerImmediatelyFollowedByName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text   string
		cursor int
		name   string
	}{
		{text: "@@", cursor: 2, name: "amount"},
		{text: "x @@a y @@b", cursor: 11, name: "balance"},
		{text: "ünï @@ç", cursor: 7, name: "çity"},
	}
	for _, tc := range cases {
		span, ok := Scan(tc.text, tc.cursor)
		if !ok {
			t.Fatalf("%q: expected span", tc.text)
		}
		got, ok := Replace(tc.text, span, tc.name)
		if !ok {
			t.Fatalf("%q: Replace failed", tc.text)
		}
		runes := []rune(got.Text)
		inserted := string(runes[span.Start:got.Cursor])
		if inserted != Marker+tc.name {
			t.Fatalf("%q: inserted %q, want %q", tc.text, inserted, Marker+tc.name)
		}
		if got.Cursor != span.Start+2+len([]rune(tc.name)) {
			t.Fatalf("%q: cursor %d", tc.text, got.Cursor)
		}
	}
}

func TestReplaceRejectsStaleSpan(t *testing.T) {
	t.Parallel()

	text := "short"
	got, ok := Replace(text, TokenSpan{Start: 3, Search: "toolong"}, "name")
	if ok {
		t.Fatalf("expected failure for span past end of text")
	}
	if got.Text != text {
		t.Fatalf("text mutated: %q", got.Text)
	}

	got, ok = Replace("ab cd", TokenSpan{Start: 0, Search: "c"}, "name")
	if ok || got.Text != "ab cd" {
		t.Fatalf("expected no-op without marker, got %+v ok=%v", got, ok)
	}
}

func TestReplaceKeepsInvalidUTF8OutsideSpan(t *testing.T) {
	t.Parallel()

	text := "\xffHi @@fi \xfe!"
	got, ok := Replace(text, TokenSpan{Start: 4, Search: "fi"}, "firstName")
	if !ok {
		t.Fatalf("Replace reported failure")
	}
	if want := "\xffHi @@firstName \xfe!"; got.Text != want {
		t.Fatalf("text = %q, want %q", got.Text, want)
	}
	if got.Cursor != 15 {
		t.Fatalf("cursor = %d, want 15", got.Cursor)
	}
}
