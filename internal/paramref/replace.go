package paramref

import (
	"strings"
	"unicode/utf8"
)

// Replace rewrites text so the token described by span becomes a complete
// reference to name. Everything before the marker and from the original
// cursor position (span.End()) onward is kept byte for byte. The returned
// cursor sits directly after the inserted name. When span does not describe
// an open token in text, the text is returned unchanged with ok == false.
func Replace(text string, span TokenSpan, name string) (Replacement, bool) {
	length := utf8.RuneCountInString(text)
	end := span.End()
	if span.Start < 0 || end > length {
		return Replacement{Text: text, Cursor: clampOffset(end, length)}, false
	}
	start, stop := byteOffset(text, span.Start), byteOffset(text, end)
	if !strings.HasPrefix(text[start:stop], Marker) {
		return Replacement{Text: text, Cursor: end}, false
	}

	var b strings.Builder
	b.Grow(len(text) + len(name))
	b.WriteString(text[:start])
	b.WriteString(Marker)
	b.WriteString(name)
	b.WriteString(text[stop:])

	return Replacement{
		Text:   b.String(),
		Cursor: span.Start + markerLen + utf8.RuneCountInString(name),
	}, true
}

// byteOffset converts a rune offset into text to a byte offset. Each invalid
// byte counts as one rune, as it does in a []rune conversion.
func byteOffset(text string, runes int) int {
	for i := range text {
		if runes == 0 {
			return i
		}
		runes--
	}
	return len(text)
}
