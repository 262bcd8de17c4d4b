package paramref

import "unicode"

// isBreak reports whether r terminates a parameter token: any whitespace or
// one of , ; . ! ? ( ).
func isBreak(r rune) bool {
	switch r {
	case ',', ';', '.', '!', '?', '(', ')':
		return true
	}
	return unicode.IsSpace(r)
}

// Scan reports the open token ending at cursor, if any. cursor is a rune
// offset and is clamped to the bounds of text.
func Scan(text string, cursor int) (TokenSpan, bool) {
	runes := []rune(text)
	cursor = clampOffset(cursor, len(runes))

	start := lastMarkerBefore(runes, cursor)
	if start < 0 {
		return TokenSpan{}, false
	}

	between := runes[start+markerLen : cursor]
	for _, r := range between {
		if isBreak(r) {
			return TokenSpan{}, false
		}
	}
	return TokenSpan{Start: start, Search: string(between)}, true
}

// lastMarkerBefore returns the offset of the nearest marker that ends at or
// before limit, or -1.
func lastMarkerBefore(runes []rune, limit int) int {
	for i := limit - markerLen; i >= 0; i-- {
		if runes[i] == '@' && runes[i+1] == '@' {
			return i
		}
	}
	return -1
}

func clampOffset(offset, length int) int {
	if offset < 0 {
		return 0
	}
	if offset > length {
		return length
	}
	return offset
}
