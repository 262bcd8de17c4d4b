package paramref

// References returns every non-empty reference in text, in order of
// appearance. A run starts after a marker and ends at a break character,
// at the next marker, or at the end of text.
func References(text string) []string {
	runes := []rune(text)
	var refs []string
	i := 0
	for i+markerLen <= len(runes) {
		if runes[i] != '@' || runes[i+1] != '@' {
			i++
			continue
		}
		// In a run of three or more '@', the marker is the last pair.
		for i+markerLen < len(runes) && runes[i+markerLen] == '@' {
			i++
		}
		start := i + markerLen
		end := start
		for end < len(runes) && !isBreak(runes[end]) && !markerAt(runes, end) {
			end++
		}
		if end > start {
			refs = append(refs, string(runes[start:end]))
		}
		i = end
	}
	return refs
}

func markerAt(runes []rune, i int) bool {
	return i+1 < len(runes) && runes[i] == '@' && runes[i+1] == '@'
}

// Validate classifies every reference in text against catalog. Invalid
// names are reported once each, in order of first appearance.
func Validate(text string, catalog NameSet) ValidationResult {
	invalid := []string{}
	seen := make(map[string]struct{})
	for _, ref := range References(text) {
		if catalog.Has(ref) {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		invalid = append(invalid, ref)
	}
	return ValidationResult{Valid: len(invalid) == 0, InvalidNames: invalid}
}
