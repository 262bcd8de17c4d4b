package paramref

import "strings"

// FilterLocal keeps the candidates whose name contains search, ignoring
// case. Input order is preserved and duplicate names are dropped.
func FilterLocal(candidates []Parameter, search string) []Parameter {
	needle := strings.ToLower(search)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Parameter, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Name]; dup {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, c)
	}
	return out
}
