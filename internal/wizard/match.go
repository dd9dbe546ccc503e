package wizard

import "strings"

// BestMatch picks the candidate a human would mean: an exact match wins,
// then a prefix match, then a substring match. Comparison is case-insensitive
// and trims surrounding whitespace. Returns the candidate index, or -1 when
// nothing matches. The first item in the list is never taken blindly.
func BestMatch(candidates []string, term string) int {
	want := strings.ToLower(strings.TrimSpace(term))
	if want == "" {
		return -1
	}

	prefix, substr := -1, -1
	for i, c := range candidates {
		got := strings.ToLower(strings.TrimSpace(c))
		if got == want {
			return i
		}
		if prefix < 0 && strings.HasPrefix(got, want) {
			prefix = i
		}
		if substr < 0 && strings.Contains(got, want) {
			substr = i
		}
	}
	if prefix >= 0 {
		return prefix
	}
	return substr
}
