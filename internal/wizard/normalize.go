package wizard

import "strings"

// formatting characters stripped before a candidate is judged.
const punctuation = " \t -()+"

// NormalizeNumber reduces a candidate text to a canonical 11-digit number
// starting with the country prefix "7". Accepts only sequences of exactly 10
// or 11 digits after stripping formatting punctuation: 10 digits gain a
// leading "7", a leading "8" on 11 digits is replaced with "7", and 11 digits
// must otherwise already start with "7". Returns ok=false for anything else.
func NormalizeNumber(raw string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if len(cleaned) < 10 || len(cleaned) > 11 {
		return "", false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	switch {
	case len(cleaned) == 10:
		return "7" + cleaned, true
	case cleaned[0] == '8':
		return "7" + cleaned[1:], true
	case cleaned[0] == '7':
		return cleaned, true
	default:
		return "", false
	}
}

// NumberSet accumulates normalized numbers across passes with set semantics,
// preserving first-seen order for display.
type NumberSet struct {
	seen  map[string]bool
	order []string
}

// NewNumberSet returns an empty accumulator.
func NewNumberSet() *NumberSet {
	return &NumberSet{seen: make(map[string]bool)}
}

// AddRaw normalizes a candidate text and records it. Reports whether the
// candidate was a valid, previously unseen number.
func (s *NumberSet) AddRaw(raw string) bool {
	num, ok := NormalizeNumber(raw)
	if !ok || s.seen[num] {
		return false
	}
	s.seen[num] = true
	s.order = append(s.order, num)
	return true
}

// Len returns the number of distinct numbers collected so far.
func (s *NumberSet) Len() int {
	return len(s.order)
}

// Numbers returns the collected numbers in first-seen order.
func (s *NumberSet) Numbers() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
