package playbook

import (
	"fmt"
	"regexp"
)

// Context is the per-run mapping of accumulated facts (client code, line
// number, ticket id, ...) used for template resolution. Keys are never
// removed during a run; later writes silently overwrite earlier ones.
type Context map[string]any

// tokenRegex matches {key} placeholders in step templates.
var tokenRegex = regexp.MustCompile(`\{(\w+)\}`)

// NewContext returns an empty context for a fresh run.
func NewContext() Context {
	return make(Context)
}

// Merge shallow-merges parsed data into the context, last write wins.
func (c Context) Merge(data map[string]any) {
	for k, v := range data {
		c[k] = v
	}
}

// Resolve substitutes {key} tokens with stored values. Tokens with no
// matching key are left literal so the operator can see what is missing.
func (c Context) Resolve(template string) string {
	return tokenRegex.ReplaceAllStringFunc(template, func(match string) string {
		key := tokenRegex.FindStringSubmatch(match)[1]
		if val, ok := c[key]; ok && val != nil {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}

// Clone returns a shallow copy, used for status snapshots so callers cannot
// mutate the live run state.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
