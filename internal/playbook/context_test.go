package playbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	ctx := Context{
		"clientCode": "4521",
		"ticketId":   "2024081500000042",
		"count":      7,
	}

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"single token", "https://acc.example/clients/{clientCode}", "https://acc.example/clients/4521"},
		{"multiple tokens", "{clientCode}/{ticketId}", "4521/2024081500000042"},
		{"non-string value", "total: {count}", "total: 7"},
		{"unknown token stays literal", "hello {unknown}", "hello {unknown}"},
		{"no tokens", "plain text", "plain text"},
		{"empty string", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ctx.Resolve(tc.input))
		})
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	ctx := NewContext()
	ctx.Merge(map[string]any{"clientCode": "1111", "city": "Moscow"})
	ctx.Merge(map[string]any{"clientCode": "2222"})

	assert.Equal(t, "2222", ctx["clientCode"])
	assert.Equal(t, "Moscow", ctx["city"])
}

func TestMergeNilIsNoop(t *testing.T) {
	ctx := Context{"a": 1}
	ctx.Merge(nil)
	assert.Equal(t, Context{"a": 1}, ctx)
}

func TestCloneIsIndependent(t *testing.T) {
	ctx := Context{"a": "one"}
	clone := ctx.Clone()
	clone["a"] = "changed"
	clone["b"] = "new"

	assert.Equal(t, "one", ctx["a"])
	_, ok := ctx["b"]
	assert.False(t, ok)
}
