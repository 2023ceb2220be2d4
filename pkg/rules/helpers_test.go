package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

func toks(values ...string) []token.Token {
	out := make([]token.Token, len(values))
	for i, v := range values {
		out[i] = token.New(v)
	}
	return out
}

// lines builds positioned tokens; each argument is one source line of space-free values.
func lines(rows ...[]string) []token.Token {
	var out []token.Token
	offset := 0
	for l, row := range rows {
		col := 1
		for _, v := range row {
			out = append(out, token.NewAt(v, token.Position{Line: l + 1, Column: col, Offset: offset}))
			col += len(v) + 1
			offset += len(v) + 1
		}
	}
	return out
}

func streamAt(t *testing.T, tokens []token.Token, index int) *token.Stream {
	t.Helper()
	s, err := token.NewStreamAt(tokens, index)
	require.NoError(t, err)
	return s
}

// run matches r from index and checks the no-side-effect contract on failure.
func run(t *testing.T, r Rule, tokens []token.Token, index int, ctx *Context) (*Match, *token.Stream) {
	t.Helper()
	if ctx == nil {
		ctx = NewContext()
	}
	s := streamAt(t, tokens, index)
	before := ctx.Keys()
	bound := make(map[string]*Match, len(before))
	for _, key := range before {
		bound[key], _ = ctx.Capture(key)
	}
	m, err := r.Match(s, ctx)
	require.NoError(t, err)
	if m == nil {
		require.Equal(t, index, s.Index(), "failed match moved the stream")
		require.Equal(t, before, ctx.Keys(), "failed match changed the captures")
		for key, want := range bound {
			got, _ := ctx.Capture(key)
			require.Same(t, want, got, "failed match changed the capture %q", key)
		}
	} else {
		require.Equal(t, m.End(), s.Index(), "stream not left after the match")
	}
	return m, s
}
