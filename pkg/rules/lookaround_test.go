package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

func TestLookMode(t *testing.T) {
	assert.True(t, Positive.ShouldMatch(true))
	assert.False(t, Positive.ShouldMatch(false))
	assert.False(t, Negative.ShouldMatch(true))
	assert.True(t, Negative.ShouldMatch(false))
}

func TestLookaheadIsZeroWidth(t *testing.T) {
	input := toks("a", "b", "c")
	inner := []Rule{Val("a"), Seq(Val("a"), Val("b")), ZeroOrMore(Regex(".")), Never(), Always()}
	for _, r := range inner {
		for _, mode := range []LookMode{Positive, Negative} {
			for start := 0; start <= len(input); start++ {
				look := Must(NewLookahead(r, mode))
				m, s := run(t, look, input, start, nil)
				assert.Equal(t, start, s.Index())
				if m != nil {
					assert.True(t, m.IsEmpty())
					assert.Equal(t, start, m.Start())
				}
			}
		}
	}
}

func TestLookahead(t *testing.T) {
	m, _ := run(t, Seq(Val("a"), Ahead(Val("b"))), toks("a", "b"), 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.End())

	m, _ = run(t, Seq(Val("a"), NotAhead(Val("b"))), toks("a", "b"), 0, nil)
	assert.Nil(t, m)

	m, _ = run(t, Seq(Val("a"), NotAhead(Val("b"))), toks("a", "c"), 0, nil)
	require.NotNil(t, m)
}

func TestNotIsZeroWidthNegation(t *testing.T) {
	m, s := run(t, Val("a").Not(), toks("b"), 0, nil)
	require.NotNil(t, m)
	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, s.Index())

	m, _ = run(t, Val("a").Not(), toks("a"), 0, nil)
	assert.Nil(t, m)

	// Double negation is a positive lookahead, still zero-width.
	m, s = run(t, Val("a").Not().Not(), toks("a"), 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, 0, s.Index())
}

func TestPositiveLookaheadKeepsCaptures(t *testing.T) {
	ctx := NewContext()
	m, _ := run(t, Seq(Ahead(Bind("k", Val("a"))), Val("a"), Ref("k")), toks("a", "a"), 0, ctx)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.End())

	ctx = NewContext()
	_, _ = run(t, NotAhead(Bind("k", Val("b"))), toks("a"), 0, ctx)
	assert.Empty(t, ctx.Keys())
}

func TestLookbehindAtStart(t *testing.T) {
	for _, r := range []Rule{Val("a"), Always(), Never(), ZeroOrMore(Val("a"))} {
		m, _ := run(t, Behind(r), toks("a", "b"), 0, nil)
		assert.Nil(t, m)

		m, s := run(t, NotBehind(r), toks("a", "b"), 0, nil)
		require.NotNil(t, m)
		assert.True(t, m.IsEmpty())
		assert.Equal(t, 0, s.Index())
	}
}

func TestLookbehind(t *testing.T) {
	input := toks("x", "a", "b", "c")
	twoLines := lines([]string{"a", "b"}, []string{"c"})

	tests := []struct {
		name  string
		rule  Rule
		input []token.Token
		index int
		match bool
	}{
		{"single token behind", Behind(Val("b")), nil, 3, true},
		{"wrong token behind", Behind(Val("a")), nil, 3, false},
		{"span behind", Behind(Seq(Val("a"), Val("b"))), nil, 3, true},
		{"span must end here", Behind(Seq(Val("x"), Val("a"))), nil, 3, false},
		{"repetition cannot overshoot", Behind(OneOrMore(Regex("[ab]"))), nil, 3, true},
		{"negative blocks", NotBehind(Val("b")), nil, 3, false},
		{"negative passes", NotBehind(Val("z")), nil, 3, true},
		{"at end of stream", Behind(Val("c")), nil, 4, true},
		{"lookahead inside sees only the past", Behind(Seq(Val("a"), Ahead(Val("b")))), nil, 2, false},
		{"anchor inside", Behind(Seq(DocumentStart(), Val("x"))), nil, 1, true},
		{"document end inside sees later tokens", Behind(Seq(Val("b"), DocumentEnd())), nil, 3, false},
		{"document end inside at the real end", Behind(Seq(Val("c"), DocumentEnd())), nil, 4, true},
		{"line end inside mid line", Behind(Seq(Val("a"), LineEnd())), twoLines, 1, false},
		{"line end inside before new line", Behind(Seq(Val("b"), LineEnd())), twoLines, 2, true},
		{"line start inside on new line", Behind(Seq(Val("b"), LineStart())), twoLines, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			if in == nil {
				in = input
			}
			m, s := run(t, tt.rule, in, tt.index, nil)
			assert.Equal(t, tt.index, s.Index())
			if tt.match {
				require.NotNil(t, m)
				assert.True(t, m.IsEmpty())
			} else {
				assert.Nil(t, m)
			}
		})
	}
}

func TestLookbehindNotFlipsMode(t *testing.T) {
	m, _ := run(t, Behind(Val("a")).Not(), toks("a", "b"), 1, nil)
	assert.Nil(t, m)
	m, _ = run(t, Behind(Val("a")).Not(), toks("a", "b"), 2, nil)
	assert.NotNil(t, m)
}

func TestDocumentAnchors(t *testing.T) {
	input := toks("a", "b")

	m, _ := run(t, DocumentStart(), input, 0, nil)
	assert.NotNil(t, m)
	m, _ = run(t, DocumentStart(), input, 1, nil)
	assert.Nil(t, m)
	m, _ = run(t, DocumentEnd(), input, 2, nil)
	assert.NotNil(t, m)
	m, _ = run(t, DocumentEnd(), input, 1, nil)
	assert.Nil(t, m)

	m, _ = run(t, Seq(DocumentStart(), Val("a"), Val("b"), DocumentEnd()), input, 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, []string{"a", "b"}, m.Values())
}

func TestLineAnchors(t *testing.T) {
	input := lines([]string{"a", "b"}, []string{"c"})

	tests := []struct {
		name  string
		rule  Rule
		index int
		match bool
	}{
		{"line start at document start", LineStart(), 0, true},
		{"line start mid line", LineStart(), 1, false},
		{"line start on new line", LineStart(), 2, true},
		{"line start at end", LineStart(), 3, false},
		{"line end at document start", LineEnd(), 0, false},
		{"line end mid line", LineEnd(), 1, false},
		{"line end before new line", LineEnd(), 2, true},
		{"line end at document end", LineEnd(), 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := run(t, tt.rule, input, tt.index, nil)
			if tt.match {
				require.NotNil(t, m)
				assert.True(t, m.IsEmpty())
			} else {
				assert.Nil(t, m)
			}
		})
	}
}

func TestLineAnchorsWithoutPositions(t *testing.T) {
	input := toks("a", "b")
	for i := 0; i <= len(input); i++ {
		m, _ := run(t, LineStart(), input, i, nil)
		assert.Nil(t, m)
		m, _ = run(t, LineEnd(), input, i, nil)
		assert.Nil(t, m)
	}
}

func TestBackreferenceEquality(t *testing.T) {
	r := Seq(Bind("x", Val("a")), Val(","), Ref("x"))

	m, _ := run(t, r, toks("a", ",", "a"), 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.End())
	assert.Equal(t, []string{"a", ",", "a"}, m.Values())

	ctx := NewContext()
	m, s := run(t, r, toks("a", ",", "b"), 0, ctx)
	assert.Nil(t, m)
	assert.Equal(t, 0, s.Index())
	assert.Empty(t, ctx.Keys())
}

func TestBackreferenceMultiToken(t *testing.T) {
	word := OneOrMore(Regex(`[a-z]+`))
	r := Seq(Bind("w", word), Val("|"), Ref("w"))

	m, _ := run(t, r, toks("ab", "cd", "|", "ab", "cd"), 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, 5, m.End())

	// Greedy capture takes both words, so a shorter copy does not match.
	m, _ = run(t, r, toks("ab", "cd", "|", "ab"), 0, nil)
	assert.Nil(t, m)
}

func TestReferenceWithoutCapture(t *testing.T) {
	for _, kind := range []RefKind{RefTokens, RefDynamic, RefRule} {
		m, _ := run(t, Must(NewReference("nothing", kind)), toks("a"), 0, nil)
		assert.Nil(t, m, kind.String())
	}
}

func TestCaptureOverwrites(t *testing.T) {
	ctx := NewContext()
	m, _ := run(t, Seq(Bind("k", Val("a")), Bind("k", Val("b"))), toks("a", "b"), 0, ctx)
	require.NotNil(t, m)
	got, ok := ctx.Capture("k")
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, got.Values())
}

func TestDynamicReferenceFollowsRebinding(t *testing.T) {
	// Each element must repeat the one before it: a a b b c c
	pair := Seq(Bind("cur", Regex(`[a-z]`)), DynamicRef("cur"))
	m, _ := run(t, OneOrMore(pair), toks("a", "a", "b", "b", "c", "c", "d"), 0, nil)
	require.NotNil(t, m)
	assert.Equal(t, 6, m.End())

	m, _ = run(t, OneOrMore(pair), toks("a", "b"), 0, nil)
	assert.Nil(t, m)
}

func TestRuleReferenceReusesGrammar(t *testing.T) {
	num := Regex(`\d+`)
	r := Seq(Bind("n", num), Val("+"), RuleRef("n"))

	m, _ := run(t, r, toks("1", "+", "2"), 0, nil)
	require.NotNil(t, m, "same grammar, different text")
	assert.Equal(t, 3, m.End())

	m, _ = run(t, r, toks("1", "+", "x"), 0, nil)
	assert.Nil(t, m)

	// The captured rule is the one given to Capture, not the alternative that won.
	alt := Seq(Bind("v", Any(Val("a"), Val("b"))), RuleRef("v"))
	m, _ = run(t, alt, toks("a", "b"), 0, nil)
	require.NotNil(t, m)
}

func TestContextDefinitions(t *testing.T) {
	ctx := NewContext()
	require.NoError(t, ctx.DefineTokens("kw", toks("end", "if")))
	require.NoError(t, ctx.DefineRule("num", Regex(`\d+`)))
	assert.ErrorIs(t, ctx.DefineRule("num", Val("x")), ErrInvalidRule)
	assert.ErrorIs(t, ctx.DefineTokens("kw", nil), ErrInvalidRule)
	assert.ErrorIs(t, ctx.DefineRule("", Val("x")), ErrInvalidRule)
	assert.ErrorIs(t, ctx.DefineRule("nil", nil), ErrNilArgument)

	m, _ := run(t, Seq(Ref("kw"), RuleRef("num")), toks("end", "if", "42"), 0, ctx)
	require.NotNil(t, m)
	assert.Equal(t, 3, m.End())

	// Dynamic references ignore definitions.
	m, _ = run(t, DynamicRef("kw"), toks("end", "if"), 0, ctx)
	assert.Nil(t, m)

	// A capture takes precedence over a definition of the same key.
	m, _ = run(t, Seq(Bind("kw", Val("x")), Ref("kw")), toks("x", "x"), 0, ctx)
	require.NotNil(t, m)

	fork := ctx.Fork()
	assert.Empty(t, fork.Keys())
	_, ok := fork.Rule("num")
	assert.True(t, ok)
}

func TestParseRefKind(t *testing.T) {
	for _, kind := range []RefKind{RefTokens, RefDynamic, RefRule} {
		got, err := ParseRefKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	_, err := ParseRefKind("bogus")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestMatchTokensAreCopied(t *testing.T) {
	m, _ := run(t, Seq(Val("a"), Val("b")), toks("a", "b"), 0, nil)
	require.NotNil(t, m)
	got := m.Tokens()
	got[0] = token.New("changed")
	assert.Equal(t, []string{"a", "b"}, m.Values())
}

func TestParseAnchorKind(t *testing.T) {
	for _, kind := range []AnchorKind{StartOfDocument, EndOfDocument, StartOfLine, EndOfLine} {
		got, err := ParseAnchorKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	_, err := ParseAnchorKind("middle")
	assert.ErrorIs(t, err, ErrInvalidRule)
}
