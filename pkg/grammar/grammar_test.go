package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spicery/nutmeg-tokenrules/pkg/rewrite"
	"github.com/spicery/nutmeg-tokenrules/pkg/rules"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

const pairYAML = `
start: pair
tokens:
  - name: word
    word: true
rules:
  pair:
    seq:
      - capture: {key: w, rule: {pattern: '\w+'}}
      - ref: {key: w, kind: dynamic}
rewrite:
  - name: collapse
    match: {rule: pair}
    action: {transform: first}
`

const pairTOML = `
start = "pair"

[[tokens]]
name = "word"
word = true

[rules.pair]
seq = [{capture = {key = "w", rule = {pattern = '\w+'}}}, {ref = {key = "w", kind = "dynamic"}}]

[[rewrite]]
name = "collapse"
match = {rule = "pair"}
action = {transform = "first"}
`

func parse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse([]byte(src), FormatYAML)
	require.NoError(t, err)
	return f
}

func compile(t *testing.T, src string) *Grammar {
	t.Helper()
	g, err := Compile(parse(t, src))
	require.NoError(t, err)
	return g
}

func tokenize(t *testing.T, g *Grammar, input string) []token.Token {
	t.Helper()
	tz, err := g.Tokenizer(input)
	require.NoError(t, err)
	tokens, err := tz.Tokenize()
	require.NoError(t, err)
	return tokens
}

func TestYAMLAndTOMLAgree(t *testing.T) {
	fromYAML, err := Parse([]byte(pairYAML), FormatYAML)
	require.NoError(t, err)
	fromTOML, err := Parse([]byte(pairTOML), FormatTOML)
	require.NoError(t, err)

	if diff := cmp.Diff(fromYAML, fromTOML); diff != "" {
		t.Errorf("grammar mismatch (-yaml +toml):\n%s", diff)
	}
}

func TestUnknownKeysAreRejected(t *testing.T) {
	_, err := Parse([]byte("rules:\n  a: {valeu: x}\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidGrammar)

	_, err = Parse([]byte("bogus = 1\n"), FormatTOML)
	assert.ErrorIs(t, err, ErrInvalidGrammar)

	_, err = Parse([]byte("rules: [\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidGrammar)
}

func TestEmptyGrammar(t *testing.T) {
	g := compile(t, "")
	assert.Empty(t, g.Rules)
	assert.Nil(t, g.Start)
	assert.NotEmpty(t, g.Definitions)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatTOML, DetectFormat("g.toml"))
	assert.Equal(t, FormatTOML, DetectFormat("G.TOML"))
	assert.Equal(t, FormatYAML, DetectFormat("g.yaml"))
	assert.Equal(t, FormatYAML, DetectFormat("g.yml"))
	assert.Equal(t, FormatYAML, DetectFormat("grammar"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "pair.yaml")
	tomlPath := filepath.Join(dir, "pair.toml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(pairYAML), 0o644))
	require.NoError(t, os.WriteFile(tomlPath, []byte(pairTOML), 0o644))

	fromYAML, err := LoadFile(yamlPath)
	require.NoError(t, err)
	fromTOML, err := LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromTOML)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompiledRewritesRun(t *testing.T) {
	g := compile(t, pairYAML)
	require.NotNil(t, g.Start)
	require.Len(t, g.Rewrites, 1)

	rw, err := rewrite.New(g.Rewrites)
	require.NoError(t, err)
	out, err := rw.Run(tokenize(t, g, "a a a b c c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, token.Values(out))
}

func TestDefaultGrammar(t *testing.T) {
	g, err := Compile(Default())
	require.NoError(t, err)
	require.NotNil(t, g.Start)
	ctx, err := g.Context()
	require.NoError(t, err)

	rw, err := rewrite.New(g.Rewrites, rewrite.WithContext(ctx))
	require.NoError(t, err)
	out, err := rw.Run(tokenize(t, g, "if (a (b c)) ; the the x - 5 (-3)"))
	require.NoError(t, err)

	want := []string{"IF", "(", "a", "(", "b", "c", ")", ")", "the", "x", "-", "5", "(", "-3", ")"}
	if diff := cmp.Diff(want, token.Values(out)); diff != "" {
		t.Errorf("rewrite mismatch (-want +got):\n%s", diff)
	}

	found, err := rewrite.Scan(g.Start, tokenize(t, g, "if (a (b c)) x"), ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 0, found[0].Start())
	assert.Equal(t, 8, found[0].End())
}

func TestDefaultGrammarRoundTrips(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)
	back, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMutuallyRecursiveRules(t *testing.T) {
	g := compile(t, `
rules:
  a:
    seq: [{value: x}, {optional: {rule: b}}]
  b:
    seq: [{value: y}, {optional: {rule: a}}]
`)
	m, err := g.Rules["a"].Match(token.NewStream(tokenize(t, g, "x y x y x")), rules.NewContext())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 5, m.End())
}

func TestRuleKinds(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		input string
		end   int // -1 for no match
	}{
		{"value", `{value: a}`, "a b", 1},
		{"value fold", `{value_fold: SELECT}`, "select", 1},
		{"length bounded", `{length: [2, 3]}`, "abcd", -1},
		{"length open", `{length: [2]}`, "abcd", 1},
		{"always", `{always: true}`, "a", 0},
		{"never", `{never: true}`, "a", -1},
		{"repeat bounded", `{repeat: {rule: {value: a}, min: 1, max: 2}}`, "a a a", 2},
		{"repeat too few", `{repeat: {rule: {value: a}, min: 2}}`, "a b", -1},
		{"boundary", `{boundary: {start: {value: "<"}, between: {value: a}, end: {value: ">"}}}`, "< a >", 3},
		{"boundary without between", `{boundary: {start: {value: "<"}, end: {value: ">"}}}`, "< >", 2},
		{"behind at start", `{behind: {always: true}}`, "a", -1},
		{"not behind at start", `{not_behind: {value: a}}`, "a", 0},
		{"ahead", `{seq: [{ahead: {value: a}}, {value: a}]}`, "a", 1},
		{"not ahead", `{not_ahead: {value: a}}`, "a", -1},
		{"anchor", `{seq: [{anchor: start-of-document}, {value: a}, {anchor: end-of-document}]}`, "a", 1},
		{"line anchor", `{seq: [{value: a}, {anchor: end-of-line}]}`, "a\nb", 1},
		{"not", `{not: {value: b}}`, "a", 0},
		{"capture and rule ref", `{seq: [{capture: {key: n, rule: {pattern: '\d+'}}}, {value: "+"}, {ref: {key: n, kind: rule}}]}`, "1 + 2", 3},
		{"tokens ref", `{seq: [{capture: {key: n, rule: {pattern: '\d+'}}}, {value: "+"}, {ref: {key: n}}]}`, "1 + 2", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := compile(t, "rules:\n  r: "+tt.rule+"\n")
			m, err := g.Rules["r"].Match(token.NewStream(tokenize(t, g, tt.input)), rules.NewContext())
			require.NoError(t, err)
			if tt.end < 0 {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.end, m.End())
		})
	}
}

func TestGroupRule(t *testing.T) {
	g := compile(t, "rules:\n  r: {group: {seq: [{value: a}, {value: b}]}}\n")
	grouped := token.NewGroup("ab", []token.Token{token.New("a"), token.New("b")})
	m, err := g.Rules["r"].Match(token.NewStream([]token.Token{grouped}), rules.NewContext())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 1, m.End())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no kind", "rules:\n  r: {}\n"},
		{"two kinds", "rules:\n  r: {value: a, pattern: b}\n"},
		{"undefined rule", "rules:\n  r: {rule: nowhere}\n"},
		{"self outside recursive", "rules:\n  r: {self: true}\n"},
		{"bad pattern", "rules:\n  r: {pattern: '('}\n"},
		{"bad anchor", "rules:\n  r: {anchor: middle}\n"},
		{"bad ref kind", "rules:\n  r: {ref: {key: k, kind: sideways}}\n"},
		{"empty capture key", "rules:\n  r: {capture: {key: '', rule: {value: a}}}\n"},
		{"bad length", "rules:\n  r: {length: [1, 2, 3]}\n"},
		{"bad repeat bounds", "rules:\n  r: {repeat: {rule: {value: a}, min: 3, max: 1}}\n"},
		{"missing recursive close", "rules:\n  r: {recursive: {open: {value: '('}, content: {self: true}}}\n"},
		{"bad recursive content", "rules:\n  r: {recursive: {open: {value: '('}, content: {}, close: {value: ')'}}}\n"},
		{"undefined start", "start: nowhere\n"},
		{"rewrite without match", "rewrite:\n  - {name: x, action: {transform: drop}}\n"},
		{"rewrite without action", "rewrite:\n  - {name: x, match: {value: a}}\n"},
		{"unknown convert", "rewrite:\n  - {name: x, match: {value: a}, action: {convert: shout}}\n"},
		{"unknown transform", "rewrite:\n  - {name: x, match: {value: a}, action: {transform: shuffle}}\n"},
		{"two actions", "rewrite:\n  - {name: x, match: {value: a}, action: {transform: drop, convert: upper}}\n"},
		{"bad filter", "rewrite:\n  - {name: x, match: {value: a}, action: {filter: '('}}\n"},
		{"token without name", "tokens:\n  - {word: true}\n"},
		{"token without kind", "tokens:\n  - {name: w}\n"},
		{"long escape", "tokens:\n  - {name: e, escape: ab}\n"},
		{"bad token pattern", "tokens:\n  - {name: p, pattern: '('}\n"},
		{"combine unknown", "tokens:\n  - {name: c, combine: [nothing]}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(parse(t, tt.src))
			assert.ErrorIs(t, err, ErrInvalidGrammar)
		})
	}
}

func TestCompileErrorNamesPath(t *testing.T) {
	_, err := Compile(parse(t, "rules:\n  r: {seq: [{value: a}, {rule: nowhere}]}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.r.seq[1]")
	assert.Contains(t, err.Error(), `"nowhere"`)
}

func TestTokenSpecs(t *testing.T) {
	g := compile(t, `
tokens:
  - {name: arrow, literal: "->"}
  - {name: kw, fold: select}
  - {name: esc, escape: '\'}
  - {name: minus, literal: "-"}
  - {name: digits, pattern: '\d+'}
  - {name: negative, combine: [minus, digits]}
  - {name: word, word: true}
`)
	tokens := tokenize(t, g, `-> SELECT \n -12 x`)
	assert.Equal(t, []string{"->", "SELECT", `\n`, "-12", "x"}, token.Values(tokens))

	defs := make([]string, len(tokens))
	for i, tok := range tokens {
		defs[i] = tok.Definition()
	}
	assert.Equal(t, []string{"arrow", "kw", "esc", "negative", "word"}, defs)
}

func TestGrammarContextDefinesRules(t *testing.T) {
	g := compile(t, "rules:\n  num: {pattern: '\\d+'}\n")
	ctx, err := g.Context()
	require.NoError(t, err)

	m, err := rules.RuleRef("num").Match(token.NewStream([]token.Token{token.New("42")}), ctx)
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestActionSpecs(t *testing.T) {
	pos := token.Position{Line: 2, Column: 4, Offset: 9}
	input := []token.Token{
		token.NewAt(`"a\tb"`, pos).WithDefinition("string"),
		token.New(" Mixed "),
		token.New("x,y"),
		token.New("42"),
	}
	m, err := rules.ZeroOrMore(rules.Where(func(token.Token) bool { return true })).
		Match(token.NewStream(input), rules.NewContext())
	require.NoError(t, err)
	require.NotNil(t, m)

	tests := []struct {
		name   string
		action ActionSpec
		want   []string
	}{
		{"unquote", ActionSpec{Convert: "unquote"}, []string{"a\tb", " Mixed ", "x,y", "42"}},
		{"upper", ActionSpec{Convert: "upper"}, []string{`"A\TB"`, " MIXED ", "X,Y", "42"}},
		{"trim", ActionSpec{Convert: "trim"}, []string{`"a\tb"`, "Mixed", "x,y", "42"}},
		{"filter", ActionSpec{Filter: `^\d+$`}, []string{"42"}},
		{"skip", ActionSpec{Skip: `^\d+$`}, []string{`"a\tb"`, " Mixed ", "x,y"}},
		{"split", ActionSpec{Split: `,`}, []string{`"a\tb"`, " Mixed ", "x", "y", "42"}},
		{"reverse", ActionSpec{Transform: "reverse"}, []string{"42", "x,y", " Mixed ", `"a\tb"`}},
		{"last", ActionSpec{Transform: "last"}, []string{"42"}},
		{"join", ActionSpec{Transform: "join"}, []string{`"a\tb" Mixed x,y42`}},
		{"drop", ActionSpec{Transform: "drop"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := compileAction("test", &tt.action)
			require.NoError(t, err)
			out, err := a.Apply(m, rules.NewContext())
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, token.Values(out), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("action mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvertKeepsPositionAndDefinition(t *testing.T) {
	pos := token.Position{Line: 2, Column: 4, Offset: 9}
	original := token.NewAnnotated(token.NewAt(`"hi"`, pos).WithDefinition("string"), map[string]string{"k": "v"})
	m, err := rules.Where(func(token.Token) bool { return true }).
		Match(token.NewStream([]token.Token{original}), rules.NewContext())
	require.NoError(t, err)

	a, err := compileAction("test", &ActionSpec{Convert: "unquote"})
	require.NoError(t, err)
	out, err := a.Apply(m, rules.NewContext())
	require.NoError(t, err)
	require.Len(t, out, 1)

	got := out[0]
	assert.Equal(t, "hi", got.Value())
	assert.Equal(t, "string", got.Definition())
	p, ok := got.Position()
	require.True(t, ok)
	assert.Equal(t, pos, p)
	v, ok := token.MetaOf(got, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestAnnotateAction(t *testing.T) {
	a, err := compileAction("test", &ActionSpec{Annotate: map[string]string{"kind": "keyword"}})
	require.NoError(t, err)
	m, err := rules.Val("if").Match(token.NewStream([]token.Token{token.New("if")}), rules.NewContext())
	require.NoError(t, err)

	out, err := a.Apply(m, rules.NewContext())
	require.NoError(t, err)
	require.Len(t, out, 1)
	v, ok := token.MetaOf(out[0], "kind")
	assert.True(t, ok)
	assert.Equal(t, "keyword", v)
}

func TestUnknownRuleSuggestsName(t *testing.T) {
	_, err := Compile(&File{Rules: map[string]*RuleSpec{
		"number":  {Pattern: ptr(`\d+`)},
		"keyword": {Value: ptr("if")},
		"both":    {Rule: "numbr"},
	}})
	require.ErrorIs(t, err, ErrInvalidGrammar)
	assert.Contains(t, err.Error(), `did you mean "number"?`)

	g, err := Compile(&File{Rules: map[string]*RuleSpec{"number": {Pattern: ptr(`\d+`)}}})
	require.NoError(t, err)
	_, err = g.Lookup("numbr")
	assert.ErrorContains(t, err, `did you mean "number"?`)
	_, err = g.Lookup("zzz")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func ptr[T any](v T) *T { return &v }
