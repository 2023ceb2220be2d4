package grammar

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/spicery/nutmeg-tokenrules/pkg/actions"
	"github.com/spicery/nutmeg-tokenrules/pkg/rewrite"
	"github.com/spicery/nutmeg-tokenrules/pkg/rules"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
	"github.com/spicery/nutmeg-tokenrules/pkg/tokenizer"
)

// Grammar is a compiled grammar file.
type Grammar struct {
	Definitions []tokenizer.Definition
	Rules       map[string]rules.Rule
	Rewrites    []rewrite.Rewrite
	// Start is nil when the file names no start rule.
	Start rules.Rule
}

// Context returns a Context with every named rule defined under its name,
// so rule references to a key nothing has captured fall back to it.
func (g *Grammar) Context() (*rules.Context, error) {
	ctx := rules.NewContext()
	for _, name := range slices.Sorted(maps.Keys(g.Rules)) {
		if err := ctx.DefineRule(name, g.Rules[name]); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// Tokenizer returns a tokenizer over input using the grammar's definitions.
func (g *Grammar) Tokenizer(input string, opts ...tokenizer.Option) (*tokenizer.Tokenizer, error) {
	return tokenizer.NewTokenizer(input, g.Definitions, opts...)
}

type compiler struct {
	cells map[string]*rules.Lazy
	selfs []rules.Rule
}

// Compile checks a grammar file and builds its definitions, rules and rewrites.
func Compile(f *File) (*Grammar, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil file", ErrInvalidGrammar)
	}
	g := &Grammar{Rules: make(map[string]rules.Rule, len(f.Rules))}

	defs, err := compileTokens(f.Tokens)
	if err != nil {
		return nil, err
	}
	g.Definitions = defs

	c := &compiler{cells: make(map[string]*rules.Lazy, len(f.Rules))}
	for name := range f.Rules {
		if name == "" {
			return nil, fmt.Errorf("%w: rule with an empty name", ErrInvalidGrammar)
		}
		c.cells[name] = rules.NewLazy(name)
	}
	for _, name := range slices.Sorted(maps.Keys(f.Rules)) {
		r, err := c.rule("rules."+name, f.Rules[name])
		if err != nil {
			return nil, err
		}
		if err := c.cells[name].Set(r); err != nil {
			return nil, fmt.Errorf("%w: rules.%s: %w", ErrInvalidGrammar, name, err)
		}
		g.Rules[name] = c.cells[name]
	}

	for i, spec := range f.Rewrite {
		path := fmt.Sprintf("rewrite[%d]", i)
		if spec.Name == "" {
			spec.Name = path
		}
		r, err := c.rule(path+".match", spec.Match)
		if err != nil {
			return nil, err
		}
		a, err := compileAction(path+".action", spec.Action)
		if err != nil {
			return nil, err
		}
		g.Rewrites = append(g.Rewrites, rewrite.Rewrite{Name: spec.Name, Rule: r, Action: a})
	}

	if f.Start != "" {
		start, ok := g.Rules[f.Start]
		if !ok {
			return nil, fmt.Errorf("%w: start rule %q is not defined%s", ErrInvalidGrammar, f.Start,
				suggestion(f.Start, slices.Collect(maps.Keys(g.Rules))))
		}
		g.Start = start
	}
	return g, nil
}

// Lookup returns the named rule. The error suggests a close name when there is one.
func (g *Grammar) Lookup(name string) (rules.Rule, error) {
	if r, ok := g.Rules[name]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("no rule %q in grammar%s", name, suggestion(name, slices.Collect(maps.Keys(g.Rules))))
}

// suggestion formats the closest candidate to name, or returns "" when none is close.
func suggestion(name string, candidates []string) string {
	slices.Sort(candidates)
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Stable(ranks)
	return fmt.Sprintf(" (did you mean %q?)", ranks[0].Target)
}

func compileTokens(specs []TokenSpec) ([]tokenizer.Definition, error) {
	if len(specs) == 0 {
		return tokenizer.DefaultDefinitions(), nil
	}
	defs := make([]tokenizer.Definition, 0, len(specs))
	byName := make(map[string]tokenizer.Definition, len(specs))
	for i, spec := range specs {
		path := fmt.Sprintf("tokens[%d]", i)
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: %s: missing name", ErrInvalidGrammar, path)
		}
		if err := exactlyOne(path, tokenKinds(spec)); err != nil {
			return nil, err
		}

		var d tokenizer.Definition
		switch {
		case spec.Literal != "":
			d = tokenizer.Literal(spec.Name, spec.Literal)
		case spec.Fold != "":
			d = tokenizer.CaseInsensitive(spec.Name, spec.Fold)
		case spec.Escape != "":
			if utf8.RuneCountInString(spec.Escape) != 1 {
				return nil, fmt.Errorf("%w: %s: escape must be a single character, got %q",
					ErrInvalidGrammar, path, spec.Escape)
			}
			r, _ := utf8.DecodeRuneInString(spec.Escape)
			d = tokenizer.Escaped(spec.Name, r)
		case spec.Word:
			d = tokenizer.Word(spec.Name)
		case spec.Pattern != "":
			var err error
			if d, err = tokenizer.Pattern(spec.Name, spec.Pattern); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGrammar, path, err)
			}
		case len(spec.Combine) > 0:
			parts := make([]tokenizer.Definition, len(spec.Combine))
			for j, name := range spec.Combine {
				part, ok := byName[name]
				if !ok {
					return nil, fmt.Errorf("%w: %s: combine refers to %q, which is not defined earlier",
						ErrInvalidGrammar, path, name)
				}
				parts[j] = part
			}
			d = tokenizer.Combine(spec.Name, parts...)
		}
		defs = append(defs, d)
		byName[spec.Name] = d
	}
	return defs, nil
}

func tokenKinds(spec TokenSpec) []string {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(spec.Literal != "", "literal")
	add(spec.Fold != "", "fold")
	add(spec.Escape != "", "escape")
	add(spec.Word, "word")
	add(spec.Pattern != "", "pattern")
	add(len(spec.Combine) > 0, "combine")
	return kinds
}

func ruleKinds(spec *RuleSpec) []string {
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(spec.Value != nil, "value")
	add(spec.ValueFold != nil, "value_fold")
	add(spec.Pattern != nil, "pattern")
	add(spec.Length != nil, "length")
	add(spec.Always, "always")
	add(spec.Never, "never")
	add(spec.Seq != nil, "seq")
	add(spec.Any != nil, "any")
	add(spec.Optional != nil, "optional")
	add(spec.Repeat != nil, "repeat")
	add(spec.Boundary != nil, "boundary")
	add(spec.Group != nil, "group")
	add(spec.Recursive != nil, "recursive")
	add(spec.Self, "self")
	add(spec.Rule != "", "rule")
	add(spec.Ahead != nil, "ahead")
	add(spec.NotAhead != nil, "not_ahead")
	add(spec.Behind != nil, "behind")
	add(spec.NotBehind != nil, "not_behind")
	add(spec.Anchor != "", "anchor")
	add(spec.Not != nil, "not")
	add(spec.Capture != nil, "capture")
	add(spec.Ref != nil, "ref")
	return kinds
}

func exactlyOne(path string, kinds []string) error {
	switch len(kinds) {
	case 1:
		return nil
	case 0:
		return fmt.Errorf("%w: %s: no kind given", ErrInvalidGrammar, path)
	default:
		return fmt.Errorf("%w: %s: more than one kind given (%s)", ErrInvalidGrammar, path, strings.Join(kinds, ", "))
	}
}

func (c *compiler) rule(path string, spec *RuleSpec) (rules.Rule, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: %s: missing rule", ErrInvalidGrammar, path)
	}
	if err := exactlyOne(path, ruleKinds(spec)); err != nil {
		return nil, err
	}
	r, err := c.build(path, spec)
	if err != nil {
		if errors.Is(err, ErrInvalidGrammar) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGrammar, path, err)
	}
	return r, nil
}

// build compiles the one kind spec sets. Errors from nested specs are
// already wrapped with their own path.
func (c *compiler) build(path string, spec *RuleSpec) (rules.Rule, error) {
	switch {
	case spec.Value != nil:
		return rules.NewValue(*spec.Value), nil
	case spec.ValueFold != nil:
		return rules.NewValueIgnoreCase(*spec.ValueFold), nil
	case spec.Pattern != nil:
		return rules.NewPattern(*spec.Pattern)
	case spec.Length != nil:
		return compileLength(spec.Length)
	case spec.Always:
		return rules.Always(), nil
	case spec.Never:
		return rules.Never(), nil
	case spec.Seq != nil:
		children, err := c.ruleList(path+".seq", spec.Seq)
		if err != nil {
			return nil, err
		}
		return rules.NewSequence(children...)
	case spec.Any != nil:
		children, err := c.ruleList(path+".any", spec.Any)
		if err != nil {
			return nil, err
		}
		return rules.NewAnyOf(children...)
	case spec.Optional != nil:
		inner, err := c.rule(path+".optional", spec.Optional)
		if err != nil {
			return nil, err
		}
		return rules.NewOptional(inner)
	case spec.Repeat != nil:
		return c.repeat(path+".repeat", spec.Repeat)
	case spec.Boundary != nil:
		return c.boundary(path+".boundary", spec.Boundary)
	case spec.Group != nil:
		inner, err := c.rule(path+".group", spec.Group)
		if err != nil {
			return nil, err
		}
		return rules.NewGroupUnwrap(inner)
	case spec.Recursive != nil:
		return c.recursive(path+".recursive", spec.Recursive)
	case spec.Self:
		if len(c.selfs) == 0 {
			return nil, fmt.Errorf("self used outside recursive content")
		}
		return c.selfs[len(c.selfs)-1], nil
	case spec.Rule != "":
		cell, ok := c.cells[spec.Rule]
		if !ok {
			return nil, fmt.Errorf("rule %q is not defined%s", spec.Rule,
				suggestion(spec.Rule, slices.Collect(maps.Keys(c.cells))))
		}
		return cell, nil
	case spec.Ahead != nil:
		return c.look(path+".ahead", spec.Ahead, false, rules.Positive)
	case spec.NotAhead != nil:
		return c.look(path+".not_ahead", spec.NotAhead, false, rules.Negative)
	case spec.Behind != nil:
		return c.look(path+".behind", spec.Behind, true, rules.Positive)
	case spec.NotBehind != nil:
		return c.look(path+".not_behind", spec.NotBehind, true, rules.Negative)
	case spec.Anchor != "":
		kind, err := rules.ParseAnchorKind(spec.Anchor)
		if err != nil {
			return nil, err
		}
		return rules.NewAnchor(kind), nil
	case spec.Not != nil:
		inner, err := c.rule(path+".not", spec.Not)
		if err != nil {
			return nil, err
		}
		return inner.Not(), nil
	case spec.Capture != nil:
		inner, err := c.rule(path+".capture.rule", spec.Capture.Rule)
		if err != nil {
			return nil, err
		}
		return rules.NewCapture(spec.Capture.Key, inner)
	case spec.Ref != nil:
		kind := rules.RefTokens
		if spec.Ref.Kind != "" {
			var err error
			if kind, err = rules.ParseRefKind(spec.Ref.Kind); err != nil {
				return nil, err
			}
		}
		return rules.NewReference(spec.Ref.Key, kind)
	}
	return nil, fmt.Errorf("no kind given")
}

func (c *compiler) ruleList(path string, specs []*RuleSpec) ([]rules.Rule, error) {
	out := make([]rules.Rule, len(specs))
	for i, spec := range specs {
		r, err := c.rule(fmt.Sprintf("%s[%d]", path, i), spec)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func compileLength(bounds []int) (rules.Rule, error) {
	switch len(bounds) {
	case 1:
		return rules.NewLength(bounds[0], rules.Unbounded)
	case 2:
		return rules.NewLength(bounds[0], bounds[1])
	default:
		return nil, fmt.Errorf("length takes [min] or [min, max], got %d values", len(bounds))
	}
}

func (c *compiler) repeat(path string, spec *RepeatSpec) (rules.Rule, error) {
	inner, err := c.rule(path+".rule", spec.Rule)
	if err != nil {
		return nil, err
	}
	limit := rules.Unbounded
	if spec.Max != nil {
		limit = *spec.Max
	}
	return rules.NewRepeated(inner, spec.Min, limit)
}

func (c *compiler) boundary(path string, spec *BoundarySpec) (rules.Rule, error) {
	start, err := c.rule(path+".start", spec.Start)
	if err != nil {
		return nil, err
	}
	var between rules.Rule
	if spec.Between != nil {
		if between, err = c.rule(path+".between", spec.Between); err != nil {
			return nil, err
		}
	}
	end, err := c.rule(path+".end", spec.End)
	if err != nil {
		return nil, err
	}
	return rules.NewBoundary(start, between, end)
}

func (c *compiler) recursive(path string, spec *RecursiveSpec) (rules.Rule, error) {
	open, err := c.rule(path+".open", spec.Open)
	if err != nil {
		return nil, err
	}
	closing, err := c.rule(path+".close", spec.Close)
	if err != nil {
		return nil, err
	}
	var contentErr error
	r, err := rules.NewRecursive(open, func(self rules.Rule) rules.Rule {
		c.selfs = append(c.selfs, self)
		defer func() { c.selfs = c.selfs[:len(c.selfs)-1] }()
		content, err := c.rule(path+".content", spec.Content)
		if err != nil {
			contentErr = err
			return nil
		}
		return content
	}, closing)
	if contentErr != nil {
		return nil, contentErr
	}
	return r, err
}

func (c *compiler) look(path string, spec *RuleSpec, behind bool, mode rules.LookMode) (rules.Rule, error) {
	inner, err := c.rule(path, spec)
	if err != nil {
		return nil, err
	}
	if behind {
		return rules.NewLookbehind(inner, mode)
	}
	return rules.NewLookahead(inner, mode)
}

func compileAction(path string, spec *ActionSpec) (actions.Action, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: %s: missing action", ErrInvalidGrammar, path)
	}
	var kinds []string
	add := func(set bool, name string) {
		if set {
			kinds = append(kinds, name)
		}
	}
	add(spec.Filter != "", "filter")
	add(spec.Skip != "", "skip")
	add(spec.Convert != "", "convert")
	add(spec.Annotate != nil, "annotate")
	add(spec.Transform != "", "transform")
	add(spec.Split != "", "split")
	if err := exactlyOne(path, kinds); err != nil {
		return nil, err
	}

	a, err := buildAction(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidGrammar, path, err)
	}
	return a, nil
}

func buildAction(spec *ActionSpec) (actions.Action, error) {
	switch {
	case spec.Filter != "":
		re, err := regexp.Compile(spec.Filter)
		if err != nil {
			return nil, err
		}
		return actions.NewFilter(func(t token.Token) bool { return re.MatchString(t.Value()) })
	case spec.Skip != "":
		re, err := regexp.Compile(spec.Skip)
		if err != nil {
			return nil, err
		}
		return actions.NewSkip(func(t token.Token) bool { return re.MatchString(t.Value()) })
	case spec.Convert != "":
		fn, ok := converters[spec.Convert]
		if !ok {
			return nil, fmt.Errorf("unknown convert %q", spec.Convert)
		}
		return actions.NewConvert(func(t token.Token) (token.Token, error) {
			return withValue(t, fn(t.Value())), nil
		})
	case spec.Annotate != nil:
		meta := maps.Clone(spec.Annotate)
		return actions.NewConvert(func(t token.Token) (token.Token, error) {
			return token.NewAnnotated(t, maps.Clone(meta)), nil
		})
	case spec.Transform != "":
		fn, ok := transforms[spec.Transform]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", spec.Transform)
		}
		return actions.NewTransform(fn)
	case spec.Split != "":
		return actions.NewSplit(spec.Split)
	}
	return nil, fmt.Errorf("no kind given")
}

var converters = map[string]func(string) string{
	"upper":    strings.ToUpper,
	"lower":    strings.ToLower,
	"trim":     strings.TrimSpace,
	"unescape": tokenizer.Unescape,
	"unquote":  tokenizer.Unquote,
}

var transforms = map[string]func([]token.Token) ([]token.Token, error){
	"reverse": func(ts []token.Token) ([]token.Token, error) {
		slices.Reverse(ts)
		return ts, nil
	},
	"join": func(ts []token.Token) ([]token.Token, error) {
		if len(ts) == 0 {
			return nil, nil
		}
		return []token.Token{withValue(ts[0], token.Join(ts))}, nil
	},
	"first": func(ts []token.Token) ([]token.Token, error) {
		return ts[:min(1, len(ts))], nil
	},
	"last": func(ts []token.Token) ([]token.Token, error) {
		return ts[max(0, len(ts)-1):], nil
	},
	"drop": func([]token.Token) ([]token.Token, error) {
		return nil, nil
	},
}

// withValue replaces the text of t, keeping its position, definition and decorations.
func withValue(t token.Token, value string) token.Token {
	if g, ok := token.AsGroup(t); ok {
		return token.Redecorate(t, token.NewGroup(value, g.Children()))
	}
	var b *token.Basic
	if pos, ok := t.Position(); ok {
		b = token.NewAt(value, pos)
	} else {
		b = token.New(value)
	}
	return token.Redecorate(t, b.WithDefinition(t.Definition()))
}
