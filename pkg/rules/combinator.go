package rules

import (
	"fmt"
	"math"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// Unbounded is the largest repetition count; use it as Repeated's max for "no limit".
const Unbounded = math.MaxInt

// Sequence matches its rules one after another.
type Sequence struct {
	rules []Rule
}

// NewSequence requires at least one rule.
func NewSequence(rules ...Rule) (*Sequence, error) {
	if err := requireRules("sequence", rules); err != nil {
		return nil, err
	}
	return &Sequence{rules: append([]Rule(nil), rules...)}, nil
}

func (r *Sequence) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	start := s.Index()
	tokens, ok, err := matchAll(r.rules, s, ctx)
	if !ok || err != nil {
		return nil, err
	}
	return newMatch(r, start, tokens), nil
}

func (r *Sequence) Not() Rule { return negate(r) }

// matchAll matches rules consecutively on the shared stream. On failure the
// stream and the captures are put back as they were on entry.
func matchAll(rules []Rule, s *token.Stream, ctx *Context) ([]token.Token, bool, error) {
	start := s.Index()
	mark := ctx.mark()
	var tokens []token.Token
	for _, rule := range rules {
		m, err := rule.Match(s, ctx)
		if err != nil || m == nil {
			rewind(s, start)
			ctx.rollback(mark)
			return nil, false, err
		}
		tokens = append(tokens, m.tokens...)
	}
	return tokens, true, nil
}

// AnyOf is ordered choice: the first alternative that matches wins.
type AnyOf struct {
	rules []Rule
}

// NewAnyOf requires at least one alternative.
func NewAnyOf(rules ...Rule) (*AnyOf, error) {
	if err := requireRules("any-of", rules); err != nil {
		return nil, err
	}
	return &AnyOf{rules: append([]Rule(nil), rules...)}, nil
}

// Match returns the winning alternative's match as is, so Match.Rule
// reports which alternative it was.
func (r *AnyOf) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	for _, rule := range r.rules {
		m, err := attempt(rule, s, ctx)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return m, nil
		}
	}
	return nil, nil
}

func (r *AnyOf) Not() Rule { return negate(r) }

// Optional matches its rule or, failing that, nothing.
type Optional struct {
	inner Rule
}

func NewOptional(inner Rule) (*Optional, error) {
	if err := requireRule("optional", inner); err != nil {
		return nil, err
	}
	return &Optional{inner: inner}, nil
}

func (r *Optional) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	m, err := attempt(r.inner, s, ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return emptyMatch(r, s.Index()), nil
	}
	return m, nil
}

// Not of a rule that cannot fail never matches.
func (r *Optional) Not() Rule { return neverRule }

// Repeated matches its rule greedily between min and max times.
// It never gives back iterations to let a following rule match.
type Repeated struct {
	inner    Rule
	min, max int
}

func NewRepeated(inner Rule, min, max int) (*Repeated, error) {
	if err := requireRule("repeated", inner); err != nil {
		return nil, err
	}
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: repetition bounds [%d, %d]", ErrInvalidRule, min, max)
	}
	return &Repeated{inner: inner, min: min, max: max}, nil
}

func (r *Repeated) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	start := s.Index()
	mark := ctx.mark()
	var tokens []token.Token
	count := 0
	for count < r.max {
		m, err := attempt(r.inner, s, ctx)
		if err != nil {
			rewind(s, start)
			ctx.rollback(mark)
			return nil, err
		}
		if m == nil {
			break
		}
		count++
		if m.IsEmpty() {
			// Further iterations start from the same place and cannot make
			// progress, so the remaining required ones are satisfied.
			count = max(count, r.min)
			break
		}
		tokens = append(tokens, m.tokens...)
	}
	if count < r.min {
		rewind(s, start)
		ctx.rollback(mark)
		return nil, nil
	}
	return newMatch(r, start, tokens), nil
}

func (r *Repeated) Not() Rule { return negate(r) }

// Boundary matches a start delimiter, some content and an end delimiter.
// It does not track nesting; see Recursive for that.
type Boundary struct {
	start, between, end Rule
}

// NewBoundary treats a nil between as Always.
func NewBoundary(start, between, end Rule) (*Boundary, error) {
	if err := requireRule("boundary start", start); err != nil {
		return nil, err
	}
	if err := requireRule("boundary end", end); err != nil {
		return nil, err
	}
	if isNil(between) {
		between = Always()
	}
	return &Boundary{start: start, between: between, end: end}, nil
}

func (r *Boundary) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	start := s.Index()
	tokens, ok, err := matchAll([]Rule{r.start, r.between, r.end}, s, ctx)
	if !ok || err != nil {
		return nil, err
	}
	return newMatch(r, start, tokens), nil
}

func (r *Boundary) Not() Rule { return negate(r) }

// GroupUnwrap matches a group token whose children, all of them, match inner.
type GroupUnwrap struct {
	inner Rule
}

func NewGroupUnwrap(inner Rule) (*GroupUnwrap, error) {
	if err := requireRule("group", inner); err != nil {
		return nil, err
	}
	return &GroupUnwrap{inner: inner}, nil
}

// Match yields the group token itself; the children are not exposed.
func (r *GroupUnwrap) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	if !s.HasMoreTokens() {
		return nil, nil
	}
	tok, err := s.Current()
	if err != nil {
		return nil, err
	}
	group, ok := token.AsGroup(tok)
	if !ok {
		return nil, nil
	}

	children := token.NewStream(group.Children())
	mark := ctx.mark()
	m, err := r.inner.Match(children, ctx)
	if err != nil || m == nil || m.Start() != 0 || m.End() != children.Len() {
		ctx.rollback(mark)
		return nil, err
	}

	start := s.Index()
	if err := s.Advance(); err != nil {
		ctx.rollback(mark)
		return nil, err
	}
	return newMatch(r, start, []token.Token{tok}), nil
}

func (r *GroupUnwrap) Not() Rule { return negate(r) }
