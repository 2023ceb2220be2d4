package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// single consumes the current token when accept approves it.
func single(r Rule, s *token.Stream, ctx *Context, accept func(token.Token) bool) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	if !s.HasMoreTokens() {
		return nil, nil
	}
	start := s.Index()
	tok, err := s.Current()
	if err != nil {
		return nil, err
	}
	if !accept(tok) {
		return nil, nil
	}
	if err := s.Advance(); err != nil {
		return nil, err
	}
	return newMatch(r, start, []token.Token{tok}), nil
}

// ValueMatch matches one token by its exact text.
type ValueMatch struct {
	value      string
	ignoreCase bool
}

// NewValue matches a token whose value equals value.
func NewValue(value string) *ValueMatch {
	return &ValueMatch{value: value}
}

// NewValueIgnoreCase matches a token whose value equals value under Unicode case folding.
func NewValueIgnoreCase(value string) *ValueMatch {
	return &ValueMatch{value: value, ignoreCase: true}
}

func (r *ValueMatch) Match(s *token.Stream, ctx *Context) (*Match, error) {
	return single(r, s, ctx, func(t token.Token) bool {
		if r.ignoreCase {
			return strings.EqualFold(t.Value(), r.value)
		}
		return t.Value() == r.value
	})
}

func (r *ValueMatch) Not() Rule { return negate(r) }

func (r *ValueMatch) String() string { return fmt.Sprintf("value(%q)", r.value) }

// PatternMatch matches one token whose whole value matches a regular expression.
type PatternMatch struct {
	source string
	re     *regexp.Regexp
}

// NewPattern compiles expr anchored to the whole token value.
func NewPattern(expr string) (*PatternMatch, error) {
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %w", ErrInvalidRule, expr, err)
	}
	return &PatternMatch{source: expr, re: re}, nil
}

func (r *PatternMatch) Match(s *token.Stream, ctx *Context) (*Match, error) {
	return single(r, s, ctx, func(t token.Token) bool {
		return r.re.MatchString(t.Value())
	})
}

func (r *PatternMatch) Not() Rule { return negate(r) }

func (r *PatternMatch) String() string { return fmt.Sprintf("pattern(%q)", r.source) }

// PredicateMatch matches one token accepted by a caller-supplied function.
type PredicateMatch struct {
	accept func(token.Token) bool
}

// NewPredicate wraps accept as a single-token rule.
func NewPredicate(accept func(token.Token) bool) (*PredicateMatch, error) {
	if accept == nil {
		return nil, fmt.Errorf("%w: predicate", ErrNilArgument)
	}
	return &PredicateMatch{accept: accept}, nil
}

func (r *PredicateMatch) Match(s *token.Stream, ctx *Context) (*Match, error) {
	return single(r, s, ctx, r.accept)
}

func (r *PredicateMatch) Not() Rule { return negate(r) }

// LengthMatch matches one token whose value has between min and max characters.
type LengthMatch struct {
	min, max int
}

// NewLength bounds the character count of a token value, inclusive.
func NewLength(min, max int) (*LengthMatch, error) {
	if min < 0 || max < min {
		return nil, fmt.Errorf("%w: length bounds [%d, %d]", ErrInvalidRule, min, max)
	}
	return &LengthMatch{min: min, max: max}, nil
}

func (r *LengthMatch) Match(s *token.Stream, ctx *Context) (*Match, error) {
	return single(r, s, ctx, func(t token.Token) bool {
		n := utf8.RuneCountInString(t.Value())
		return n >= r.min && n <= r.max
	})
}

func (r *LengthMatch) Not() Rule { return negate(r) }

// Constant always or never matches, without consuming anything.
type Constant struct {
	matches bool
}

var (
	alwaysRule = &Constant{matches: true}
	neverRule  = &Constant{matches: false}
)

// Always returns the zero-width rule that always matches.
func Always() *Constant { return alwaysRule }

// Never returns the rule that never matches.
func Never() *Constant { return neverRule }

func (r *Constant) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	if !r.matches {
		return nil, nil
	}
	return emptyMatch(r, s.Index()), nil
}

func (r *Constant) Not() Rule {
	if r.matches {
		return neverRule
	}
	return alwaysRule
}

func (r *Constant) String() string {
	if r.matches {
		return "always"
	}
	return "never"
}
