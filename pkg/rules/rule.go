// Package rules implements a backtracking matcher over token streams.
//
// A grammar is a tree of Rule values built once and matched many times.
// Every rule obeys the same contract: Match either returns a *Match and
// leaves the stream after the consumed tokens, or returns nil and leaves
// both the stream and the Context exactly as it found them. Combinators
// rely on that contract to backtrack.
//
// Match returns an error only for programmer errors: nil arguments, an
// unresolved Lazy cell, or a stream index fault. An ordinary mismatch is
// a nil *Match with a nil error.
package rules

import (
	"errors"
	"fmt"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

var (
	// ErrInvalidRule is returned when a rule is constructed with bad arguments.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrNilArgument is returned when a required argument is nil.
	ErrNilArgument = errors.New("nil argument")
	// ErrUnresolved is returned when a Lazy cell is matched before it is assigned.
	ErrUnresolved = errors.New("unresolved lazy rule")
)

// Rule matches a stream position.
type Rule interface {
	// Match tries the rule at the stream's current index.
	Match(s *token.Stream, ctx *Context) (*Match, error)
	// Not returns a zero-width rule that succeeds exactly where this rule fails.
	Not() Rule
}

// Match is the immutable record of a successful rule evaluation.
type Match struct {
	start  int
	end    int
	tokens []token.Token
	rule   Rule
}

func newMatch(rule Rule, start int, tokens []token.Token) *Match {
	return &Match{start: start, end: start + len(tokens), tokens: tokens, rule: rule}
}

func emptyMatch(rule Rule, at int) *Match {
	return &Match{start: at, end: at, rule: rule}
}

// Start is the index of the first matched token.
func (m *Match) Start() int { return m.start }

// End is the index just past the last matched token.
func (m *Match) End() int { return m.end }

// Len is the number of matched tokens.
func (m *Match) Len() int { return m.end - m.start }

// IsEmpty reports a zero-width match.
func (m *Match) IsEmpty() bool { return m.start == m.end }

// Rule is the rule that produced the match.
func (m *Match) Rule() Rule { return m.rule }

// Tokens returns a copy of the matched tokens.
func (m *Match) Tokens() []token.Token {
	return append([]token.Token(nil), m.tokens...)
}

// Values returns the text of the matched tokens.
func (m *Match) Values() []string {
	return token.Values(m.tokens)
}

func (m *Match) String() string {
	return fmt.Sprintf("[%d,%d)%q", m.start, m.end, m.Values())
}

func checkArgs(s *token.Stream, ctx *Context) error {
	if s == nil {
		return fmt.Errorf("%w: stream", ErrNilArgument)
	}
	if ctx == nil {
		return fmt.Errorf("%w: context", ErrNilArgument)
	}
	return nil
}

// attempt runs r and undoes any stream or capture changes if it does not match.
func attempt(r Rule, s *token.Stream, ctx *Context) (*Match, error) {
	start := s.Index()
	mark := ctx.mark()
	m, err := r.Match(s, ctx)
	if err != nil || m == nil {
		rewind(s, start)
		ctx.rollback(mark)
	}
	return m, err
}

// rewind moves s back to an index it has already visited.
func rewind(s *token.Stream, index int) {
	if err := s.AdvanceTo(index); err != nil {
		panic(err)
	}
}

func negate(r Rule) Rule {
	return &Lookahead{inner: r, mode: Negative}
}

// isNil reports whether r is nil or a nil pointer to one of this package's
// rule types. Such a value would otherwise panic on its first Match.
func isNil(r Rule) bool {
	switch v := r.(type) {
	case nil:
		return true
	case *Sequence:
		return v == nil
	case *AnyOf:
		return v == nil
	case *Optional:
		return v == nil
	case *Repeated:
		return v == nil
	case *Boundary:
		return v == nil
	case *GroupUnwrap:
		return v == nil
	case *ValueMatch:
		return v == nil
	case *PatternMatch:
		return v == nil
	case *PredicateMatch:
		return v == nil
	case *LengthMatch:
		return v == nil
	case *Constant:
		return v == nil
	case *Recursive:
		return v == nil
	case *Lazy:
		return v == nil
	case *Anchor:
		return v == nil
	case *Lookahead:
		return v == nil
	case *Lookbehind:
		return v == nil
	case *Capture:
		return v == nil
	case *Reference:
		return v == nil
	}
	return false
}

func requireRule(what string, r Rule) error {
	if isNil(r) {
		return fmt.Errorf("%w: %s rule", ErrNilArgument, what)
	}
	return nil
}

func requireRules(what string, rs []Rule) error {
	if len(rs) == 0 {
		return fmt.Errorf("%w: %s needs at least one rule", ErrInvalidRule, what)
	}
	for i, r := range rs {
		if isNil(r) {
			return fmt.Errorf("%w: %s rule %d", ErrNilArgument, what, i)
		}
	}
	return nil
}
