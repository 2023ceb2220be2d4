// Package actions rewrites the tokens of a successful match.
//
// An Action turns a match into the token sequence that should replace the
// matched span. Actions never modify the match itself.
package actions

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/spicery/nutmeg-tokenrules/pkg/rules"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// ErrInvalidAction is returned when an action is constructed with bad arguments.
var ErrInvalidAction = errors.New("invalid action")

// Action computes the replacement for a matched span.
type Action interface {
	Apply(m *rules.Match, ctx *rules.Context) ([]token.Token, error)
}

// Must panics if err is non-nil and otherwise returns a.
func Must[A Action](a A, err error) A {
	if err != nil {
		panic(err)
	}
	return a
}

// Func adapts an ordinary function to the Action interface.
type Func func(m *rules.Match, ctx *rules.Context) ([]token.Token, error)

func (f Func) Apply(m *rules.Match, ctx *rules.Context) ([]token.Token, error) {
	return f(m, ctx)
}

func checkMatch(m *rules.Match) error {
	if m == nil {
		return fmt.Errorf("%w: nil match", ErrInvalidAction)
	}
	return nil
}

// Filter keeps the matched tokens that satisfy a predicate.
type Filter struct {
	keep func(token.Token) bool
}

func NewFilter(keep func(token.Token) bool) (*Filter, error) {
	if keep == nil {
		return nil, fmt.Errorf("%w: nil filter predicate", ErrInvalidAction)
	}
	return &Filter{keep: keep}, nil
}

func (a *Filter) Apply(m *rules.Match, _ *rules.Context) ([]token.Token, error) {
	if err := checkMatch(m); err != nil {
		return nil, err
	}
	return partition(m.Tokens(), a.keep, true), nil
}

// Skip drops the matched tokens that satisfy a predicate. Over the same
// predicate it keeps exactly the tokens Filter drops.
type Skip struct {
	drop func(token.Token) bool
}

func NewSkip(drop func(token.Token) bool) (*Skip, error) {
	if drop == nil {
		return nil, fmt.Errorf("%w: nil skip predicate", ErrInvalidAction)
	}
	return &Skip{drop: drop}, nil
}

func (a *Skip) Apply(m *rules.Match, _ *rules.Context) ([]token.Token, error) {
	if err := checkMatch(m); err != nil {
		return nil, err
	}
	return partition(m.Tokens(), a.drop, false), nil
}

func partition(tokens []token.Token, pred func(token.Token) bool, want bool) []token.Token {
	out := make([]token.Token, 0, len(tokens))
	for _, t := range tokens {
		if pred(t) == want {
			out = append(out, t)
		}
	}
	return out
}

// Convert maps every matched token to exactly one new token.
type Convert struct {
	fn func(token.Token) (token.Token, error)
}

func NewConvert(fn func(token.Token) (token.Token, error)) (*Convert, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil converter", ErrInvalidAction)
	}
	return &Convert{fn: fn}, nil
}

// Apply returns the converter's error as is.
func (a *Convert) Apply(m *rules.Match, _ *rules.Context) ([]token.Token, error) {
	if err := checkMatch(m); err != nil {
		return nil, err
	}
	tokens := m.Tokens()
	out := make([]token.Token, len(tokens))
	for i, t := range tokens {
		c, err := a.fn(t)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Transform maps the whole matched token list to a new list.
type Transform struct {
	fn func([]token.Token) ([]token.Token, error)
}

func NewTransform(fn func([]token.Token) ([]token.Token, error)) (*Transform, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil transform", ErrInvalidAction)
	}
	return &Transform{fn: fn}, nil
}

// Apply hands the function its own copy of the tokens and returns its error as is.
func (a *Transform) Apply(m *rules.Match, _ *rules.Context) ([]token.Token, error) {
	if err := checkMatch(m); err != nil {
		return nil, err
	}
	return a.fn(m.Tokens())
}

// Split breaks each matched token apart wherever a regular expression matches.
//
// Empty fragments are dropped. A fragment of a positioned token is placed
// at the original position advanced by the characters before it, and keeps
// the original token's decorations.
type Split struct {
	sep *regexp.Regexp
}

func NewSplit(pattern string) (*Split, error) {
	sep, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: split pattern %q: %w", ErrInvalidAction, pattern, err)
	}
	return &Split{sep: sep}, nil
}

func (a *Split) Apply(m *rules.Match, _ *rules.Context) ([]token.Token, error) {
	if err := checkMatch(m); err != nil {
		return nil, err
	}
	var out []token.Token
	for _, t := range m.Tokens() {
		out = append(out, a.split(t)...)
	}
	return out, nil
}

func (a *Split) split(t token.Token) []token.Token {
	value := t.Value()
	pos, hasPos := t.Position()
	definition := t.Definition()

	var out []token.Token
	emit := func(from, to int) {
		if from == to {
			return
		}
		fragment := value[from:to]
		var fresh *token.Basic
		if hasPos {
			fresh = token.NewAt(fragment, pos.Advance(utf8.RuneCountInString(value[:from])))
		} else {
			fresh = token.New(fragment)
		}
		out = append(out, token.Redecorate(t, fresh.WithDefinition(definition)))
	}

	locs := a.sep.FindAllStringIndex(value, -1)
	if len(locs) == 0 {
		return []token.Token{t}
	}
	last := 0
	for _, loc := range locs {
		emit(last, loc[0])
		last = loc[1]
	}
	emit(last, len(value))
	return out
}
