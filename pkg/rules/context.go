package rules

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// Context is the environment of one top-level match attempt. It holds
// capture bindings made while matching and named references defined by
// the caller beforehand.
//
// Capture bindings are journaled so that a failed branch can be undone
// exactly. A Context must not be shared between concurrent matches.
type Context struct {
	captures map[string]binding
	journal  []undo
	rules    map[string]Rule
	tokens   map[string][]token.Token
}

type binding struct {
	match *Match
	rule  Rule
}

type undo struct {
	key   string
	prev  binding
	bound bool
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{
		captures: make(map[string]binding),
		rules:    make(map[string]Rule),
		tokens:   make(map[string][]token.Token),
	}
}

// Fork returns a context with the same named references and no captures.
func (c *Context) Fork() *Context {
	return &Context{
		captures: make(map[string]binding),
		rules:    maps.Clone(c.rules),
		tokens:   maps.Clone(c.tokens),
	}
}

// DefineRule registers a named rule that RULE references can fall back to.
func (c *Context) DefineRule(key string, r Rule) error {
	if key == "" {
		return fmt.Errorf("%w: empty reference key", ErrInvalidRule)
	}
	if isNil(r) {
		return fmt.Errorf("%w: rule for %q", ErrNilArgument, key)
	}
	if _, exists := c.rules[key]; exists {
		return fmt.Errorf("%w: rule %q already defined", ErrInvalidRule, key)
	}
	c.rules[key] = r
	return nil
}

// DefineTokens registers a named literal token list that TOKENS references can fall back to.
func (c *Context) DefineTokens(key string, tokens []token.Token) error {
	if key == "" {
		return fmt.Errorf("%w: empty reference key", ErrInvalidRule)
	}
	if _, exists := c.tokens[key]; exists {
		return fmt.Errorf("%w: tokens %q already defined", ErrInvalidRule, key)
	}
	c.tokens[key] = append([]token.Token(nil), tokens...)
	return nil
}

// Rule returns a named rule.
func (c *Context) Rule(key string) (Rule, bool) {
	r, ok := c.rules[key]
	return r, ok
}

// Tokens returns a named literal token list.
func (c *Context) Tokens(key string) ([]token.Token, bool) {
	ts, ok := c.tokens[key]
	return ts, ok
}

// Capture returns the match currently bound to key.
func (c *Context) Capture(key string) (*Match, bool) {
	b, ok := c.captures[key]
	return b.match, ok
}

// CapturedRule returns the rule whose match is bound to key.
func (c *Context) CapturedRule(key string) (Rule, bool) {
	b, ok := c.captures[key]
	return b.rule, ok
}

// Keys returns the bound capture keys in sorted order.
func (c *Context) Keys() []string {
	return slices.Sorted(maps.Keys(c.captures))
}

func (c *Context) bind(key string, m *Match, r Rule) {
	prev, bound := c.captures[key]
	c.journal = append(c.journal, undo{key: key, prev: prev, bound: bound})
	c.captures[key] = binding{match: m, rule: r}
}

func (c *Context) mark() int {
	return len(c.journal)
}

func (c *Context) rollback(mark int) {
	for len(c.journal) > mark {
		u := c.journal[len(c.journal)-1]
		c.journal = c.journal[:len(c.journal)-1]
		if u.bound {
			c.captures[u.key] = u.prev
		} else {
			delete(c.captures, u.key)
		}
	}
}
