package token

import (
	"fmt"
	"maps"
	"strings"
)

// Position represents a line, column and offset position in the source text.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based character offset
}

// Advance returns the position n characters further along the same line.
func (p Position) Advance(n int) Position {
	return Position{Line: p.Line, Column: p.Column + n, Offset: p.Offset + n}
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is the atomic unit of input the rule engine matches against.
// Tokens are immutable once created.
type Token interface {
	// Value returns the token text.
	Value() string
	// Position returns the source position, if the token carries one.
	Position() (Position, bool)
	// Definition returns the name of the definition that produced the token, or "".
	Definition() string
}

// Decorator is a Token that wraps another token and adds data to it.
// Value, Position and Definition are delegated to the wrapped token.
type Decorator interface {
	Token
	// Unwrap returns the wrapped token.
	Unwrap() Token
	// Rewrap returns a copy of this decoration applied to a different token.
	Rewrap(inner Token) Token
}

// Basic is a plain token.
type Basic struct {
	value      string
	pos        Position
	hasPos     bool
	definition string
}

// New creates a token with no position.
func New(value string) *Basic {
	return &Basic{value: value}
}

// NewAt creates a token at the given source position.
func NewAt(value string, pos Position) *Basic {
	return &Basic{value: value, pos: pos, hasPos: true}
}

// WithDefinition returns a copy of the token attributed to the named definition.
func (b *Basic) WithDefinition(definition string) *Basic {
	c := *b
	c.definition = definition
	return &c
}

func (b *Basic) Value() string              { return b.value }
func (b *Basic) Position() (Position, bool) { return b.pos, b.hasPos }
func (b *Basic) Definition() string         { return b.definition }

func (b *Basic) String() string {
	if b.hasPos {
		return fmt.Sprintf("%q@%s", b.value, b.pos)
	}
	return fmt.Sprintf("%q", b.value)
}

// Annotated adds a key/value metadata mapping to a token.
type Annotated struct {
	Token
	meta map[string]string
}

// NewAnnotated wraps t with a copy of meta.
func NewAnnotated(t Token, meta map[string]string) *Annotated {
	return &Annotated{Token: t, meta: maps.Clone(meta)}
}

// Meta returns the metadata value stored under key.
func (a *Annotated) Meta(key string) (string, bool) {
	v, ok := a.meta[key]
	return v, ok
}

// Metadata returns a copy of the whole mapping.
func (a *Annotated) Metadata() map[string]string {
	return maps.Clone(a.meta)
}

func (a *Annotated) Unwrap() Token { return a.Token }

func (a *Annotated) Rewrap(inner Token) Token {
	return &Annotated{Token: inner, meta: a.meta}
}

// Indexed records the index a token had in its original sequence.
type Indexed struct {
	Token
	index int
}

// NewIndexed wraps t with its original sequence index.
func NewIndexed(t Token, index int) *Indexed {
	return &Indexed{Token: t, index: index}
}

// Index returns the original sequence index.
func (i *Indexed) Index() int { return i.index }

func (i *Indexed) Unwrap() Token { return i.Token }

func (i *Indexed) Rewrap(inner Token) Token {
	return &Indexed{Token: inner, index: i.index}
}

// Group aggregates an ordered list of child tokens behind a single synthetic token.
type Group struct {
	value    string
	children []Token
}

// NewGroup creates a group token labelled value.
func NewGroup(value string, children []Token) *Group {
	return &Group{value: value, children: append([]Token(nil), children...)}
}

func (g *Group) Value() string { return g.value }

// Position is the position of the first child that has one.
func (g *Group) Position() (Position, bool) {
	for _, c := range g.children {
		if p, ok := c.Position(); ok {
			return p, true
		}
	}
	return Position{}, false
}

func (g *Group) Definition() string { return "" }

// Children returns a copy of the grouped tokens.
func (g *Group) Children() []Token {
	return append([]Token(nil), g.children...)
}

// Len returns the number of children.
func (g *Group) Len() int { return len(g.children) }

// Base strips every decoration from t.
func Base(t Token) Token {
	for {
		d, ok := t.(Decorator)
		if !ok {
			return t
		}
		t = d.Unwrap()
	}
}

// AsGroup finds a Group underneath any decorations of t.
func AsGroup(t Token) (*Group, bool) {
	g, ok := Base(t).(*Group)
	return g, ok
}

// IndexOf returns the outermost original index recorded on t.
func IndexOf(t Token) (int, bool) {
	for {
		switch d := t.(type) {
		case *Indexed:
			return d.index, true
		case Decorator:
			t = d.Unwrap()
		default:
			return 0, false
		}
	}
}

// MetaOf looks key up through every annotation layer of t, outermost first.
func MetaOf(t Token, key string) (string, bool) {
	for {
		switch d := t.(type) {
		case *Annotated:
			if v, ok := d.meta[key]; ok {
				return v, true
			}
			t = d.Unwrap()
		case Decorator:
			t = d.Unwrap()
		default:
			return "", false
		}
	}
}

// Redecorate applies the decorations wrapped around original to fresh, in the same order.
func Redecorate(original, fresh Token) Token {
	var layers []Decorator
	for {
		d, ok := original.(Decorator)
		if !ok {
			break
		}
		layers = append(layers, d)
		original = d.Unwrap()
	}
	for i := len(layers) - 1; i >= 0; i-- {
		fresh = layers[i].Rewrap(fresh)
	}
	return fresh
}

// Values returns the text of each token.
func Values(tokens []Token) []string {
	values := make([]string, len(tokens))
	for i, t := range tokens {
		values[i] = t.Value()
	}
	return values
}

// Join concatenates the text of the tokens.
func Join(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Value())
	}
	return b.String()
}
