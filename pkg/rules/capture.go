package rules

import (
	"fmt"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// Capture binds the match of its inner rule to a key in the Context.
type Capture struct {
	key   string
	inner Rule
}

func NewCapture(key string, inner Rule) (*Capture, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty capture key", ErrInvalidRule)
	}
	if err := requireRule("capture", inner); err != nil {
		return nil, err
	}
	return &Capture{key: key, inner: inner}, nil
}

// Match returns the inner match unchanged. A later binding of the same key
// replaces an earlier one.
func (r *Capture) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	m, err := r.inner.Match(s, ctx)
	if err != nil || m == nil {
		return nil, err
	}
	ctx.bind(r.key, m, r.inner)
	return m, nil
}

func (r *Capture) Not() Rule { return negate(r) }

func (r *Capture) Key() string { return r.key }

// RefKind selects how a Reference uses what was captured.
type RefKind int

const (
	// RefTokens requires the same token values as the capture, falling back
	// to a token list defined on the Context under the same key.
	RefTokens RefKind = iota
	// RefDynamic requires the same token values as whatever is bound to the
	// key right now, and nothing else.
	RefDynamic
	// RefRule matches the captured rule again, falling back to a rule
	// defined on the Context under the same key.
	RefRule
)

var refKindNames = [...]string{
	RefTokens:  "tokens",
	RefDynamic: "dynamic",
	RefRule:    "rule",
}

func (k RefKind) String() string {
	if int(k) >= 0 && int(k) < len(refKindNames) {
		return refKindNames[k]
	}
	return fmt.Sprintf("RefKind(%d)", int(k))
}

// ParseRefKind converts a kind name back to a RefKind.
func ParseRefKind(name string) (RefKind, error) {
	for i, n := range refKindNames {
		if n == name {
			return RefKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown reference kind %q", ErrInvalidRule, name)
}

// Reference is a backreference to an earlier Capture. A key with nothing
// bound or defined simply does not match.
type Reference struct {
	key  string
	kind RefKind
}

func NewReference(key string, kind RefKind) (*Reference, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty reference key", ErrInvalidRule)
	}
	if kind < RefTokens || kind > RefRule {
		return nil, fmt.Errorf("%w: reference kind %d", ErrInvalidRule, int(kind))
	}
	return &Reference{key: key, kind: kind}, nil
}

func (r *Reference) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	switch r.kind {
	case RefRule:
		rule, ok := ctx.CapturedRule(r.key)
		if !ok {
			rule, ok = ctx.Rule(r.key)
		}
		if !ok {
			return nil, nil
		}
		return attempt(rule, s, ctx)
	case RefDynamic:
		m, ok := ctx.Capture(r.key)
		if !ok {
			return nil, nil
		}
		return r.matchValues(s, m.tokens)
	default:
		if m, ok := ctx.Capture(r.key); ok {
			return r.matchValues(s, m.tokens)
		}
		if want, ok := ctx.Tokens(r.key); ok {
			return r.matchValues(s, want)
		}
		return nil, nil
	}
}

// matchValues consumes len(want) tokens whose values equal want's, in order.
func (r *Reference) matchValues(s *token.Stream, want []token.Token) (*Match, error) {
	start := s.Index()
	if s.Limit()-start < len(want) {
		return nil, nil
	}
	got, err := s.Slice(start, start+len(want))
	if err != nil {
		return nil, err
	}
	for i := range want {
		if got[i].Value() != want[i].Value() {
			return nil, nil
		}
	}
	if err := s.AdvanceTo(start + len(want)); err != nil {
		return nil, err
	}
	return newMatch(r, start, got), nil
}

func (r *Reference) Not() Rule { return negate(r) }

func (r *Reference) Key() string { return r.key }

func (r *Reference) Kind() RefKind { return r.kind }
