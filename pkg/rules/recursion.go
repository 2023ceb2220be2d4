package rules

import (
	"fmt"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// Recursive matches opening, content and closing, where content may refer
// back to the Recursive rule itself to describe nested structures.
//
// The opening rule must consume at least one token before content is
// tried, so every recursive step makes progress.
type Recursive struct {
	opening, content, closing Rule
}

// NewRecursive builds content by calling build with the rule being defined.
func NewRecursive(opening Rule, build func(self Rule) Rule, closing Rule) (*Recursive, error) {
	if err := requireRule("recursive opening", opening); err != nil {
		return nil, err
	}
	if err := requireRule("recursive closing", closing); err != nil {
		return nil, err
	}
	if build == nil {
		return nil, fmt.Errorf("%w: recursive content builder", ErrNilArgument)
	}
	r := &Recursive{opening: opening, closing: closing}
	r.content = build(r)
	if isNil(r.content) {
		return nil, fmt.Errorf("%w: recursive content", ErrNilArgument)
	}
	return r, nil
}

func (r *Recursive) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	start := s.Index()
	mark := ctx.mark()
	fail := func(err error) (*Match, error) {
		rewind(s, start)
		ctx.rollback(mark)
		return nil, err
	}

	open, err := r.opening.Match(s, ctx)
	if err != nil || open == nil {
		return fail(err)
	}
	if open.IsEmpty() {
		return fail(nil)
	}
	tokens := append([]token.Token(nil), open.tokens...)

	for _, rule := range []Rule{r.content, r.closing} {
		m, err := rule.Match(s, ctx)
		if err != nil || m == nil {
			return fail(err)
		}
		tokens = append(tokens, m.tokens...)
	}
	return newMatch(r, start, tokens), nil
}

func (r *Recursive) Not() Rule { return negate(r) }

// Lazy is a forward reference to a rule assigned later, for grammars whose
// rules refer to each other. Matching it before Set is a programmer error.
type Lazy struct {
	name   string
	target Rule
}

// NewLazy declares an unassigned cell. The name is only used in errors.
func NewLazy(name string) *Lazy {
	return &Lazy{name: name}
}

// Set assigns the target. A cell can only be assigned once. Nil targets,
// including nil pointers to this package's rule types, are rejected.
func (r *Lazy) Set(target Rule) error {
	if isNil(target) {
		return fmt.Errorf("%w: target of lazy rule %q", ErrNilArgument, r.name)
	}
	if r.target != nil {
		return fmt.Errorf("%w: lazy rule %q already assigned", ErrInvalidRule, r.name)
	}
	r.target = target
	return nil
}

// Resolved reports whether Set has been called.
func (r *Lazy) Resolved() bool {
	return r.target != nil
}

func (r *Lazy) Name() string {
	return r.name
}

func (r *Lazy) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	if r.target == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnresolved, r.name)
	}
	return r.target.Match(s, ctx)
}

func (r *Lazy) Not() Rule { return negate(r) }
