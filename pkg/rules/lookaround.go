package rules

import (
	"fmt"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// LookMode says whether a lookaround wants its inner rule to match or not.
type LookMode int

const (
	Positive LookMode = iota
	Negative
)

// ShouldMatch maps the inner rule's outcome to the lookaround's outcome.
func (m LookMode) ShouldMatch(matched bool) bool {
	if m == Negative {
		return !matched
	}
	return matched
}

func (m LookMode) flip() LookMode {
	if m == Negative {
		return Positive
	}
	return Negative
}

func (m LookMode) String() string {
	if m == Negative {
		return "negative"
	}
	return "positive"
}

// AnchorKind selects a document or line boundary.
type AnchorKind int

const (
	StartOfDocument AnchorKind = iota
	EndOfDocument
	StartOfLine
	EndOfLine
)

var anchorNames = [...]string{
	StartOfDocument: "start-of-document",
	EndOfDocument:   "end-of-document",
	StartOfLine:     "start-of-line",
	EndOfLine:       "end-of-line",
}

func (k AnchorKind) String() string {
	if int(k) >= 0 && int(k) < len(anchorNames) {
		return anchorNames[k]
	}
	return "anchor"
}

// ParseAnchorKind converts an anchor name back to an AnchorKind.
func ParseAnchorKind(name string) (AnchorKind, error) {
	for i, n := range anchorNames {
		if n == name {
			return AnchorKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown anchor %q", ErrInvalidRule, name)
}

// Anchor is a zero-width boundary assertion.
//
// Line anchors compare the line numbers of neighbouring tokens. When the
// tokens they need carry no position the anchor does not match.
type Anchor struct {
	kind AnchorKind
}

func NewAnchor(kind AnchorKind) *Anchor {
	return &Anchor{kind: kind}
}

func (r *Anchor) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	ok, err := r.holds(s)
	if err != nil || !ok {
		return nil, err
	}
	return emptyMatch(r, s.Index()), nil
}

func (r *Anchor) holds(s *token.Stream) (bool, error) {
	i := s.Index()
	switch r.kind {
	case StartOfDocument:
		return i == 0, nil
	case EndOfDocument:
		return i == s.Len(), nil
	case StartOfLine:
		if i >= s.Len() {
			return false, nil
		}
		cur, err := s.At(i)
		if err != nil {
			return false, err
		}
		curPos, ok := cur.Position()
		if !ok {
			return false, nil
		}
		if i == 0 {
			return true, nil
		}
		prev, err := s.At(i - 1)
		if err != nil {
			return false, err
		}
		prevPos, ok := prev.Position()
		return ok && prevPos.Line < curPos.Line, nil
	case EndOfLine:
		if i == 0 {
			return false, nil
		}
		prev, err := s.At(i - 1)
		if err != nil {
			return false, err
		}
		prevPos, ok := prev.Position()
		if !ok {
			return false, nil
		}
		if i >= s.Len() {
			return true, nil
		}
		cur, err := s.At(i)
		if err != nil {
			return false, err
		}
		curPos, ok := cur.Position()
		return ok && curPos.Line > prevPos.Line, nil
	}
	return false, nil
}

func (r *Anchor) Not() Rule { return negate(r) }

func (r *Anchor) String() string { return r.kind.String() }

// Lookahead asserts that inner does, or does not, match at the current
// position. It never consumes anything.
type Lookahead struct {
	inner Rule
	mode  LookMode
}

func NewLookahead(inner Rule, mode LookMode) (*Lookahead, error) {
	if err := requireRule("lookahead", inner); err != nil {
		return nil, err
	}
	return &Lookahead{inner: inner, mode: mode}, nil
}

// Match keeps the captures made by a successful positive lookahead.
func (r *Lookahead) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	mark := ctx.mark()
	m, err := r.inner.Match(s.Snapshot(), ctx)
	if err != nil {
		ctx.rollback(mark)
		return nil, err
	}
	ok := r.mode.ShouldMatch(m != nil)
	if !ok || r.mode == Negative {
		ctx.rollback(mark)
	}
	if !ok {
		return nil, nil
	}
	return emptyMatch(r, s.Index()), nil
}

func (r *Lookahead) Not() Rule {
	return &Lookahead{inner: r.inner, mode: r.mode.flip()}
}

// Lookbehind asserts that inner does, or does not, match some span of
// tokens ending exactly at the current position. Spans are tried from the
// shortest to the longest. At the start of the stream there is nothing
// behind, so a positive lookbehind fails and a negative one succeeds.
type Lookbehind struct {
	inner Rule
	mode  LookMode
}

func NewLookbehind(inner Rule, mode LookMode) (*Lookbehind, error) {
	if err := requireRule("lookbehind", inner); err != nil {
		return nil, err
	}
	return &Lookbehind{inner: inner, mode: mode}, nil
}

func (r *Lookbehind) Match(s *token.Stream, ctx *Context) (*Match, error) {
	if err := checkArgs(s, ctx); err != nil {
		return nil, err
	}
	mark := ctx.mark()
	found, err := r.search(s, ctx)
	if err != nil {
		ctx.rollback(mark)
		return nil, err
	}
	ok := r.mode.ShouldMatch(found)
	if !ok || r.mode == Negative {
		ctx.rollback(mark)
	}
	if !ok {
		return nil, nil
	}
	return emptyMatch(r, s.Index()), nil
}

// search looks for a start offset from which inner covers [start, current).
// The inner rule can consume only the tokens before the current position;
// anchors inside it still see the whole stream.
func (r *Lookbehind) search(s *token.Stream, ctx *Context) (bool, error) {
	end := s.Index()
	behind, err := s.Head(end)
	if err != nil {
		return false, err
	}
	for start := end - 1; start >= 0; start-- {
		if err := behind.AdvanceTo(start); err != nil {
			return false, err
		}
		mark := ctx.mark()
		m, err := r.inner.Match(behind, ctx)
		if err != nil {
			return false, err
		}
		if m != nil && m.End() == end {
			return true, nil
		}
		ctx.rollback(mark)
	}
	return false, nil
}

func (r *Lookbehind) Not() Rule {
	return &Lookbehind{inner: r.inner, mode: r.mode.flip()}
}
