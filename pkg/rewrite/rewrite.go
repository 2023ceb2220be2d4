// Package rewrite drives rules and actions over a whole token list.
//
// A pass scans the tokens left to right. At each position the rewrites are
// tried in order and the first one whose rule consumes at least one token
// replaces the matched span with its action's output. Tokens no rewrite
// consumes are copied through unchanged.
package rewrite

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spicery/nutmeg-tokenrules/pkg/actions"
	"github.com/spicery/nutmeg-tokenrules/pkg/rules"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// DefaultMaxPasses bounds Run when no WithMaxPasses option is given.
const DefaultMaxPasses = 100

var (
	// ErrInvalidRewrite is returned when a Rewriter is built from an incomplete rewrite.
	ErrInvalidRewrite = errors.New("invalid rewrite")
	// ErrNoFixedPoint is returned by Run when the tokens still change after the last pass.
	ErrNoFixedPoint = errors.New("rewriting did not reach a fixed point")
)

// Rewrite pairs a rule with the action applied to its matches.
type Rewrite struct {
	Name   string
	Rule   rules.Rule
	Action actions.Action
}

// Rewriter applies an ordered list of rewrites.
type Rewriter struct {
	rewrites  []Rewrite
	logger    *slog.Logger
	maxPasses int
	base      *rules.Context
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sends a debug record for every applied rewrite to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxPasses bounds the number of passes Run makes.
func WithMaxPasses(n int) Option {
	return func(r *Rewriter) { r.maxPasses = n }
}

// WithContext supplies the named rules and token lists every attempt can
// refer to. Each attempt works on a fork of ctx, so captures never leak
// between attempts.
func WithContext(ctx *rules.Context) Option {
	return func(r *Rewriter) {
		if ctx != nil {
			r.base = ctx
		}
	}
}

// New creates a Rewriter.
func New(rewrites []Rewrite, opts ...Option) (*Rewriter, error) {
	for i, rw := range rewrites {
		if rw.Rule == nil {
			return nil, fmt.Errorf("%w: rewrite %d (%q) has no rule", ErrInvalidRewrite, i, rw.Name)
		}
		if rw.Action == nil {
			return nil, fmt.Errorf("%w: rewrite %d (%q) has no action", ErrInvalidRewrite, i, rw.Name)
		}
	}
	r := &Rewriter{
		rewrites:  append([]Rewrite(nil), rewrites...),
		logger:    slog.New(slog.DiscardHandler),
		maxPasses: DefaultMaxPasses,
		base:      rules.NewContext(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.maxPasses < 1 {
		return nil, fmt.Errorf("%w: max passes must be at least 1, got %d", ErrInvalidRewrite, r.maxPasses)
	}
	return r, nil
}

// Pass makes one left-to-right pass and reports how many rewrites it applied.
// The input slice is not modified.
func (r *Rewriter) Pass(tokens []token.Token) ([]token.Token, int, error) {
	s := token.NewStream(tokens)
	out := make([]token.Token, 0, len(tokens))
	applied := 0

	for s.HasMoreTokens() {
		replacement, ok, err := r.rewriteAt(s)
		if err != nil {
			return nil, applied, err
		}
		if ok {
			out = append(out, replacement...)
			applied++
			continue
		}
		t, err := s.Current()
		if err != nil {
			return nil, applied, err
		}
		out = append(out, t)
		if err := s.Advance(); err != nil {
			return nil, applied, err
		}
	}
	return out, applied, nil
}

// rewriteAt tries each rewrite at the current index. On success the stream
// is left after the matched span.
func (r *Rewriter) rewriteAt(s *token.Stream) ([]token.Token, bool, error) {
	for _, rw := range r.rewrites {
		ctx := r.base.Fork()
		m, err := rw.Rule.Match(s, ctx)
		if err != nil {
			return nil, false, fmt.Errorf("rewrite %q at token %d: %w", rw.Name, s.Index(), err)
		}
		if m == nil || m.IsEmpty() {
			continue
		}
		replacement, err := rw.Action.Apply(m, ctx)
		if err != nil {
			return nil, false, fmt.Errorf("rewrite %q at token %d: %w", rw.Name, m.Start(), err)
		}
		r.logger.Debug("applied rewrite",
			"name", rw.Name,
			"start", m.Start(),
			"end", m.End(),
			"matched", m.Values(),
			"replacement", token.Values(replacement))
		return replacement, true, nil
	}
	return nil, false, nil
}

// Run repeats Pass until a pass applies nothing. If the tokens are still
// changing after the maximum number of passes it returns the latest tokens
// together with ErrNoFixedPoint.
func (r *Rewriter) Run(tokens []token.Token) ([]token.Token, error) {
	current := tokens
	for pass := 1; pass <= r.maxPasses; pass++ {
		next, applied, err := r.Pass(current)
		if err != nil {
			return current, fmt.Errorf("pass %d: %w", pass, err)
		}
		r.logger.Debug("rewrite pass", "pass", pass, "applied", applied, "tokens", len(next))
		if applied == 0 {
			return next, nil
		}
		current = next
	}
	return current, fmt.Errorf("%w after %d passes", ErrNoFixedPoint, r.maxPasses)
}

// Scan reports the non-overlapping spans rule matches, left to right.
// Zero-width matches are reported but scanning still moves on by one token.
func Scan(rule rules.Rule, tokens []token.Token, base *rules.Context) ([]*rules.Match, error) {
	if rule == nil {
		return nil, fmt.Errorf("%w: scan rule", rules.ErrNilArgument)
	}
	if base == nil {
		base = rules.NewContext()
	}
	s := token.NewStream(tokens)
	var found []*rules.Match
	for s.HasMoreTokens() {
		m, err := rule.Match(s, base.Fork())
		if err != nil {
			return found, fmt.Errorf("scan at token %d: %w", s.Index(), err)
		}
		if m != nil {
			found = append(found, m)
		}
		if m == nil || m.IsEmpty() {
			if err := s.Advance(); err != nil {
				return found, err
			}
		}
	}
	return found, nil
}
