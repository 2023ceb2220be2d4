package token

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexOutOfRange is returned when a stream is asked for a token it does not have.
	ErrIndexOutOfRange = errors.New("token index out of range")
	// ErrNegativeIndex is returned when a stream is created at a negative index.
	ErrNegativeIndex = errors.New("negative stream index")
)

// Stream is a cursor over a fixed token array. The cursor is always in
// [0, Limit()]. Tokens at or after the limit cannot be consumed, but Len and
// At still see the whole array.
//
// A Stream is owned by one caller at a time. Code that needs to try a match
// without disturbing the owner works on a Snapshot.
type Stream struct {
	tokens []Token
	index  int
	limit  int
}

// NewStream creates a stream positioned on the first token.
func NewStream(tokens []Token) *Stream {
	return &Stream{tokens: tokens, limit: len(tokens)}
}

// NewStreamAt creates a stream positioned at index.
func NewStreamAt(tokens []Token, index int) (*Stream, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeIndex, index)
	}
	if index > len(tokens) {
		return nil, fmt.Errorf("%w: %d > %d", ErrIndexOutOfRange, index, len(tokens))
	}
	return &Stream{tokens: tokens, index: index, limit: len(tokens)}, nil
}

// HasMoreTokens reports whether there is a current token before the limit.
func (s *Stream) HasMoreTokens() bool {
	return s.index < s.limit
}

// Current returns the token under the cursor.
func (s *Stream) Current() (Token, error) {
	if !s.HasMoreTokens() {
		return nil, fmt.Errorf("%w: no token at %d", ErrIndexOutOfRange, s.index)
	}
	return s.tokens[s.index], nil
}

// Index returns the cursor position.
func (s *Stream) Index() int {
	return s.index
}

// Len returns the number of tokens in the stream, including any past the limit.
func (s *Stream) Len() int {
	return len(s.tokens)
}

// Limit returns the index the cursor cannot move past.
func (s *Stream) Limit() int {
	return s.limit
}

// At returns the token at an absolute index.
func (s *Stream) At(i int) (Token, error) {
	if i < 0 || i >= len(s.tokens) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return s.tokens[i], nil
}

// Advance consumes the current token.
func (s *Stream) Advance() error {
	if !s.HasMoreTokens() {
		return fmt.Errorf("%w: cannot advance past %d", ErrIndexOutOfRange, s.index)
	}
	s.index++
	return nil
}

// AdvanceTo moves the cursor to i, forwards or backwards, up to the limit.
func (s *Stream) AdvanceTo(i int) error {
	if i < 0 || i > s.limit {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	s.index = i
	return nil
}

// Snapshot returns an independent cursor over the same tokens at the same index.
func (s *Stream) Snapshot() *Stream {
	return &Stream{tokens: s.tokens, index: s.index, limit: s.limit}
}

// Head returns a stream positioned at 0 that can consume only the first n
// tokens. Anchors evaluated on it still see the tokens after n.
func (s *Stream) Head(n int) (*Stream, error) {
	if n < 0 || n > s.limit {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}
	return &Stream{tokens: s.tokens, limit: n}, nil
}

// Slice returns a copy of the tokens in [from, to).
func (s *Stream) Slice(from, to int) ([]Token, error) {
	if from < 0 || to < from || to > len(s.tokens) {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrIndexOutOfRange, from, to)
	}
	return append([]Token(nil), s.tokens[from:to]...), nil
}

// Tokens returns a copy of every token in the stream.
func (s *Stream) Tokens() []Token {
	return append([]Token(nil), s.tokens...)
}
