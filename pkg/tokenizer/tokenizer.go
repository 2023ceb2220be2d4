// Package tokenizer turns source text into the positioned tokens the rule
// engine matches against.
package tokenizer

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// Unclassified is the definition name given to characters no definition accepts.
const Unclassified = "unclassified"

// ErrNoDefinitions is returned when a Tokenizer is created without definitions.
var ErrNoDefinitions = errors.New("no token definitions")

// Comments run from a '#' to the end of the line.
var commentRegex = regexp.MustCompile(`^#[^\n]*`)

// Tokenizer represents the main tokenizer structure.
type Tokenizer struct {
	input       string
	position    int // byte offset
	offset      int // character offset
	line        int
	column      int
	definitions []Definition
	tokens      []token.Token
	strict      bool
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// Strict makes an unclassified character an error instead of a token.
func Strict() Option {
	return func(t *Tokenizer) { t.strict = true }
}

// NewTokenizer creates a new tokenizer instance over input.
func NewTokenizer(input string, definitions []Definition, opts ...Option) (*Tokenizer, error) {
	if len(definitions) == 0 {
		return nil, ErrNoDefinitions
	}
	t := &Tokenizer{
		input:       input,
		line:        1,
		column:      1,
		definitions: definitions,
		tokens:      make([]token.Token, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// DefaultDefinitions recognises strings, numbers, words and escapes. Any
// other character becomes an unclassified token of its own.
func DefaultDefinitions() []Definition {
	number, _ := Pattern("number", `\d+(?:\.\d+)?`)
	str, _ := Pattern("string", `"(?:[^"\\\n]|\\.)*"`)
	return []Definition{
		str,
		number,
		Word("word"),
		Escaped("escaped", '\\'),
	}
}

// Tokenize processes the input and returns a slice of tokens.
func (t *Tokenizer) Tokenize() ([]token.Token, error) {
	for {
		t.skipWhitespaceAndComments()
		if t.position >= len(t.input) {
			return t.tokens, nil
		}
		if err := t.nextToken(); err != nil {
			return t.tokens, err
		}
	}
}

// nextToken reads one token. The definition accepting the longest text
// wins; among equally long matches the earliest definition wins.
func (t *Tokenizer) nextToken() error {
	start := token.Position{Line: t.line, Column: t.column, Offset: t.offset}
	rest := t.input[t.position:]

	best, bestLen := -1, 0
	for i, d := range t.definitions {
		if n := d.match(rest); n > bestLen {
			best, bestLen = i, n
		}
	}

	if best < 0 {
		r, size := utf8.DecodeRuneInString(rest)
		if t.strict {
			return fmt.Errorf("tokenisation error at line %d, column %d: unexpected character %q",
				start.Line, start.Column, r)
		}
		t.tokens = append(t.tokens, token.NewAt(string(r), start).WithDefinition(Unclassified))
		t.advance(size)
		return nil
	}

	text := rest[:bestLen]
	t.tokens = append(t.tokens, token.NewAt(text, start).WithDefinition(t.definitions[best].name))
	t.advance(bestLen)
	return nil
}

// skipWhitespaceAndComments advances past whitespace characters and comments.
func (t *Tokenizer) skipWhitespaceAndComments() {
	for t.position < len(t.input) {
		if match := commentRegex.FindString(t.input[t.position:]); match != "" {
			t.advance(len(match))
			continue
		}

		r, size := utf8.DecodeRuneInString(t.input[t.position:])
		if !unicode.IsSpace(r) {
			break
		}
		t.advance(size)
	}
}

// advance moves forward n bytes, keeping line and column in step.
func (t *Tokenizer) advance(n int) {
	end := min(t.position+n, len(t.input))
	for t.position < end {
		r, size := utf8.DecodeRuneInString(t.input[t.position:])
		if r == '\n' {
			t.line++
			t.column = 1
		} else {
			t.column++
		}
		t.position += size
		t.offset++
	}
}
