package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
)

// Definition describes one kind of token the Tokenizer can recognise.
type Definition struct {
	name    string
	pattern string
	re      *regexp.Regexp
}

// Name is the definition name recorded on the tokens it produces.
func (d Definition) Name() string { return d.name }

// Pattern is the regular expression the definition matches.
func (d Definition) Pattern() string { return d.pattern }

func newDefinition(name, pattern string) (Definition, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return Definition{}, fmt.Errorf("token definition %q: %w", name, err)
	}
	return Definition{name: name, pattern: pattern, re: re}, nil
}

func mustDefinition(name, pattern string) Definition {
	d, err := newDefinition(name, pattern)
	if err != nil {
		panic(err)
	}
	return d
}

// Literal matches exactly text.
func Literal(name, text string) Definition {
	return mustDefinition(name, regexp.QuoteMeta(text))
}

// CaseInsensitive matches text in any letter case.
func CaseInsensitive(name, text string) Definition {
	return mustDefinition(name, `(?i:`+regexp.QuoteMeta(text)+`)`)
}

// Escaped matches the escape character followed by any single character.
func Escaped(name string, escape rune) Definition {
	return mustDefinition(name, regexp.QuoteMeta(string(escape))+`(?s:.)`)
}

// Word matches a run of letters, digits and underscores.
func Word(name string) Definition {
	return mustDefinition(name, `[\p{L}\p{N}_]+`)
}

// Pattern matches a caller-supplied regular expression.
func Pattern(name, expr string) (Definition, error) {
	return newDefinition(name, expr)
}

// Combine matches each of defs in turn, as a single token.
func Combine(name string, defs ...Definition) Definition {
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = `(?:` + d.pattern + `)`
	}
	return mustDefinition(name, strings.Join(parts, ""))
}

// match returns the length in bytes of the prefix of input the definition accepts.
func (d Definition) match(input string) int {
	if d.re == nil {
		return 0
	}
	loc := d.re.FindStringIndex(input)
	if loc == nil {
		return 0
	}
	return loc[1]
}
