// Package grammar loads declarative grammar files and compiles them into
// token definitions, rules and rewrites.
package grammar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrInvalidGrammar is returned for grammar files that cannot be loaded or compiled.
var ErrInvalidGrammar = errors.New("invalid grammar")

// Format is the syntax of a grammar file.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from a file extension. Anything that is not
// .toml is read as YAML.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// File is the decoded form of a grammar file.
type File struct {
	// Start names the rule used to report matches.
	Start string `yaml:"start,omitempty" toml:"start,omitempty"`
	// Tokens are tried by the tokenizer in order. When empty the
	// tokenizer's default definitions are used.
	Tokens []TokenSpec `yaml:"tokens,omitempty" toml:"tokens,omitempty"`
	// Rules may refer to each other by name, in any order.
	Rules map[string]*RuleSpec `yaml:"rules,omitempty" toml:"rules,omitempty"`
	// Rewrite entries are tried in order at each token.
	Rewrite []RewriteSpec `yaml:"rewrite,omitempty" toml:"rewrite,omitempty"`
}

// TokenSpec describes one token definition. Exactly one of the kind fields must be set.
type TokenSpec struct {
	Name    string   `yaml:"name" toml:"name"`
	Literal string   `yaml:"literal,omitempty" toml:"literal,omitempty"`
	Fold    string   `yaml:"fold,omitempty" toml:"fold,omitempty"`
	Escape  string   `yaml:"escape,omitempty" toml:"escape,omitempty"`
	Word    bool     `yaml:"word,omitempty" toml:"word,omitempty"`
	Pattern string   `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Combine []string `yaml:"combine,omitempty" toml:"combine,omitempty"`
}

// RuleSpec describes one rule. Exactly one of the kind fields must be set.
type RuleSpec struct {
	Value     *string        `yaml:"value,omitempty" toml:"value,omitempty"`
	ValueFold *string        `yaml:"value_fold,omitempty" toml:"value_fold,omitempty"`
	Pattern   *string        `yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Length    []int          `yaml:"length,omitempty,flow" toml:"length,omitempty"`
	Always    bool           `yaml:"always,omitempty" toml:"always,omitempty"`
	Never     bool           `yaml:"never,omitempty" toml:"never,omitempty"`
	Seq       []*RuleSpec    `yaml:"seq,omitempty" toml:"seq,omitempty"`
	Any       []*RuleSpec    `yaml:"any,omitempty" toml:"any,omitempty"`
	Optional  *RuleSpec      `yaml:"optional,omitempty" toml:"optional,omitempty"`
	Repeat    *RepeatSpec    `yaml:"repeat,omitempty" toml:"repeat,omitempty"`
	Boundary  *BoundarySpec  `yaml:"boundary,omitempty" toml:"boundary,omitempty"`
	Group     *RuleSpec      `yaml:"group,omitempty" toml:"group,omitempty"`
	Recursive *RecursiveSpec `yaml:"recursive,omitempty" toml:"recursive,omitempty"`
	Self      bool           `yaml:"self,omitempty" toml:"self,omitempty"`
	Rule      string         `yaml:"rule,omitempty" toml:"rule,omitempty"`
	Ahead     *RuleSpec      `yaml:"ahead,omitempty" toml:"ahead,omitempty"`
	NotAhead  *RuleSpec      `yaml:"not_ahead,omitempty" toml:"not_ahead,omitempty"`
	Behind    *RuleSpec      `yaml:"behind,omitempty" toml:"behind,omitempty"`
	NotBehind *RuleSpec      `yaml:"not_behind,omitempty" toml:"not_behind,omitempty"`
	Anchor    string         `yaml:"anchor,omitempty" toml:"anchor,omitempty"`
	Not       *RuleSpec      `yaml:"not,omitempty" toml:"not,omitempty"`
	Capture   *CaptureSpec   `yaml:"capture,omitempty" toml:"capture,omitempty"`
	Ref       *RefSpec       `yaml:"ref,omitempty" toml:"ref,omitempty"`
}

// RepeatSpec repeats a rule. A missing max means no upper bound.
type RepeatSpec struct {
	Rule *RuleSpec `yaml:"rule" toml:"rule"`
	Min  int       `yaml:"min,omitempty" toml:"min,omitempty"`
	Max  *int      `yaml:"max,omitempty" toml:"max,omitempty"`
}

// BoundarySpec matches start, between and end in order. A missing between matches nothing.
type BoundarySpec struct {
	Start   *RuleSpec `yaml:"start" toml:"start"`
	Between *RuleSpec `yaml:"between,omitempty" toml:"between,omitempty"`
	End     *RuleSpec `yaml:"end" toml:"end"`
}

// RecursiveSpec describes a nested structure. Inside Content, a rule spec
// with self set refers to the innermost enclosing RecursiveSpec.
type RecursiveSpec struct {
	Open    *RuleSpec `yaml:"open" toml:"open"`
	Content *RuleSpec `yaml:"content" toml:"content"`
	Close   *RuleSpec `yaml:"close" toml:"close"`
}

// CaptureSpec binds what Rule matches to Key.
type CaptureSpec struct {
	Key  string    `yaml:"key" toml:"key"`
	Rule *RuleSpec `yaml:"rule" toml:"rule"`
}

// RefSpec refers back to a capture. Kind is tokens, dynamic or rule; the default is tokens.
type RefSpec struct {
	Key  string `yaml:"key" toml:"key"`
	Kind string `yaml:"kind,omitempty" toml:"kind,omitempty"`
}

// RewriteSpec pairs a rule with the action applied to its matches.
type RewriteSpec struct {
	Name   string      `yaml:"name" toml:"name"`
	Match  *RuleSpec   `yaml:"match" toml:"match"`
	Action *ActionSpec `yaml:"action" toml:"action"`
}

// ActionSpec names one action. Exactly one field must be set.
type ActionSpec struct {
	// Filter keeps the tokens whose value matches the expression.
	Filter string `yaml:"filter,omitempty" toml:"filter,omitempty"`
	// Skip drops the tokens whose value matches the expression.
	Skip string `yaml:"skip,omitempty" toml:"skip,omitempty"`
	// Convert is upper, lower, trim, unescape or unquote.
	Convert string `yaml:"convert,omitempty" toml:"convert,omitempty"`
	// Annotate adds metadata to every matched token.
	Annotate map[string]string `yaml:"annotate,omitempty" toml:"annotate,omitempty"`
	// Transform is reverse, join, first, last or drop.
	Transform string `yaml:"transform,omitempty" toml:"transform,omitempty"`
	// Split breaks each token wherever the expression matches.
	Split string `yaml:"split,omitempty" toml:"split,omitempty"`
}

// LoadFile loads and parses a grammar file, choosing the format by extension.
func LoadFile(filename string) (*File, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read grammar file '%s': %w", filename, err)
	}
	f, err := Parse(data, DetectFormat(filename))
	if err != nil {
		return nil, fmt.Errorf("grammar file '%s': %w", filename, err)
	}
	return f, nil
}

// Parse decodes a grammar. Unknown keys are rejected.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidGrammar, err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse TOML: %w", ErrInvalidGrammar, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %q", ErrInvalidGrammar, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %s", ErrInvalidGrammar, format)
	}
	return &f, nil
}

// Marshal writes a grammar file back out as YAML.
func Marshal(f *File) ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grammar: %w", err)
	}
	return data, nil
}
