package rules

import (
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// The builders below are shorthand for the NewXxx constructors when a
// grammar is written out in Go source. Like regexp.MustCompile they panic
// if construction fails, which can only happen on a programming mistake.

// Must panics if err is non-nil and otherwise returns r.
func Must[R Rule](r R, err error) R {
	if err != nil {
		panic(err)
	}
	return r
}

func Val(value string) Rule     { return NewValue(value) }
func ValFold(value string) Rule { return NewValueIgnoreCase(value) }

func Regex(expr string) Rule { return Must(NewPattern(expr)) }

func Where(accept func(token.Token) bool) Rule { return Must(NewPredicate(accept)) }

func Length(min, max int) Rule { return Must(NewLength(min, max)) }

func Seq(rules ...Rule) Rule { return Must(NewSequence(rules...)) }
func Any(rules ...Rule) Rule { return Must(NewAnyOf(rules...)) }
func Opt(rule Rule) Rule     { return Must(NewOptional(rule)) }

func Repeat(rule Rule, min, max int) Rule { return Must(NewRepeated(rule, min, max)) }
func ZeroOrMore(rule Rule) Rule           { return Repeat(rule, 0, Unbounded) }
func OneOrMore(rule Rule) Rule            { return Repeat(rule, 1, Unbounded) }

// Between matches start, then anything matched by between, then end.
func Between(start, between, end Rule) Rule { return Must(NewBoundary(start, between, end)) }

func Unwrap(rule Rule) Rule { return Must(NewGroupUnwrap(rule)) }

// Nested builds a Recursive rule; content receives the rule being built.
func Nested(opening Rule, content func(self Rule) Rule, closing Rule) Rule {
	return Must(NewRecursive(opening, content, closing))
}

func Ahead(rule Rule) Rule     { return Must(NewLookahead(rule, Positive)) }
func NotAhead(rule Rule) Rule  { return Must(NewLookahead(rule, Negative)) }
func Behind(rule Rule) Rule    { return Must(NewLookbehind(rule, Positive)) }
func NotBehind(rule Rule) Rule { return Must(NewLookbehind(rule, Negative)) }

func DocumentStart() Rule { return NewAnchor(StartOfDocument) }
func DocumentEnd() Rule   { return NewAnchor(EndOfDocument) }
func LineStart() Rule     { return NewAnchor(StartOfLine) }
func LineEnd() Rule       { return NewAnchor(EndOfLine) }

func Bind(key string, rule Rule) Rule { return Must(NewCapture(key, rule)) }
func Ref(key string) Rule             { return Must(NewReference(key, RefTokens)) }
func DynamicRef(key string) Rule      { return Must(NewReference(key, RefDynamic)) }
func RuleRef(key string) Rule         { return Must(NewReference(key, RefRule)) }
