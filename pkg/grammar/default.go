package grammar

import (
	_ "embed"
	"fmt"
)

//go:embed default.yaml
var defaultGrammar []byte

// Default returns the built-in example grammar.
func Default() *File {
	f, err := Parse(defaultGrammar, FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in grammar: %v", err))
	}
	return f
}
