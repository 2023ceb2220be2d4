// Package cmd implements the nutmeg-rewrite command tree.
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spicery/nutmeg-tokenrules/pkg/rewrite"
)

var (
	inputFile   string
	outputFile  string
	grammarFile string
	jsonInput   bool
	verbose     bool
	exit0       bool
	once        bool
	maxPasses   int
)

var rootCmd = &cobra.Command{
	Use:   "nutmeg-rewrite",
	Short: "Tokenise text and rewrite the tokens with a grammar",
	Long: `nutmeg-rewrite tokenises its input, applies the rewrites of a grammar
until nothing changes and prints one JSON token object per line.

Grammars are YAML or TOML files (chosen by extension). Without --grammar
the built-in example grammar is used; see it with 'nutmeg-rewrite make-grammar'.

Examples:
  nutmeg-rewrite --input source.txt                   # Rewrite with the built-in grammar
  nutmeg-rewrite --grammar rules.yaml < source.txt    # Use a custom grammar
  nutmeg-rewrite --once --verbose --input source.txt  # One pass, logging each rewrite
  nutmeg-rewrite tokens --input source.txt            # Tokenise only
  nutmeg-rewrite match --input source.txt            # Report spans the start rule matches`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRewrite,
}

// Execute runs the command named on the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&inputFile, "input", "", "Input file (defaults to stdin)")
	flags.StringVar(&outputFile, "output", "", "Output file (defaults to stdout)")
	flags.StringVar(&grammarFile, "grammar", "", "YAML or TOML grammar file (defaults to the built-in grammar)")
	flags.BoolVar(&jsonInput, "json-input", false, "Read JSON token lines instead of text")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log applied rewrites to stderr")
	flags.BoolVar(&exit0, "exit0", false, "Exit with code 0 even on errors (suppress stderr)")

	rootCmd.Flags().BoolVar(&once, "once", false, "Make a single rewrite pass")
	rootCmd.Flags().IntVar(&maxPasses, "max-passes", rewrite.DefaultMaxPasses, "Maximum number of rewrite passes")
}

func runRewrite(_ *cobra.Command, _ []string) error {
	logger := newLogger(verbose)
	g, err := loadGrammar(grammarFile)
	if err != nil {
		return err
	}
	ctx, err := g.Context()
	if err != nil {
		return err
	}
	data, err := readInput()
	if err != nil {
		return err
	}
	tokens, readErr := readTokens(g, data)

	rw, err := rewrite.New(g.Rewrites,
		rewrite.WithLogger(logger),
		rewrite.WithContext(ctx),
		rewrite.WithMaxPasses(maxPasses))
	if err != nil {
		return err
	}

	var rewriteErr error
	if once {
		out, applied, err := rw.Pass(tokens)
		if err == nil {
			tokens = out
		}
		rewriteErr = err
		logger.Debug("single pass", "applied", applied)
	} else {
		tokens, rewriteErr = rw.Run(tokens)
	}

	// Output tokens even if there was an error.
	if err := writeOutput(func(w *jsonLines) error { return w.tokens(tokens) }); err != nil {
		return err
	}
	return finish(errors.Join(readErr, rewriteErr))
}

// finish applies --exit0 to an error found after output was written.
func finish(err error) error {
	if err == nil || exit0 {
		return nil
	}
	return err
}
