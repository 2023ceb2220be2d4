package cmd

import (
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Tokenise the input without rewriting it",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		g, err := loadGrammar(grammarFile)
		if err != nil {
			return err
		}
		data, err := readInput()
		if err != nil {
			return err
		}
		tokens, readErr := readTokens(g, data)
		if err := writeOutput(func(w *jsonLines) error { return w.tokens(tokens) }); err != nil {
			return err
		}
		return finish(readErr)
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}
