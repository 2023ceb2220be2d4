package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/spicery/nutmeg-tokenrules/pkg/grammar"
)

var makeGrammarCmd = &cobra.Command{
	Use:   "make-grammar",
	Short: "Print the built-in grammar as YAML",
	Long: `make-grammar prints the built-in grammar as YAML, as a starting point
for a custom grammar file.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := grammar.Marshal(grammar.Default())
		if err != nil {
			return err
		}
		return withOutput(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(makeGrammarCmd)
}
