package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spicery/nutmeg-tokenrules/pkg/rewrite"
	"github.com/spicery/nutmeg-tokenrules/pkg/rules"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

var ruleName string

// matchRecord is the JSON form of one reported span.
type matchRecord struct {
	Start  int            `json:"start"`
	End    int            `json:"end"`
	Tokens []token.Record `json:"tokens"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Report the spans a grammar rule matches",
	Long: `match scans the input left to right and prints one JSON object per
non-overlapping span the rule matches. The rule defaults to the grammar's
start rule.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		logger := newLogger(verbose)
		g, err := loadGrammar(grammarFile)
		if err != nil {
			return err
		}

		var rule rules.Rule
		name := ruleName
		if name == "" {
			name = "start"
			if rule = g.Start; rule == nil {
				return fmt.Errorf("grammar has no start rule, use --rule")
			}
		} else if rule, err = g.Lookup(name); err != nil {
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
		found, scanErr := rewrite.Scan(rule, tokens, ctx)
		logger.Debug("scan finished", "rule", name, "matches", len(found), "tokens", len(tokens))

		err = writeOutput(func(w *jsonLines) error {
			for _, m := range found {
				rec := matchRecord{Start: m.Start(), End: m.End(), Tokens: []token.Record{}}
				for _, t := range m.Tokens() {
					rec.Tokens = append(rec.Tokens, token.Encode(t))
				}
				if err := w.value(rec); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		return finish(errors.Join(readErr, scanErr))
	},
}

func init() {
	matchCmd.Flags().StringVar(&ruleName, "rule", "", "Name of the rule to match (defaults to the grammar's start rule)")
	rootCmd.AddCommand(matchCmd)
}
