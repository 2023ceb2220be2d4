package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spicery/nutmeg-tokenrules/pkg/grammar"
	"github.com/spicery/nutmeg-tokenrules/pkg/token"
)

// newLogger writes debug records to stderr when verbose is set.
func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove timestamp for cleaner output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// loadGrammar compiles the named grammar file, or the built-in grammar when filename is empty.
func loadGrammar(filename string) (*grammar.Grammar, error) {
	f := grammar.Default()
	if filename != "" {
		var err error
		if f, err = grammar.LoadFile(filename); err != nil {
			return nil, err
		}
	}
	g, err := grammar.Compile(f)
	if err != nil {
		return nil, fmt.Errorf("failed to compile grammar: %w", err)
	}
	return g, nil
}

// readInput reads all of --input, or stdin.
func readInput() ([]byte, error) {
	if inputFile == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file '%s': %w", inputFile, err)
	}
	return data, nil
}

// readTokens tokenises data with the grammar's definitions, or decodes
// JSON token lines when --json-input is set. The tokens read before an
// error are returned with it.
func readTokens(g *grammar.Grammar, data []byte) ([]token.Token, error) {
	if jsonInput {
		return decodeTokens(data)
	}
	t, err := g.Tokenizer(string(data))
	if err != nil {
		return nil, err
	}
	return t.Tokenize()
}

func decodeTokens(data []byte) ([]token.Token, error) {
	var tokens []token.Token
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec token.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return tokens, fmt.Errorf("line %d: invalid token JSON: %w", line, err)
		}
		tokens = append(tokens, token.Decode(rec))
	}
	if err := scanner.Err(); err != nil {
		return tokens, fmt.Errorf("failed to read token lines: %w", err)
	}
	return tokens, nil
}

// jsonLines writes one JSON value per line.
type jsonLines struct {
	enc *json.Encoder
}

func newJSONLines(w io.Writer) *jsonLines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &jsonLines{enc: enc}
}

func (w *jsonLines) value(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("JSON encoding error: %w", err)
	}
	return nil
}

func (w *jsonLines) tokens(tokens []token.Token) error {
	for _, t := range tokens {
		if err := w.value(token.Encode(t)); err != nil {
			return err
		}
	}
	return nil
}

// writeOutput runs write against --output, or stdout.
func writeOutput(write func(*jsonLines) error) error {
	return withOutput(func(out io.Writer) error {
		return write(newJSONLines(out))
	})
}

func withOutput(write func(io.Writer) error) error {
	if outputFile == "" {
		return write(os.Stdout)
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file '%s': %w", outputFile, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file '%s': %w", outputFile, err)
	}
	return nil
}
