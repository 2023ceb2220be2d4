package tokenizer

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Unescape expands backslash escape sequences in s. Unknown escapes are
// kept as they are, and \_ expands to nothing.
func Unescape(s string) string {
	var value strings.Builder
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r != '\\' || i >= len(s) {
			value.WriteRune(r)
			continue
		}
		r, size = utf8.DecodeRuneInString(s[i:])
		i += size
		switch r {
		case 'b':
			value.WriteRune('\b')
		case 'f':
			value.WriteRune('\f')
		case 'n':
			value.WriteRune('\n')
		case 'r':
			value.WriteRune('\r')
		case 't':
			value.WriteRune('\t')
		case '\\', '/', '"', '\'', '`':
			value.WriteRune(r)
		case 'u':
			decoded, n := readUnicodeEscape(s[i:])
			value.WriteString(decoded)
			i += n
		case '_':
			// Expands into no characters.
		default:
			value.WriteRune('\\')
			value.WriteRune(r)
		}
	}
	return value.String()
}

// readUnicodeEscape decodes the XXXX of a \uXXXX sequence and reports how
// many bytes it used. A malformed sequence is kept as written.
func readUnicodeEscape(s string) (string, int) {
	n := 0
	for range 4 {
		if n >= len(s) {
			break
		}
		r, size := utf8.DecodeRuneInString(s[n:])
		if r == utf8.RuneError {
			break
		}
		n += size
	}
	code := s[:n]
	if utf8.RuneCountInString(code) == 4 {
		if r, err := strconv.ParseInt(code, 16, 32); err == nil {
			return string(rune(r)), n
		}
	}
	return `\u` + code, n
}

// Unquote removes one pair of matching quotes from s and expands the escapes
// between them. Text that is not quoted is returned unchanged.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last || !strings.ContainsRune("\"'`", rune(first)) {
		return s
	}
	return Unescape(s[1 : len(s)-1])
}
