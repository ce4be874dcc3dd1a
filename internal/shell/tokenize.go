package shell

import "strings"

// Tokenize splits a command line on unquoted spaces. Single and double
// quotes group text, do not nest, and are dropped from the result. There
// are no escapes. An unterminated quote runs to the end of the input.
func Tokenize(input string) []string {
	var (
		tokens   []string
		current  strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range input {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == ' ' && !inSingle && !inDouble:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}
