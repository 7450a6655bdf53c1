package asm

import "strings"

// tokenize turns raw source into one token list per line: fields are
// split on whitespace, lowercased, and the list is cut at the first
// token beginning with the comment marker. Blank lines come out as
// empty lists. Any text is accepted; syntax errors surface in the
// passes, not here.
func tokenize(source string) [][]string {
	raw := strings.Split(source, "\n")
	lines := make([][]string, len(raw))
	for i, line := range raw {
		fields := strings.Fields(strings.ToLower(line))
		for j, tok := range fields {
			if strings.HasPrefix(tok, commentMarker) {
				fields = fields[:j]
				break
			}
		}
		lines[i] = fields
	}
	return lines
}

// isLabel reports whether tok declares a label.
func isLabel(tok string) bool {
	return strings.HasSuffix(tok, labelTerminator)
}

// splitLabel strips an optional leading label from a token list so that
// classification always sees a mnemonic-first list. The returned label
// has its terminator removed and is empty when the line is unlabeled.
func splitLabel(tokens []string) (label string, rest []string) {
	if len(tokens) > 0 && isLabel(tokens[0]) {
		return strings.TrimSuffix(tokens[0], labelTerminator), tokens[1:]
	}
	return "", tokens
}

func containsToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}
