package querysql

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenize splits a free-text query into sanitized FTS5 prefix terms.
//
// Each whitespace-separated token is NFKC-normalized, then stripped of
// every non-alphanumeric rune. Tokens that end up empty are dropped
// entirely; surviving tokens are emitted as quoted phrase prefixes
// ("teams"*) so that words FTS5 reserves as operators - AND, OR, NOT -
// stay plain search terms. An all-punctuation query therefore tokenizes
// to nothing and the caller must treat the text dimension as absent.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tokens []string
	for _, raw := range strings.Fields(norm.NFKC.String(text)) {
		var b strings.Builder
		for _, r := range raw {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			continue
		}
		tokens = append(tokens, `"`+b.String()+`"*`)
	}
	return tokens
}
