// Package retrieval ranks policy chunks against a question by keyword overlap
// and assembles the top excerpts into a prompt context.
//
// Everything here is pure and synchronous; callers own chunk loading and the
// language-model call.
package retrieval

import (
	"regexp"
	"strings"
)

// MinTokenLength is the shortest word kept by Tokenize.
const MinTokenLength = 3

var separatorRun = regexp.MustCompile(`[^a-z0-9\s]+`)

// TokenSet is a set of distinct lowercase query words.
type TokenSet map[string]struct{}

// Has reports whether t is in the set.
func (s TokenSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// Tokenize lower-cases text, turns every run of non-alphanumeric,
// non-whitespace characters into a single space, splits on whitespace and
// keeps the distinct words of at least MinTokenLength characters.
func Tokenize(text string) TokenSet {
	tokens := make(TokenSet)
	if text == "" {
		return tokens
	}

	normalized := separatorRun.ReplaceAllString(strings.ToLower(text), " ")
	for _, word := range strings.Fields(normalized) {
		if len(word) >= MinTokenLength {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}
