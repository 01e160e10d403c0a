package preset

import (
	"sort"
	"strings"
	"unicode"
)

// #region stopwords
// stopwords are dropped before vibe text is matched or hashed.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"be": true, "and": true, "or": true, "but": true, "with": true,
	"of": true, "on": true, "to": true, "for": true, "in": true,
	"into": true, "from": true, "by": true, "at": true, "as": true,
	"some": true, "very": true, "really": true, "quite": true, "bit": true,
	"little": true, "kind": true, "sort": true, "sound": true, "sounding": true,
	"like": true, "that": true, "this": true, "it": true, "its": true,
	"me": true, "my": true, "i": true, "want": true, "need": true,
	"give": true, "make": true, "please": true, "something": true, "more": true,
}

// Tokens splits text into unique lowercase non-stopword tokens in first-seen order.
func Tokens(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// CanonicalVibe returns the sorted token form of text. Phrasings that differ only
// in word order, case, punctuation or filler words share one canonical form.
func CanonicalVibe(text string) string {
	tokens := Tokens(text)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// #endregion stopwords
