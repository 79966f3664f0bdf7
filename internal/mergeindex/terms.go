package mergeindex

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// SplitName breaks an identifier into lowercase words at separators,
// camelCase humps, acronym ends and letter/digit boundaries.
func SplitName(name string) []string {
	runes := []rune(name)
	var words []string
	var word []rune
	flush := func() {
		if len(word) > 0 {
			words = append(words, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	for i, ch := range runes {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			flush()
			continue
		}
		if i > 0 && len(word) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsLower(prev) && unicode.IsUpper(ch):
				flush()
			case unicode.IsUpper(prev) && unicode.IsUpper(ch) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// HTTPServer splits before the S
				flush()
			case unicode.IsLetter(prev) != unicode.IsLetter(ch):
				flush()
			}
		}
		word = append(word, ch)
	}
	flush()
	return words
}

// Terms returns the search terms of a symbol name: the lowercased name, its
// words and the word stems.
func Terms(name string) []string {
	if name == "" {
		return nil
	}
	seen := make(map[string]bool)
	var terms []string
	add := func(term string) {
		if term != "" && !seen[term] {
			seen[term] = true
			terms = append(terms, term)
		}
	}

	add(strings.ToLower(name))
	for _, word := range SplitName(name) {
		add(word)
		if len(word) > 3 {
			add(porter2.Stem(word))
		}
	}
	return terms
}
