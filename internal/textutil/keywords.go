// Package textutil holds the small lexical helpers shared by the router,
// the tracker and the context assembler.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keywords lowercases text and returns its distinct content words in
// first-seen order. Words shorter than three letters and stop words are
// dropped.
func Keywords(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	seen := make(map[string]bool, len(words))
	var keywords []string
	for _, w := range words {
		// Strip basic punctuation.
		w = strings.Trim(w, ".,;:!?\"'()[]{}-")
		if w == "" || len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// Overlap counts how many keywords occur in text (case-insensitive
// substring match).
func Overlap(keywords []string, text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// ContainsFold reports whether substr occurs in s ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ContainsPhrase reports whether phrase occurs in s as whole words,
// ignoring case: "ship" matches "ship the model" but not "relationship".
func ContainsPhrase(s, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	lower := strings.ToLower(s)
	for from := 0; from < len(lower); {
		i := strings.Index(lower[from:], phrase)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(phrase)
		if boundaryBefore(lower, start) && boundaryAfter(lower, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(lower[start:])
		from = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Truncate cuts content to maxLen bytes, preferring a line boundary in the
// second half, and marks the cut.
func Truncate(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	truncated := content[:maxLen]
	if lastNewline := strings.LastIndex(truncated, "\n"); lastNewline > maxLen/2 {
		truncated = truncated[:lastNewline]
	}
	return truncated + "\n[...truncated]"
}

// stopWords is a set of common words to filter from keyword matching.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "its": true, "let": true, "may": true, "who": true,
	"did": true, "get": true, "him": true, "his": true, "how": true,
	"man": true, "new": true, "now": true, "old": true, "see": true,
	"way": true, "day": true, "too": true, "use": true, "she": true,
	"that": true, "with": true, "have": true, "this": true, "will": true,
	"your": true, "from": true, "they": true, "been": true, "said": true,
	"each": true, "which": true, "their": true, "there": true, "about": true,
	"would": true, "make": true, "like": true, "just": true, "over": true,
	"such": true, "take": true, "also": true, "into": true, "than": true,
	"them": true, "then": true, "some": true, "what": true, "when": true,
	"were": true, "other": true, "could": true, "after": true, "should": true,
	"please": true, "need": true, "want": true, "help": true, "let's": true,
}
