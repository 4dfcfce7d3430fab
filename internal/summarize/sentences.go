package summarize

import (
	"strings"
	"unicode"
)

// SplitSentences tokenizes text into sentences. A sentence ends at
// '.', '!', or '?' (plus any trailing quotes or brackets) followed by
// whitespace. Text without terminal punctuation is one sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Pull in closing quotes and brackets.
		for i+1 < len(runes) && isClosing(runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}

		// Only break when followed by whitespace or end of input, so
		// "3.14" and "v1.2.3" stay intact.
		if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’':
		return true
	}
	return false
}
