// Package features turns raw row text into the lexical feature record the
// scoring engine consumes.
package features

import (
	"regexp"
	"unicode/utf8"
)

// wordPattern matches runs of word characters: Unicode letters, numbers and
// the underscore. Everything else separates tokens.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Features is the canonical lexical summary of one input row.
type Features struct {
	NumChars   int      `json:"num_chars"`
	NumWords   int      `json:"num_words"`
	AvgWordLen float64  `json:"avg_word_len"`
	Words      []string `json:"words"`
}

// Tokenize splits text into word tokens, preserving case and order.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(text, -1)
}

// Extract computes the feature record for text.
// NumChars counts code points of the untokenized input; token lengths are
// counted the same way.
func Extract(text string) Features {
	words := Tokenize(text)
	if words == nil {
		words = []string{}
	}

	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}

	avg := 0.0
	if len(words) > 0 {
		avg = float64(total) / float64(len(words))
	}

	return Features{
		NumChars:   utf8.RuneCountInString(text),
		NumWords:   len(words),
		AvgWordLen: avg,
		Words:      words,
	}
}
