package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase terms, dropping stopwords and
// optionally folding common English inflections.
type Tokenizer struct {
	stopwords map[string]struct{}
	fold      bool
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(foldSuffixes bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		fold:      foldSuffixes,
	}
}

// Tokenize splits text into terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.fold {
			word = foldSuffix(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// suffixes are tried in order; the first match wins.
var suffixes = []struct {
	suffix  string
	replace string
}{
	{"ies", "y"},
	{"sses", "ss"},
	{"ing", ""},
	{"ed", ""},
	{"es", ""},
	{"s", ""},
}

// foldSuffix strips one inflectional suffix, keeping a stem of at least
// three letters. "ss" endings ("class", "less") are left alone.
func foldSuffix(word string) string {
	if strings.HasSuffix(word, "ss") {
		return word
	}
	for _, s := range suffixes {
		if !strings.HasSuffix(word, s.suffix) {
			continue
		}
		stem := strings.TrimSuffix(word, s.suffix) + s.replace
		if len(stem) < 3 {
			return word
		}
		return stem
	}
	return word
}

// splitWords splits text into words using unicode letter/digit boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
