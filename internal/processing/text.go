package processing

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	// A sentence ends at . ! or ? (optionally followed by closing quotes or
	// brackets) and whitespace.
	sentenceEnd = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {},
	"and": {}, "or": {}, "but": {}, "on": {}, "at": {}, "by": {}, "with": {},
	"from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "its": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "he": {}, "she": {}, "they": {}, "we": {}, "you": {}, "his": {},
	"her": {}, "their": {}, "has": {}, "have": {}, "had": {}, "not": {},
	"will": {}, "would": {}, "said": {}, "says": {}, "after": {}, "into": {},
	"about": {}, "than": {}, "who": {}, "which": {}, "also": {}, "more": {},
}

// RemoveURLs removes all URLs from the input text.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, punctuation, squeezes whitespace, and removes URLs.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	decoded = strings.TrimSpace(decoded)
	return decoded
}

// Tokens returns the lowercase content words of text: stop-words and tokens
// shorter than minLen runes are dropped.
func Tokens(text string, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	var out []string
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		out = append(out, token)
	}
	return out
}

// ExtractKeywords returns the most frequent words that are not stop-words.
func ExtractKeywords(text string, limit, minLen int) []string {
	freq := make(map[string]int)
	for _, token := range Tokens(text, minLen) {
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	keywords := make([]string, 0, max)
	for i := 0; i < max; i++ {
		keywords = append(keywords, pairs[i].word)
	}

	return keywords
}

// SplitSentences breaks text into trimmed sentences, keeping terminal
// punctuation. Paragraph breaks always end a sentence.
func SplitSentences(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		para = whitespace.ReplaceAllString(strings.TrimSpace(para), " ")
		if para == "" {
			continue
		}

		start := 0
		for _, loc := range sentenceEnd.FindAllStringIndex(para+" ", -1) {
			end := loc[1]
			if end > len(para) {
				end = len(para)
			}
			if s := strings.TrimSpace(para[start:end]); s != "" {
				out = append(out, s)
			}
			start = end
		}
		if start < len(para) {
			if s := strings.TrimSpace(para[start:]); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
