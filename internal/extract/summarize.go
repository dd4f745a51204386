package extract

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/DeafMist/news-indexer/backend/internal/processing"
)

// Summarizer condenses a page into a short summary. An empty summary is
// valid.
type Summarizer interface {
	Summarize(ctx context.Context, page Page) (string, error)
}

// DefaultSentences is the summary length used when none is configured.
const DefaultSentences = 5

const (
	idealSentenceWords = 20
	topicWords         = 10
)

// LocalSummarizer picks the highest scoring sentences of the page text and
// returns them in their original order. Sentences score on title overlap,
// topic-word density, length and position.
type LocalSummarizer struct {
	sentences int
}

// NewLocalSummarizer returns a summarizer producing up to sentences
// sentences.
func NewLocalSummarizer(sentences int) *LocalSummarizer {
	if sentences <= 0 {
		sentences = DefaultSentences
	}
	return &LocalSummarizer{sentences: sentences}
}

type scoredSentence struct {
	pos   int
	text  string
	score float64
}

// Summarize never fails; it only honours cancellation.
func (s *LocalSummarizer) Summarize(ctx context.Context, page Page) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sentences := processing.SplitSentences(page.Text)
	if len(sentences) == 0 {
		return "", nil
	}
	if len(sentences) <= s.sentences {
		return strings.Join(sentences, " "), nil
	}

	title := wordSet(processing.Tokens(page.Title, 2))
	topics := make(map[string]float64, topicWords)
	for i, w := range processing.ExtractKeywords(page.Text, topicWords, 3) {
		topics[w] = float64(topicWords-i) / topicWords
	}

	scored := make([]scoredSentence, 0, len(sentences))
	for i, text := range sentences {
		words := processing.Tokens(text, 2)
		scored = append(scored, scoredSentence{
			pos:  i,
			text: text,
			score: 1.5*titleScore(words, title) +
				2.0*topicScore(words, topics) +
				0.5*lengthScore(len(strings.Fields(text))) +
				1.0*positionScore(i, len(sentences)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	top := scored[:s.sentences]
	sort.Slice(top, func(i, j int) bool { return top[i].pos < top[j].pos })

	out := make([]string, 0, len(top))
	for _, st := range top {
		out = append(out, st.text)
	}
	return strings.Join(out, " "), nil
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func titleScore(words []string, title map[string]struct{}) float64 {
	if len(title) == 0 {
		return 0
	}
	hits := 0
	for w := range wordSet(words) {
		if _, ok := title[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(title))
}

func topicScore(words []string, topics map[string]float64) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += topics[w]
	}
	return sum / math.Sqrt(float64(len(words)))
}

func lengthScore(words int) float64 {
	return math.Max(0, 1-math.Abs(float64(idealSentenceWords-words))/idealSentenceWords)
}

// positionScore favours the lead and, to a lesser degree, the close of an
// article.
func positionScore(pos, total int) float64 {
	rel := float64(pos+1) / float64(total)
	switch {
	case rel <= 0.1:
		return 0.17
	case rel <= 0.2:
		return 0.23
	case rel <= 0.3:
		return 0.14
	case rel <= 0.4:
		return 0.08
	case rel <= 0.5:
		return 0.05
	case rel <= 0.6:
		return 0.04
	case rel <= 0.7:
		return 0.06
	case rel <= 0.8:
		return 0.04
	case rel <= 0.9:
		return 0.04
	default:
		return 0.15
	}
}
