// Package extractive answers questions offline by picking the context
// sentences that best match the question.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"docrag/internal/llm"
)

// NoContextAnswer is returned when nothing in the context matches.
const NoContextAnswer = "I could not find relevant information in the indexed documents."

// Completer ranks sentences by word frequency and overlap with the question
// (stopwords filtered) and returns the best ones in their original order.
type Completer struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentencePat  *regexp.Regexp
	stopwords    map[string]struct{}
}

var _ llm.Completer = (*Completer)(nil)

// New creates an extractive completer returning up to maxSentences sentences.
func New(maxSentences int) *Completer {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Completer{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		sentencePat:  regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
		stopwords:    defaultStopwords(),
	}
}

// Complete ignores p.System; there is no model to instruct.
func (c *Completer) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, passage := range p.Context {
		for _, s := range c.sentencePat.FindAllString(passage, -1) {
			if s = strings.Join(strings.Fields(s), " "); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	if len(sentences) == 0 {
		return NoContextAnswer, nil
	}

	question := map[string]struct{}{}
	for _, tok := range c.tokens(p.Question) {
		question[tok] = struct{}{}
	}

	// word frequencies across the context, normalised to [0,1]
	freq := map[string]float64{}
	for _, s := range sentences {
		for _, tok := range c.tokens(s) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}

	type pair struct {
		idx   int
		score float64
	}
	var scores []pair
	for i, s := range sentences {
		toks := c.tokens(s)
		if len(toks) == 0 {
			continue
		}
		score := 0.0
		matched := false
		seen := map[string]struct{}{}
		for _, tok := range toks {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			if _, ok := question[tok]; ok {
				score += 1 + freq[tok]
				matched = true
			} else {
				score += freq[tok] / 10
			}
		}
		if len(question) > 0 && !matched {
			continue
		}
		scores = append(scores, pair{i, score / math.Sqrt(float64(len(toks)))})
	}
	if len(scores) == 0 {
		return NoContextAnswer, nil
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(c.maxSentences, len(scores))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// tokens returns lowercased word tokens with stopwords removed.
func (c *Completer) tokens(text string) []string {
	all := c.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, t := range all {
		if _, stop := c.stopwords[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "does", "do", "did", "how", "i", "you",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
