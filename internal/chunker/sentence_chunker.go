package chunker

import (
	"regexp"
	"strings"
)

// SentenceChunker groups sentences into chunks, repeating the last
// overlapSentences sentences of a chunk at the start of the next one.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewSentenceChunker clamps overlapSentences below sentencesPerChunk so
// every chunk advances by at least one sentence.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	overlapSentences = max(0, min(overlapSentences, sentencesPerChunk-1))
	// trailing text without a terminator is kept as a final sentence
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`),
	}
}

func (c *SentenceChunker) Chunk(text string) ([]string, error) {
	var sentences []string
	for _, s := range c.splitter.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	var chunks []string
	stride := c.sentencesPerChunk - c.overlapSentences
	for start := 0; start < len(sentences); start += stride {
		end := min(start+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return chunks, nil
}
