package domain

// Chunk is a bounded text window plus its embedding, the unit of retrieval.
// Chunks are never mutated once they have been stored.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
	Source    string    `json:"source"`
}

// Document is raw text waiting to be ingested, labelled with its origin.
type Document struct {
	Text   string
	Source string
}

// Page is the extracted text of a single crawled web page.
type Page struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is the response to a question, with the IDs of the chunks that
// were handed to the language model as context.
type Answer struct {
	Text    string         `json:"answer"`
	Sources []string       `json:"sources"`
	Matches []SearchResult `json:"-"`
}

// CrawlReport summarises a crawl-and-ingest run.
type CrawlReport struct {
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
}
