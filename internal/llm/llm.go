// Package llm defines the completion collaborator used to answer questions
// from retrieved chunks.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// DefaultSystemPrompt instructs the model to stay within the given context.
const DefaultSystemPrompt = `You are a helpful assistant that answers questions using only the provided context.
If the context does not contain the answer, say that you do not know.`

// Prompt is a question together with the retrieved context passages.
type Prompt struct {
	System   string
	Context  []string
	Question string
}

// Completer generates an answer for a prompt.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// UserMessage renders the context passages and question as one message.
func (p Prompt) UserMessage() string {
	var sb strings.Builder
	sb.WriteString("Answer the question based on the following context:\n\nContext:\n")
	for i, c := range p.Context {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(c))
	}
	sb.WriteString("Question: ")
	sb.WriteString(p.Question)
	return sb.String()
}
