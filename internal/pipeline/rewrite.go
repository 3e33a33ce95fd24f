package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/openrouter"
)

// A query is a follow-up candidate when it opens with an interrogative or
// modal word followed shortly by a referential pronoun, or when it is short.
var followUpPattern = regexp.MustCompile(`(?i)^(what|how|why|can|is|are|does|do|tell|explain).{0,20}(it|that|this|they|them|those|the same)`)

const shortQueryTokens = 8

const rewriteSystemPrompt = "Rewrite the user's question to be standalone based on the conversation history. If the question is already clear and standalone, return it unchanged. Output ONLY the rewritten question, nothing else."

// historyTurnLimit bounds each transcript turn handed to the rewrite model.
const historyTurnLimit = 200

func isFollowUpCandidate(query string) bool {
	return followUpPattern.MatchString(query) || len(strings.Fields(query)) < shortQueryTokens
}

// rewriteQuery turns a context-dependent follow-up into a standalone query.
// Rewriting must never fail the request: any provider error or empty output
// falls back to the original query.
func (p *Pipeline) rewriteQuery(ctx context.Context, query string, history []models.Message) string {
	if len(history) == 0 {
		return query
	}
	if !isFollowUpCandidate(query) {
		return query
	}

	transcript := condensedTranscript(history)
	out, err := p.generator.Complete(ctx, []openrouter.ChatMessage{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("CONVERSATION HISTORY:\n%s\n\nUSER'S QUESTION: %s\n\nRewritten standalone question:", transcript, query)},
	}, openrouter.ChatOptions{
		Model:       p.opts.RewriteModel,
		Temperature: 0.1,
		MaxTokens:   150,
	})
	if err != nil {
		p.log.Warnw("query rewrite failed, using original", "error", err)
		return query
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return query
	}
	return out
}

func condensedTranscript(history []models.Message) string {
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(truncateRunes(historyTurnContent(msg), historyTurnLimit))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
