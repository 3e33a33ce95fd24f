package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/openrouter"
)

const contextSeparator = "\n\n---\n\n"

// assembleContext renders the retrieved passages as indexed citation blocks
// for the prompt, and produces the Source projection for the response and
// audit log. Indexing is 1-based in similarity-descending order.
func assembleContext(passages []models.RetrievedPassage) (string, []models.Source) {
	blocks := make([]string, 0, len(passages))
	sources := make([]models.Source, 0, len(passages))

	for i, passage := range passages {
		blocks = append(blocks, fmt.Sprintf("[Source %d] %s (%s):\n%s", i+1, passage.Filename, passage.Section, passage.Content))
		sources = append(sources, models.Source{
			ID:         i + 1,
			Filename:   passage.Filename,
			Section:    passage.Section,
			Similarity: strconv.FormatFloat(passage.Similarity, 'f', 3, 64),
			Type:       models.SourceTypeFor(passage.Section),
		})
	}

	return strings.Join(blocks, contextSeparator), sources
}

// buildMessages interleaves the sliding-window history between the system
// instructions and the current query with its citation context.
func (p *Pipeline) buildMessages(history []models.Message, query, contextBlock string) []openrouter.ChatMessage {
	messages := make([]openrouter.ChatMessage, 0, len(history)+2)
	messages = append(messages, openrouter.ChatMessage{Role: "system", Content: answerSystemPrompt})

	for _, msg := range history {
		messages = append(messages, openrouter.ChatMessage{Role: msg.Role, Content: historyTurnContent(msg)})
	}

	messages = append(messages, openrouter.ChatMessage{
		Role: "user",
		Content: fmt.Sprintf("Based on the following legal documents, answer this question:\n\nQUESTION: %s\n\nCONTEXT FROM LEGAL DOCUMENTS:\n%s\n\nRemember to respond with ONLY the JSON structure specified.",
			query, contextBlock),
	})
	return messages
}

// historyTurnContent reduces structured assistant turns to their summary to
// bound token usage.
func historyTurnContent(msg models.Message) string {
	if msg.Kind != models.MessageKindStructuredAnswer {
		return msg.Content
	}
	var answer models.StructuredAnswer
	if err := json.Unmarshal([]byte(msg.Content), &answer); err != nil || answer.Summary == "" {
		return msg.Content
	}
	return answer.Summary
}
