package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Conversation is a durable, ordered sequence of messages belonging to one
// user. Created lazily on the first message of a session and never mutated.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message content kinds. The kind is set at write time so readers never have
// to sniff whether content is plain text or a serialized structured answer.
const (
	MessageKindText             = "text"
	MessageKindStructuredAnswer = "structured_answer"
)

// Message is one turn of a conversation. Assistant turns store the structured
// answer serialized as JSON with Kind set to MessageKindStructuredAnswer.
type Message struct {
	ID             int64     `json:"-"`
	ConversationID uuid.UUID `json:"-"`
	Role           string    `json:"role"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessageView is the API-facing rendering of a message, with structured
// assistant content decoded into an object.
type MessageView struct {
	Role      string    `json:"role"`
	Content   any       `json:"content"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"createdAt"`
}

// View decodes structured assistant content for API responses. Content that
// fails to decode is returned as the raw string.
func (m Message) View() MessageView {
	view := MessageView{
		Role:      m.Role,
		Content:   m.Content,
		Sources:   m.Sources,
		CreatedAt: m.CreatedAt,
	}
	if view.Sources == nil {
		view.Sources = []Source{}
	}
	if m.Kind == MessageKindStructuredAnswer {
		var answer StructuredAnswer
		if err := json.Unmarshal([]byte(m.Content), &answer); err == nil {
			view.Content = answer
		}
	}
	return view
}

// ConversationSummary is a listing row: the conversation plus its opening
// user query and message count.
type ConversationSummary struct {
	ID           uuid.UUID `json:"id"`
	FirstQuery   string    `json:"firstQuery"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ConversationDetail is one history page entry: a conversation with all of
// its messages grouped in ascending order.
type ConversationDetail struct {
	ConversationID uuid.UUID     `json:"conversationId"`
	FirstQuery     string        `json:"firstQuery"`
	MessageCount   int           `json:"messageCount"`
	StartedAt      time.Time     `json:"startedAt"`
	Messages       []MessageView `json:"messages"`
}
