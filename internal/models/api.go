package models

// AnswerRequest is the body of POST /answer. ConversationID resumes an
// existing conversation; leaving it empty starts a new one.
type AnswerRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

// AnswerMetadata describes how an answer was produced. RewrittenQuery is nil
// unless the disambiguator changed the query.
type AnswerMetadata struct {
	Query              string  `json:"query"`
	RewrittenQuery     *string `json:"rewrittenQuery"`
	Model              string  `json:"model"`
	ResponseTimeMs     int64   `json:"responseTimeMs"`
	DocumentsFound     int     `json:"documentsFound"`
	ConversationLength int     `json:"conversationLength"`
}

// AnswerResponse is the uniform success envelope of POST /answer; even the
// no-evidence path returns this shape.
type AnswerResponse struct {
	Success               bool             `json:"success"`
	ConversationID        string           `json:"conversationId"`
	Data                  StructuredAnswer `json:"data"`
	Sources               []Source         `json:"sources"`
	ConsultationAvailable bool             `json:"consultationAvailable"`
	ConsultationPrompt    *string          `json:"consultationPrompt"`
	Metadata              AnswerMetadata   `json:"metadata"`
}

type ConversationListResponse struct {
	Success       bool                  `json:"success"`
	Conversations []ConversationSummary `json:"conversations"`
}

type ConversationResponse struct {
	Success        bool          `json:"success"`
	ConversationID string        `json:"conversationId"`
	MessageCount   int           `json:"messageCount"`
	Messages       []MessageView `json:"messages"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type HistoryResponse struct {
	Success       bool                 `json:"success"`
	Conversations []ConversationDetail `json:"conversations"`
	Pagination    Pagination           `json:"pagination"`
}

type ConsultationRequest struct {
	ContactEmail    string `json:"contactEmail"`
	ContactPhone    string `json:"contactPhone"`
	OriginalQuery   string `json:"originalQuery"`
	AdditionalNotes string `json:"additionalNotes"`
	FeeAcknowledged bool   `json:"feeAcknowledged"`
}

type ConsultationResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	ConsultationID       int64  `json:"consultationId"`
	InteractionsIncluded int    `json:"interactionsIncluded"`
	FeeNotice            string `json:"feeNotice"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
