package models

import "time"

// Answer confidence levels as reported by the generation provider.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// StructuredAnswer is the fixed-schema answer the generation provider is
// contracted to produce. Fallback construction in the answer parser
// guarantees it is always well-formed even when the model output is not.
type StructuredAnswer struct {
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"keyPoints"`
	LegalReferences []string `json:"legalReferences"`
	Details         string   `json:"details"`
	Recommendation  string   `json:"recommendation"`
	Confidence      string   `json:"confidence"`
}

// Interaction is one append-only audit row per answered request, regardless
// of retrieval outcome.
type Interaction struct {
	ID             int64            `json:"-"`
	UserID         string           `json:"-"`
	Query          string           `json:"query"`
	Answer         StructuredAnswer `json:"answer"`
	Sources        []Source         `json:"sources"`
	Model          string           `json:"model"`
	ResponseTimeMs int64            `json:"responseTimeMs"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Consultation statuses.
const (
	ConsultationStatusPending = "pending"
)

// Consultation is a request to be contacted by a human legal professional,
// captured together with the user's full interaction history.
type Consultation struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"-"`
	ContactEmail    string    `json:"contactEmail"`
	ContactPhone    string    `json:"contactPhone"`
	OriginalQuery   string    `json:"originalQuery"`
	ChatHistory     string    `json:"-"`
	AdditionalNotes string    `json:"additionalNotes"`
	Status          string    `json:"status"`
	EmailSent       bool      `json:"emailSent"`
	EmailID         string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}
