package models

import "github.com/google/uuid"

// Document is a corpus passage with its embedding. The corpus is read-only
// from the answering pipeline's perspective; only ingestion writes it.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Section   string    `json:"section"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

func NewDocument(filename, section, content string) *Document {
	return &Document{
		ID:       uuid.New(),
		Filename: filename,
		Section:  section,
		Content:  content,
	}
}

// RetrievedPassage is a per-request similarity search hit. It is never
// persisted; the reduced Source projection is.
type RetrievedPassage struct {
	Content    string
	Filename   string
	Section    string
	Similarity float64
}

// Source is the citation projection of a retrieved passage, identified by its
// 1-based rank in the similarity ordering.
type Source struct {
	ID         int    `json:"id"`
	Filename   string `json:"filename"`
	Section    string `json:"section"`
	Similarity string `json:"similarity"`
	Type       string `json:"type"`
}

const (
	SourceTypeCaseLaw        = "case_law"
	SourceTypeATIPNote       = "atip_note"
	SourceTypePolicyDocument = "policy_document"
)

// SourceTypeFor maps a document section to its citation type.
func SourceTypeFor(section string) string {
	switch section {
	case "Case Laws":
		return SourceTypeCaseLaw
	case "ATIP Notes":
		return SourceTypeATIPNote
	default:
		return SourceTypePolicyDocument
	}
}

type DocumentRequest struct {
	Filename string `json:"filename"`
	Section  string `json:"section"`
	Content  string `json:"content"`
}

type DocumentResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type DocumentListResponse struct {
	Documents []Document `json:"documents"`
	Count     int        `json:"count"`
}
