package pipeline

import (
	"regexp"
	"strings"

	"legal-rag-assistant/internal/models"
)

var (
	citationList           = regexp.MustCompile(`(?i)\s*\[Source\s*\d+(?:\s*,\s*Source\s*\d+)*\]`)
	citationRange          = regexp.MustCompile(`(?i)\s*\[Sources?\s*[\d,\s]+\]`)
	spaceBeforePunctuation = regexp.MustCompile(`\s+([.,])`)
	repeatedWhitespace     = regexp.MustCompile(`\s{2,}`)
)

// StripCitations removes machine-readable [Source N] markers from text and
// tidies the whitespace left behind. Applying it twice yields the same
// result as applying it once.
func StripCitations(text string) string {
	if text == "" {
		return text
	}
	out := citationList.ReplaceAllString(text, "")
	out = citationRange.ReplaceAllString(out, "")
	out = spaceBeforePunctuation.ReplaceAllString(out, "$1")
	out = repeatedWhitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// sanitizeAnswer strips citation markers from every user-visible field. The
// confidence field is never rewritten; the tagged original is what gets
// persisted.
func sanitizeAnswer(answer models.StructuredAnswer) models.StructuredAnswer {
	clean := answer
	clean.Summary = StripCitations(answer.Summary)
	clean.Details = StripCitations(answer.Details)
	clean.Recommendation = StripCitations(answer.Recommendation)

	points := make([]string, 0, len(answer.KeyPoints))
	for _, point := range answer.KeyPoints {
		points = append(points, StripCitations(point))
	}
	clean.KeyPoints = points
	return clean
}
