package consultation

import (
	"fmt"
	"html"
	"strings"

	"legal-rag-assistant/internal/models"
)

// buildEmail renders the lawyer-facing notification: client contact details,
// the AI case brief, and the full Q&A history.
func buildEmail(cfg Config, c *models.Consultation, req models.ConsultationRequest, interactions []models.Interaction, brief string) *Email {
	subjectQuery := req.OriginalQuery
	if subjectQuery == "" {
		subjectQuery = "Legal Inquiry"
	}
	if runes := []rune(subjectQuery); len(runes) > 50 {
		subjectQuery = string(runes[:50])
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<body>\n")
	fmt.Fprintf(&b, "<h1>New Consultation Request #%d</h1>\n", c.ID)
	fmt.Fprintf(&b, "<p>%d total interactions &middot; submitted %s</p>\n", len(interactions), c.CreatedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("<h2>Client Information</h2>\n<ul>\n")
	fmt.Fprintf(&b, "<li><strong>Contact Email:</strong> %s</li>\n", html.EscapeString(req.ContactEmail))
	fmt.Fprintf(&b, "<li><strong>Contact Phone:</strong> %s</li>\n", html.EscapeString(req.ContactPhone))
	b.WriteString("</ul>\n")

	if req.AdditionalNotes != "" {
		b.WriteString("<h2>Client's Additional Notes</h2>\n")
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(req.AdditionalNotes))
	}

	b.WriteString("<h2>AI-Generated Case Summary</h2>\n")
	fmt.Fprintf(&b, "<div style=\"white-space: pre-wrap;\">%s</div>\n", html.EscapeString(brief))

	fmt.Fprintf(&b, "<h2>Full Conversation History (%d interactions)</h2>\n", len(interactions))
	for i, rec := range interactions {
		fmt.Fprintf(&b, "<h3>Question %d</h3>\n<p>%s</p>\n", i+1, html.EscapeString(rec.Query))

		answer := rec.Answer.Summary
		if answer == "" {
			answer = rec.Answer.Details
		}
		if answer == "" {
			answer = "No summary available"
		}
		fmt.Fprintf(&b, "<p><strong>AI Response:</strong> %s</p>\n", html.EscapeString(answer))

		if len(rec.Answer.KeyPoints) > 0 {
			b.WriteString("<ul>\n")
			for _, point := range rec.Answer.KeyPoints {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(point))
			}
			b.WriteString("</ul>\n")
		}
		if rec.Answer.Confidence != "" {
			fmt.Fprintf(&b, "<p><em>Confidence: %s</em></p>\n", html.EscapeString(rec.Answer.Confidence))
		}
		if len(rec.Sources) > 0 {
			names := make([]string, 0, 3)
			for _, src := range rec.Sources {
				if len(names) == 3 {
					break
				}
				names = append(names, src.Filename)
			}
			fmt.Fprintf(&b, "<p><em>Sources: %s</em></p>\n", html.EscapeString(strings.Join(names, ", ")))
		}
	}
	if len(interactions) == 0 {
		b.WriteString("<p>No conversation history available.</p>\n")
	}

	b.WriteString("<hr>\n<p><strong>The client has acknowledged that professional consultation fees may apply.</strong></p>\n")
	b.WriteString("</body>\n</html>\n")

	return &Email{
		From:    cfg.FromAddress,
		To:      cfg.AdminAddress,
		Subject: fmt.Sprintf("[Consultation Request #%d] %s...", c.ID, subjectQuery),
		HTML:    b.String(),
	}
}
