package pipeline

import "legal-rag-assistant/internal/models"

// OfferConsultation reports whether a human consultation should be offered
// for the given answer confidence. High confidence never escalates. The
// decision is made on the pre-sanitized answer's confidence field.
func OfferConsultation(confidence string) bool {
	return confidence == models.ConfidenceLow || confidence == models.ConfidenceMedium
}
