package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"legal-rag-assistant/internal/models"
)

const answerSystemPrompt = `You are a solution-focused legal assistant helping users who are struggling with their Canadian IRCC applications, particularly C11 work permits.

YOUR MISSION: Help users understand and SOLVE their immigration problems. Users come to you when they're stuck, confused, or facing application challenges.

RESPONSE FORMAT (JSON only):
{
  "summary": "1-2 sentences. State the answer clearly and offer hope/direction.",
  "keyPoints": ["3-5 actionable points. What they NEED to know."],
  "legalReferences": ["Specific sections: 'R205(a)', 'IRPR 200', etc."],
  "details": "2-3 paragraphs. Explain the issue AND the path forward.",
  "recommendation": "Clear next steps they can take TODAY to move forward.",
  "confidence": "high/medium/low"
}

SOLUTION-ORIENTED RULES:
- Focus on WHAT THEY CAN DO, not just what the law says.
- If refused, explain common reasons and how to address them.
- If missing documents, specify exactly what to prepare.
- If confused about process, provide step-by-step guidance.
- Always end with actionable next steps.
- Be empathetic but professional.
- Be BRIEF: max 150 words for details, 50 for summary.
- Answer from provided context only.
- Return ONLY valid JSON.`

const (
	consultationOfferPrompt      = "Need more detailed guidance? Connect with our legal team for personalized consultation. Professional fees may apply."
	noEvidenceConsultationPrompt = "Would you like to speak with a legal professional? We can connect you with an immigration lawyer who specializes in C11 work permits. Please note that professional consultation fees may apply."
)

const fallbackSummaryLimit = 200

var codeFencePattern = regexp.MustCompile("```(?:json)?\n?")

// ParseStructuredAnswer parses the raw model output into a StructuredAnswer.
// Surrounding code fences are stripped first. A parse failure degrades to a
// valid answer built from the raw text, so the result is always well-formed.
func ParseStructuredAnswer(raw string) models.StructuredAnswer {
	clean := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))

	var answer models.StructuredAnswer
	if err := json.Unmarshal([]byte(clean), &answer); err != nil {
		return models.StructuredAnswer{
			Summary:         truncateRunes(raw, fallbackSummaryLimit),
			KeyPoints:       []string{},
			LegalReferences: []string{},
			Details:         raw,
			Recommendation:  "",
			Confidence:      models.ConfidenceMedium,
		}
	}

	if answer.KeyPoints == nil {
		answer.KeyPoints = []string{}
	}
	if answer.LegalReferences == nil {
		answer.LegalReferences = []string{}
	}
	switch answer.Confidence {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
	default:
		answer.Confidence = models.ConfidenceMedium
	}
	return answer
}

// NoEvidenceAnswer is the canned answer returned when retrieval yields no
// qualifying passages; the generator is bypassed entirely.
func NoEvidenceAnswer() models.StructuredAnswer {
	return models.StructuredAnswer{
		Summary:         "I couldn't find sufficient information in my knowledge base to fully answer your question.",
		KeyPoints:       []string{},
		LegalReferences: []string{},
		Details:         "The knowledge base does not contain documents that match your query with sufficient relevance. This may be because your question is outside the scope of C11 work permits, immigration policy, or the specific legal documents available.",
		Recommendation:  "For complex or specific legal questions, I recommend consulting with our professional legal team who can provide personalized guidance.",
		Confidence:      models.ConfidenceLow,
	}
}
