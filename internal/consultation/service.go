// Package consultation handles requests to be contacted by a human legal
// professional: it summarizes the user's interaction history into a case
// brief, persists the request, and hands the notification to a Mailer.
package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/openrouter"

	"go.uber.org/zap"
)

type Store interface {
	ListInteractions(userID string) ([]models.Interaction, error)
	InsertConsultation(c *models.Consultation) error
	MarkConsultationEmailed(id int64, emailID string) error
}

type Generator interface {
	Complete(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.ChatOptions) (string, error)
}

var (
	ErrFeeAcknowledgmentRequired = errors.New("fee acknowledgment required")
	ErrContactRequired           = errors.New("contact email and phone are required")
)

// FeeDisclosure is returned alongside ErrFeeAcknowledgmentRequired so the
// client can present the acknowledgment step.
const FeeDisclosure = "Professional legal consultation may incur fees. By proceeding, you acknowledge that fees may apply and our team will discuss pricing before any chargeable work begins."

const (
	submittedMessage = "Your consultation request has been submitted. Our legal team will contact you within 1-2 business days."
	feeNotice        = "Please note that professional legal consultation may incur fees. Our team will discuss pricing before any chargeable work begins."
)

type Config struct {
	Model        string
	FromAddress  string
	AdminAddress string
}

type Service struct {
	store     Store
	generator Generator
	mailer    Mailer
	cfg       Config
	log       *zap.SugaredLogger
}

func NewService(store Store, generator Generator, mailer Mailer, cfg Config, log *zap.SugaredLogger) *Service {
	return &Service{
		store:     store,
		generator: generator,
		mailer:    mailer,
		cfg:       cfg,
		log:       log,
	}
}

// Receipt confirms a submitted consultation request.
type Receipt struct {
	ConsultationID       int64
	InteractionsIncluded int
	Message              string
	FeeNotice            string
}

// Submit validates the request, captures the user's full interaction history
// with an LLM case brief, persists the consultation, and dispatches the
// lawyer-facing email. Email delivery failure does not fail the request; the
// consultation row stays pending for manual follow-up.
func (s *Service) Submit(ctx context.Context, userID string, req models.ConsultationRequest) (*Receipt, error) {
	if !req.FeeAcknowledged {
		return nil, ErrFeeAcknowledgmentRequired
	}
	if req.ContactEmail == "" || req.ContactPhone == "" {
		return nil, ErrContactRequired
	}

	interactions, err := s.store.ListInteractions(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	brief := s.caseBrief(ctx, interactions)

	historyJSON, err := json.Marshal(interactions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat history: %w", err)
	}

	consultation := &models.Consultation{
		UserID:          userID,
		ContactEmail:    req.ContactEmail,
		ContactPhone:    req.ContactPhone,
		OriginalQuery:   req.OriginalQuery,
		ChatHistory:     string(historyJSON),
		AdditionalNotes: req.AdditionalNotes,
	}
	if err := s.store.InsertConsultation(consultation); err != nil {
		return nil, fmt.Errorf("failed to store consultation: %w", err)
	}

	email := buildEmail(s.cfg, consultation, req, interactions, brief)
	emailID, err := s.mailer.Send(ctx, email)
	if err != nil {
		s.log.Errorw("consultation email dispatch failed", "consultation_id", consultation.ID, "error", err)
	} else if err := s.store.MarkConsultationEmailed(consultation.ID, emailID); err != nil {
		s.log.Errorw("failed to record email dispatch", "consultation_id", consultation.ID, "error", err)
	}

	return &Receipt{
		ConsultationID:       consultation.ID,
		InteractionsIncluded: len(interactions),
		Message:              submittedMessage,
		FeeNotice:            feeNotice,
	}, nil
}

const caseBriefSystemPrompt = `You are a legal case analyst. Summarize the following conversation between a client and an AI legal assistant into a concise case brief for a lawyer. Include:
1. **Client's Main Concern** - What is the core issue?
2. **Topics Discussed** - Key areas covered
3. **AI Guidance Given** - Summary of advice provided
4. **Potential Issues** - Areas needing professional attention
5. **Recommended Next Steps** - What the lawyer should focus on

Keep the summary professional and under 300 words.`

// caseBrief generates a lawyer-facing summary of the interaction history.
// It never fails: provider errors degrade to a fixed notice and the full
// conversation remains attached to the email.
func (s *Service) caseBrief(ctx context.Context, interactions []models.Interaction) string {
	if len(interactions) == 0 {
		return "No previous conversation history available."
	}

	transcript := interactionTranscript(interactions)
	out, err := s.generator.Complete(ctx, []openrouter.ChatMessage{
		{Role: "system", Content: caseBriefSystemPrompt},
		{Role: "user", Content: "CONVERSATION:\n" + transcript},
	}, openrouter.ChatOptions{
		Model:       s.cfg.Model,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		s.log.Warnw("case brief generation failed", "error", err)
		return "Error generating summary. Please review the full conversation below."
	}
	if out == "" {
		return "Summary generation failed."
	}
	return out
}

func interactionTranscript(interactions []models.Interaction) string {
	var b []byte
	for i, rec := range interactions {
		if i > 0 {
			b = append(b, "\n\n"...)
		}
		answer := rec.Answer.Summary
		if answer == "" {
			answer = rec.Answer.Details
		}
		if answer == "" {
			answer = "No response"
		}
		b = append(b, fmt.Sprintf("Q%d: %s\nA%d: %s", i+1, rec.Query, i+1, answer)...)
	}
	return string(b)
}
