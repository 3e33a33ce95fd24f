// Package pipeline implements the contextual retrieval-augmented answering
// pipeline: history loading, follow-up disambiguation, vector retrieval,
// structured answer generation, citation handling, and escalation.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/openrouter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Interfaces for dependency injection
type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

type Generator interface {
	Complete(ctx context.Context, messages []openrouter.ChatMessage, opts openrouter.ChatOptions) (string, error)
}

type Store interface {
	CreateConversation(userID string) (uuid.UUID, error)
	ConversationOwned(id uuid.UUID, userID string) (bool, error)
	RecentMessages(conversationID uuid.UUID, window int) ([]models.Message, error)
	AppendMessage(conversationID uuid.UUID, role, kind, content string, sources []models.Source) error
	SearchSimilar(embedding []float32, topK int, threshold float64) ([]models.RetrievedPassage, error)
	InsertInteraction(rec *models.Interaction) error
}

// Options enumerates the pipeline configuration; there is no package-level
// provider state.
type Options struct {
	EmbeddingModel     string
	GenerationModel    string
	RewriteModel       string
	RelevanceThreshold float64
	TopK               int
	WindowSize         int
}

// Outcome tags how a result was produced, so callers branch on it instead of
// inspecting payload shapes.
type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeNoEvidence
)

// Result is a completed turn: the sanitized answer plus everything the
// response envelope needs.
type Result struct {
	Outcome               Outcome
	ConversationID        uuid.UUID
	Answer                models.StructuredAnswer
	Sources               []models.Source
	ConsultationAvailable bool
	ConsultationPrompt    *string
	Metadata              models.AnswerMetadata
}

var (
	ErrQueryRequired        = errors.New("query is required")
	ErrConversationNotFound = errors.New("conversation not found")
)

// UpstreamError marks a model provider failure; it is fatal to the request.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type Pipeline struct {
	store     Store
	embedder  Embedder
	generator Generator
	opts      Options
	log       *zap.SugaredLogger
}

func New(store Store, embedder Embedder, generator Generator, opts Options, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		generator: generator,
		opts:      opts,
		log:       log,
	}
}

// Answer runs one turn of the pipeline for the given user. Steps are strictly
// sequential; each depends on the previous step's output.
func (p *Pipeline) Answer(ctx context.Context, userID, query string, conversationID *uuid.UUID) (*Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrQueryRequired
	}

	convID, err := p.resolveConversation(userID, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := p.store.RecentMessages(convID, p.opts.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	standalone := p.rewriteQuery(ctx, query, history)

	passages, err := p.retrieve(ctx, standalone)
	if err != nil {
		return nil, err
	}

	// The user turn becomes durable before generation, so a provider failure
	// never loses the question. A failed generation leaves a trailing user
	// turn without a reply; a later request on the conversation reconciles it.
	if err := p.store.AppendMessage(convID, models.RoleUser, models.MessageKindText, query, nil); err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}

	if len(passages) == 0 {
		return p.noEvidenceResult(convID, userID, query, standalone, history, start)
	}

	contextBlock, sources := assembleContext(passages)
	llmMessages := p.buildMessages(history, query, contextBlock)

	raw, err := p.generator.Complete(ctx, llmMessages, openrouter.ChatOptions{
		Model:       p.opts.GenerationModel,
		Temperature: 0.1,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, &UpstreamError{Service: "generation", Err: err}
	}

	answer := ParseStructuredAnswer(raw)

	if err := p.persistTurn(convID, userID, query, answer, sources, time.Since(start)); err != nil {
		return nil, err
	}

	offer := OfferConsultation(answer.Confidence)
	result := &Result{
		Outcome:               OutcomeAnswered,
		ConversationID:        convID,
		Answer:                sanitizeAnswer(answer),
		Sources:               sources,
		ConsultationAvailable: offer,
		Metadata:              p.metadata(query, standalone, len(sources), len(history), time.Since(start)),
	}
	if offer {
		prompt := consultationOfferPrompt
		result.ConsultationPrompt = &prompt
	}
	return result, nil
}

func (p *Pipeline) resolveConversation(userID string, conversationID *uuid.UUID) (uuid.UUID, error) {
	if conversationID == nil {
		id, err := p.store.CreateConversation(userID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return id, nil
	}

	owned, err := p.store.ConversationOwned(*conversationID, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to check conversation: %w", err)
	}
	if !owned {
		return uuid.Nil, ErrConversationNotFound
	}
	return *conversationID, nil
}

func (p *Pipeline) noEvidenceResult(convID uuid.UUID, userID, query, standalone string, history []models.Message, start time.Time) (*Result, error) {
	answer := NoEvidenceAnswer()

	if err := p.persistTurn(convID, userID, query, answer, []models.Source{}, time.Since(start)); err != nil {
		return nil, err
	}

	prompt := noEvidenceConsultationPrompt
	return &Result{
		Outcome:               OutcomeNoEvidence,
		ConversationID:        convID,
		Answer:                answer,
		Sources:               []models.Source{},
		ConsultationAvailable: true,
		ConsultationPrompt:    &prompt,
		Metadata:              p.metadata(query, standalone, 0, len(history), time.Since(start)),
	}, nil
}

// persistTurn writes the tagged assistant message and the audit row. Both or
// neither should exist for a successful turn; a crash between them is a
// recoverable inconsistency, not corruption.
func (p *Pipeline) persistTurn(convID uuid.UUID, userID, query string, answer models.StructuredAnswer, sources []models.Source, elapsed time.Duration) error {
	tagged, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}

	if err := p.store.AppendMessage(convID, models.RoleAssistant, models.MessageKindStructuredAnswer, string(tagged), sources); err != nil {
		return fmt.Errorf("failed to persist assistant message: %w", err)
	}

	rec := &models.Interaction{
		UserID:         userID,
		Query:          query,
		Answer:         answer,
		Sources:        sources,
		Model:          p.opts.GenerationModel,
		ResponseTimeMs: elapsed.Milliseconds(),
	}
	if err := p.store.InsertInteraction(rec); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

func (p *Pipeline) metadata(query, standalone string, documentsFound, historyLen int, elapsed time.Duration) models.AnswerMetadata {
	md := models.AnswerMetadata{
		Query:              query,
		Model:              p.opts.GenerationModel,
		ResponseTimeMs:     elapsed.Milliseconds(),
		DocumentsFound:     documentsFound,
		ConversationLength: historyLen + 1,
	}
	if standalone != query {
		md.RewrittenQuery = &standalone
	}
	return md
}
