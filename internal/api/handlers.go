package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"legal-rag-assistant/internal/auth"
	"legal-rag-assistant/internal/consultation"
	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/pipeline"

	"github.com/google/uuid"
	"github.com/ory/herodot"
)

var errUpstreamUnavailable = herodot.DefaultError{
	CodeField:   http.StatusBadGateway,
	StatusField: http.StatusText(http.StatusBadGateway),
	ErrorField:  "Upstream service unavailable",
}

// upstreamError attaches the failing service's name as the reason in detailed
// error mode; secure mode keeps the response generic.
func (s *Server) upstreamError(reason string) *herodot.DefaultError {
	if s.secureErrors {
		return &errUpstreamUnavailable
	}
	return errUpstreamUnavailable.WithReason(reason)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != "" {
		parsed, err := uuid.Parse(req.ConversationID)
		if err != nil {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid conversation id"))
			return
		}
		conversationID = &parsed
	}

	userID := auth.GetUserFromContext(r.Context())
	result, err := s.pipeline.Answer(r.Context(), userID, req.Query, conversationID)
	if err != nil {
		s.writeAnswerError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.AnswerResponse{
		Success:               true,
		ConversationID:        result.ConversationID.String(),
		Data:                  result.Answer,
		Sources:               result.Sources,
		ConsultationAvailable: result.ConsultationAvailable,
		ConsultationPrompt:    result.ConsultationPrompt,
		Metadata:              result.Metadata,
	})
}

func (s *Server) writeAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *pipeline.UpstreamError
	switch {
	case errors.Is(err, pipeline.ErrQueryRequired):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Query is required"))
	case errors.Is(err, pipeline.ErrConversationNotFound):
		s.writer.WriteError(w, r, herodot.ErrNotFound.WithReason("Conversation not found"))
	case errors.As(err, &upstream):
		s.log.Errorw("upstream provider failure", "service", upstream.Service, "error", upstream.Err)
		s.writer.WriteError(w, r, s.upstreamError(upstream.Service+" provider unavailable"))
	default:
		s.log.Errorw("answer pipeline failure", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to answer query"))
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserFromContext(r.Context())

	idParam := r.URL.Query().Get("id")
	if idParam == "" {
		summaries, err := s.store.ListConversations(userID, 20)
		if err != nil {
			s.log.Errorw("failed to list conversations", "error", err)
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to retrieve conversations"))
			return
		}
		s.writer.Write(w, r, &models.ConversationListResponse{Success: true, Conversations: summaries})
		return
	}

	conversationID, err := uuid.Parse(idParam)
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid conversation id"))
		return
	}

	owned, err := s.store.ConversationOwned(conversationID, userID)
	if err != nil {
		s.log.Errorw("failed to check conversation", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to retrieve conversation"))
		return
	}
	if !owned {
		s.writer.WriteError(w, r, herodot.ErrNotFound.WithReason("Conversation not found"))
		return
	}

	messages, err := s.store.Messages(conversationID)
	if err != nil {
		s.log.Errorw("failed to load messages", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to retrieve conversation"))
		return
	}

	views := make([]models.MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, msg.View())
	}

	s.writer.Write(w, r, &models.ConversationResponse{
		Success:        true,
		ConversationID: idParam,
		MessageCount:   len(messages),
		Messages:       views,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserFromContext(r.Context())

	limit := parseIntParam(r, "limit", 20)
	if limit > 50 {
		limit = 50
	}
	offset := parseIntParam(r, "offset", 0)

	details, total, err := s.store.ConversationPage(userID, limit, offset)
	if err != nil {
		s.log.Errorw("failed to load history page", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to retrieve chat history"))
		return
	}

	s.writer.Write(w, r, &models.HistoryResponse{
		Success:       true,
		Conversations: details,
		Pagination: models.Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
	})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func (s *Server) handleConsultations(w http.ResponseWriter, r *http.Request) {
	var req models.ConsultationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}

	userID := auth.GetUserFromContext(r.Context())
	receipt, err := s.consultations.Submit(r.Context(), userID, req)
	switch {
	case errors.Is(err, consultation.ErrFeeAcknowledgmentRequired):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":                  "Fee acknowledgment required",
			"requiresAcknowledgment": true,
			"feeDisclosure":          consultation.FeeDisclosure,
			"action":                 "Please set feeAcknowledged to true to confirm you understand fees may apply.",
		})
		return
	case errors.Is(err, consultation.ErrContactRequired):
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Contact email and phone are required"))
		return
	case err != nil:
		s.log.Errorw("consultation request failed", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to submit consultation request"))
		return
	}

	s.writer.Write(w, r, &models.ConsultationResponse{
		Success:              true,
		Message:              receipt.Message,
		ConsultationID:       receipt.ConsultationID,
		InteractionsIncluded: receipt.InteractionsIncluded,
		FeeNotice:            receipt.FeeNotice,
	})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.addDocument(w, r)
	case http.MethodGet:
		s.listDocuments(w, r)
	default:
		http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
	}
}

func (s *Server) addDocument(w http.ResponseWriter, r *http.Request) {
	var req models.DocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Document content is required"))
		return
	}

	embedding, err := s.embedder.Embed(r.Context(), s.embeddingModel, req.Content)
	if err != nil {
		s.log.Errorw("document embedding failed", "error", err)
		s.writer.WriteError(w, r, s.upstreamError("embedding provider unavailable"))
		return
	}

	doc := models.NewDocument(req.Filename, req.Section, req.Content)
	doc.Embedding = embedding
	if err := s.store.UpsertDocument(doc); err != nil {
		s.log.Errorw("document store failed", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to store document"))
		return
	}

	s.writer.WriteCreated(w, r, "", &models.DocumentResponse{
		ID:      doc.ID.String(),
		Message: "Document added successfully",
	})
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments()
	if err != nil {
		s.log.Errorw("failed to list documents", "error", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("Failed to retrieve documents"))
		return
	}

	s.writer.Write(w, r, &models.DocumentListResponse{
		Documents: docs,
		Count:     len(docs),
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, &models.HealthResponse{Status: "healthy"})
}
