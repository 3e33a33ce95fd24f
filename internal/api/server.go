// Package api exposes the HTTP surface of the legal assistant.
package api

import (
	"context"
	"net/http"
	"time"

	"legal-rag-assistant/internal/auth"
	"legal-rag-assistant/internal/consultation"
	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/pipeline"

	"github.com/google/uuid"
	"github.com/ory/herodot"
	"go.uber.org/zap"
)

// Interfaces for dependency injection
type AnswerPipeline interface {
	Answer(ctx context.Context, userID, query string, conversationID *uuid.UUID) (*pipeline.Result, error)
}

type ConsultationService interface {
	Submit(ctx context.Context, userID string, req models.ConsultationRequest) (*consultation.Receipt, error)
}

type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

type Store interface {
	UpsertDocument(doc *models.Document) error
	ListDocuments() ([]models.Document, error)
	ListConversations(userID string, limit int) ([]models.ConversationSummary, error)
	ConversationOwned(id uuid.UUID, userID string) (bool, error)
	Messages(conversationID uuid.UUID) ([]models.Message, error)
	ConversationPage(userID string, limit, offset int) ([]models.ConversationDetail, int, error)
}

type Server struct {
	mux            *http.ServeMux
	pipeline       AnswerPipeline
	consultations  ConsultationService
	store          Store
	embedder       Embedder
	embeddingModel string
	verifier       *auth.Verifier
	writer         *herodot.JSONWriter
	secureErrors   bool
	log            *zap.SugaredLogger
}

// NewServer builds the HTTP surface. errorMode "secure" strips upstream
// failure detail from error responses; "detailed" keeps it.
func NewServer(answerPipeline AnswerPipeline, consultations ConsultationService, store Store, embedder Embedder, embeddingModel string, verifier *auth.Verifier, errorMode string, log *zap.SugaredLogger) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		pipeline:       answerPipeline,
		consultations:  consultations,
		store:          store,
		embedder:       embedder,
		embeddingModel: embeddingModel,
		verifier:       verifier,
		writer:         herodot.NewJSONWriter(nil),
		secureErrors:   errorMode == "secure",
		log:            log,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.Handle("/answer", s.cors("POST, OPTIONS", http.MethodPost, s.verifier.Middleware(http.HandlerFunc(s.handleAnswer))))
	s.mux.Handle("/conversations", s.cors("GET, OPTIONS", http.MethodGet, s.verifier.Middleware(http.HandlerFunc(s.handleConversations))))
	s.mux.Handle("/history", s.cors("GET, OPTIONS", http.MethodGet, s.verifier.Middleware(http.HandlerFunc(s.handleHistory))))
	s.mux.Handle("/consultations", s.cors("POST, OPTIONS", http.MethodPost, s.verifier.Middleware(http.HandlerFunc(s.handleConsultations))))
	s.mux.Handle("/documents", s.cors("GET, POST, OPTIONS", "", http.HandlerFunc(s.handleDocuments)))
	s.mux.Handle("/health", s.cors("GET, OPTIONS", http.MethodGet, http.HandlerFunc(s.healthCheck)))
}

// Handler returns the full middleware stack for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.mux)
}

func (s *Server) Run(addr string) error {
	s.log.Infof("Server starting on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// cors sets the CORS headers, short-circuits preflight requests, and
// enforces the allowed method when one is given. Handlers that dispatch on
// method themselves pass allowed="".
func (s *Server) cors(methods, allowed string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", methods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if allowed != "" && r.Method != allowed {
			http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
