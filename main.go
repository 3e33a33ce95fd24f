// Legal RAG Assistant answers legal questions from a document corpus with
// conversational context and confidence-driven escalation to human counsel.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"legal-rag-assistant/internal/api"
	"legal-rag-assistant/internal/auth"
	"legal-rag-assistant/internal/config"
	"legal-rag-assistant/internal/consultation"
	"legal-rag-assistant/internal/logger"
	"legal-rag-assistant/internal/openrouter"
	"legal-rag-assistant/internal/pipeline"
	"legal-rag-assistant/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	zlog, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer func() { _ = zlog.Sync() }()

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatalw("failed to open store", "path", cfg.Database.Path, "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Errorw("error closing store", "error", err)
		}
	}()

	provider := cfg.Services.OpenRouter
	client := openrouter.NewClient(provider.BaseURL, provider.APIKey, time.Duration(provider.Timeout)*time.Second)

	answerPipeline := pipeline.New(store, client, client, pipeline.Options{
		EmbeddingModel:     provider.EmbeddingModel,
		GenerationModel:    provider.LLMModel,
		RewriteModel:       provider.RewriteModel,
		RelevanceThreshold: cfg.Retrieval.RelevanceThreshold,
		TopK:               cfg.Retrieval.TopK,
		WindowSize:         cfg.Retrieval.WindowSize,
	}, zlog)

	consultations := consultation.NewService(store, client, consultation.NewLogMailer(zlog), consultation.Config{
		Model:        provider.LLMModel,
		FromAddress:  cfg.Email.FromAddress,
		AdminAddress: cfg.Email.AdminAddress,
	}, zlog)

	verifier := auth.NewVerifier(cfg.Security.JWTSecret)

	// Production always runs with sanitized error responses, whatever the
	// configured mode says.
	errorMode := cfg.Security.ErrorMode
	if cfg.IsProduction() {
		errorMode = "secure"
	}
	if !cfg.IsDevelopment() && !cfg.Server.TLS.Enabled {
		zlog.Warnw("TLS is disabled outside development", "environment", cfg.App.Environment)
	}

	server := api.NewServer(answerPipeline, consultations, store, client, provider.EmbeddingModel, verifier, errorMode, zlog)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		TLSConfig:    cfg.GetTLSConfig(),
	}

	zlog.Infow("server starting", "addr", addr, "tls", cfg.Server.TLS.Enabled)
	if cfg.Server.TLS.Enabled {
		err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
	} else {
		err = httpServer.ListenAndServe()
	}
	if err != nil {
		zlog.Errorw("server stopped", "error", err)
	}
}
