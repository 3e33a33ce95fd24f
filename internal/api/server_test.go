package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"legal-rag-assistant/internal/auth"
	"legal-rag-assistant/internal/consultation"
	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/pipeline"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type mockPipeline struct {
	result *pipeline.Result
	err    error

	gotUserID string
	gotQuery  string
	gotConvID *uuid.UUID
}

func (m *mockPipeline) Answer(_ context.Context, userID, query string, conversationID *uuid.UUID) (*pipeline.Result, error) {
	m.gotUserID = userID
	m.gotQuery = query
	m.gotConvID = conversationID
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockConsultations struct {
	receipt *consultation.Receipt
	err     error
}

func (m *mockConsultations) Submit(_ context.Context, _ string, _ models.ConsultationRequest) (*consultation.Receipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.receipt, nil
}

type mockEmbedder struct {
	embedding []float32
	err       error
}

func (m *mockEmbedder) Embed(context.Context, string, string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.embedding, nil
}

type mockStore struct {
	documents     []models.Document
	upserted      []*models.Document
	summaries     []models.ConversationSummary
	owned         bool
	messages      []models.Message
	details       []models.ConversationDetail
	total         int
	gotPageLimit  int
	gotPageOffset int
}

func (m *mockStore) UpsertDocument(doc *models.Document) error {
	m.upserted = append(m.upserted, doc)
	return nil
}

func (m *mockStore) ListDocuments() ([]models.Document, error) {
	return m.documents, nil
}

func (m *mockStore) ListConversations(string, int) ([]models.ConversationSummary, error) {
	return m.summaries, nil
}

func (m *mockStore) ConversationOwned(uuid.UUID, string) (bool, error) {
	return m.owned, nil
}

func (m *mockStore) Messages(uuid.UUID) ([]models.Message, error) {
	return m.messages, nil
}

func (m *mockStore) ConversationPage(_ string, limit, offset int) ([]models.ConversationDetail, int, error) {
	m.gotPageLimit = limit
	m.gotPageOffset = offset
	return m.details, m.total, nil
}

type serverFixture struct {
	pipeline      *mockPipeline
	consultations *mockConsultations
	embedder      *mockEmbedder
	store         *mockStore
	handler       http.Handler
}

func newServerFixture() *serverFixture {
	return newServerFixtureWithErrorMode("detailed")
}

func newServerFixtureWithErrorMode(errorMode string) *serverFixture {
	f := &serverFixture{
		pipeline:      &mockPipeline{},
		consultations: &mockConsultations{},
		embedder:      &mockEmbedder{embedding: []float32{0.1, 0.2}},
		store:         &mockStore{},
	}
	server := NewServer(
		f.pipeline,
		f.consultations,
		f.store,
		f.embedder,
		"test-embedding-model",
		auth.NewVerifier(testSecret),
		errorMode,
		zap.NewNop().Sugar(),
	)
	f.handler = server.Handler()
	return f
}

func bearerToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "user-1",
		Email:  "user@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func doRequest(t *testing.T, handler http.Handler, method, target, authHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func answerResult() *pipeline.Result {
	return &pipeline.Result{
		Outcome:        pipeline.OutcomeAnswered,
		ConversationID: uuid.New(),
		Answer: models.StructuredAnswer{
			Summary:         "Yes.",
			KeyPoints:       []string{"Point"},
			LegalReferences: []string{"R205(a)"},
			Details:         "Detail.",
			Recommendation:  "Apply.",
			Confidence:      "high",
		},
		Sources: []models.Source{{ID: 1, Filename: "doc.pdf", Section: "Case Laws", Similarity: "0.912", Type: "case_law"}},
		Metadata: models.AnswerMetadata{
			Query:              "Can I apply?",
			Model:              "test-model",
			DocumentsFound:     1,
			ConversationLength: 1,
		},
	}
}

func TestAnswerRequiresAuth(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodPost, "/answer", "", models.AnswerRequest{Query: "q"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got %d, want 401", rr.Code)
	}

	rr = doRequest(t, f.handler, http.MethodPost, "/answer", "Bearer garbage", models.AnswerRequest{Query: "q"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want 401", rr.Code)
	}
}

func TestAnswerPreflight(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodOptions, "/answer", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin header")
	}
	if rr.Header().Get("Access-Control-Allow-Methods") != "POST, OPTIONS" {
		t.Errorf("unexpected allowed methods %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestAnswerMethodNotAllowed(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodGet, "/answer", bearerToken(t), nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestAnswerSuccess(t *testing.T) {
	f := newServerFixture()
	f.pipeline.result = answerResult()

	rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "Can I apply?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if f.pipeline.gotUserID != "user-1" {
		t.Errorf("expected user from token, got %q", f.pipeline.gotUserID)
	}
	if f.pipeline.gotQuery != "Can I apply?" {
		t.Errorf("unexpected query %q", f.pipeline.gotQuery)
	}
	if f.pipeline.gotConvID != nil {
		t.Error("expected nil conversation id when none supplied")
	}

	var resp models.AnswerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.ConversationID != f.pipeline.result.ConversationID.String() {
		t.Errorf("unexpected conversation id %q", resp.ConversationID)
	}
	if resp.Data.Summary != "Yes." {
		t.Errorf("unexpected answer summary %q", resp.Data.Summary)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Filename != "doc.pdf" {
		t.Errorf("unexpected sources %v", resp.Sources)
	}
}

func TestAnswerPassesConversationID(t *testing.T) {
	f := newServerFixture()
	f.pipeline.result = answerResult()
	convID := uuid.New()

	rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "q", ConversationID: convID.String()})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if f.pipeline.gotConvID == nil || *f.pipeline.gotConvID != convID {
		t.Error("expected conversation id forwarded to the pipeline")
	}
}

func TestAnswerInvalidConversationID(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "q", ConversationID: "not-a-uuid"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestAnswerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty query", pipeline.ErrQueryRequired, http.StatusBadRequest},
		{"unknown conversation", pipeline.ErrConversationNotFound, http.StatusNotFound},
		{"embedding provider down", &pipeline.UpstreamError{Service: "embedding", Err: errors.New("down")}, http.StatusBadGateway},
		{"generation provider down", &pipeline.UpstreamError{Service: "generation", Err: errors.New("down")}, http.StatusBadGateway},
		{"storage failure", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture()
			f.pipeline.err = tt.err

			rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "q"})
			if rr.Code != tt.wantStatus {
				t.Errorf("got %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestAnswerUpstreamErrorModes(t *testing.T) {
	upstreamErr := &pipeline.UpstreamError{Service: "embedding", Err: errors.New("down")}

	t.Run("detailed mode names the failing service", func(t *testing.T) {
		f := newServerFixtureWithErrorMode("detailed")
		f.pipeline.err = upstreamErr

		rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "q"})
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rr.Code)
		}
		if !bytes.Contains(rr.Body.Bytes(), []byte("embedding provider unavailable")) {
			t.Errorf("expected service detail in body: %s", rr.Body.String())
		}
	})

	t.Run("secure mode strips the service detail", func(t *testing.T) {
		f := newServerFixtureWithErrorMode("secure")
		f.pipeline.err = upstreamErr

		rr := doRequest(t, f.handler, http.MethodPost, "/answer", bearerToken(t), models.AnswerRequest{Query: "q"})
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rr.Code)
		}
		if bytes.Contains(rr.Body.Bytes(), []byte("embedding")) {
			t.Errorf("expected no service detail in body: %s", rr.Body.String())
		}
	})
}

func TestConversationsList(t *testing.T) {
	f := newServerFixture()
	f.store.summaries = []models.ConversationSummary{
		{ID: uuid.New(), FirstQuery: "First question", MessageCount: 4, CreatedAt: time.Now()},
	}

	rr := doRequest(t, f.handler, http.MethodGet, "/conversations", bearerToken(t), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp models.ConversationListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success || len(resp.Conversations) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Conversations[0].FirstQuery != "First question" {
		t.Errorf("unexpected first query %q", resp.Conversations[0].FirstQuery)
	}
}

func TestConversationDetail(t *testing.T) {
	f := newServerFixture()
	f.store.owned = true
	f.store.messages = []models.Message{
		{Role: models.RoleUser, Kind: models.MessageKindText, Content: "Question"},
		{Role: models.RoleAssistant, Kind: models.MessageKindStructuredAnswer, Content: `{"summary":"Yes.","confidence":"high"}`},
	}
	convID := uuid.New()

	rr := doRequest(t, f.handler, http.MethodGet, "/conversations?id="+convID.String(), bearerToken(t), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp models.ConversationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.MessageCount != 2 {
		t.Errorf("expected 2 messages, got %d", resp.MessageCount)
	}
	// Structured assistant content comes back decoded as an object.
	content, ok := resp.Messages[1].Content.(map[string]any)
	if !ok {
		t.Fatalf("expected decoded structured content, got %T", resp.Messages[1].Content)
	}
	if content["summary"] != "Yes." {
		t.Errorf("unexpected decoded summary %v", content["summary"])
	}
}

func TestConversationDetailNotOwned(t *testing.T) {
	f := newServerFixture()
	f.store.owned = false

	rr := doRequest(t, f.handler, http.MethodGet, "/conversations?id="+uuid.NewString(), bearerToken(t), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestHistoryPagination(t *testing.T) {
	f := newServerFixture()
	f.store.details = []models.ConversationDetail{{ConversationID: uuid.New(), FirstQuery: "q"}}
	f.store.total = 30

	rr := doRequest(t, f.handler, http.MethodGet, "/history?limit=100&offset=10", bearerToken(t), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// limit is capped at 50.
	if f.store.gotPageLimit != 50 {
		t.Errorf("expected capped limit 50, got %d", f.store.gotPageLimit)
	}
	if f.store.gotPageOffset != 10 {
		t.Errorf("expected offset 10, got %d", f.store.gotPageOffset)
	}

	var resp models.HistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Pagination.Total != 30 || resp.Pagination.HasMore {
		t.Errorf("unexpected pagination %+v", resp.Pagination)
	}
}

func TestConsultationsFeeAcknowledgmentError(t *testing.T) {
	f := newServerFixture()
	f.consultations.err = consultation.ErrFeeAcknowledgmentRequired

	rr := doRequest(t, f.handler, http.MethodPost, "/consultations", bearerToken(t), models.ConsultationRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body["requiresAcknowledgment"] != true {
		t.Error("expected requiresAcknowledgment true")
	}
	if body["feeDisclosure"] != consultation.FeeDisclosure {
		t.Error("expected fee disclosure text")
	}
}

func TestConsultationsContactRequired(t *testing.T) {
	f := newServerFixture()
	f.consultations.err = consultation.ErrContactRequired

	rr := doRequest(t, f.handler, http.MethodPost, "/consultations", bearerToken(t), models.ConsultationRequest{FeeAcknowledged: true})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestConsultationsSuccess(t *testing.T) {
	f := newServerFixture()
	f.consultations.receipt = &consultation.Receipt{
		ConsultationID:       7,
		InteractionsIncluded: 3,
		Message:              "Submitted.",
		FeeNotice:            "Fees may apply.",
	}

	rr := doRequest(t, f.handler, http.MethodPost, "/consultations", bearerToken(t), models.ConsultationRequest{
		ContactEmail:    "client@example.com",
		ContactPhone:    "555-0100",
		FeeAcknowledged: true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp models.ConsultationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success || resp.ConsultationID != 7 || resp.InteractionsIncluded != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAddDocument(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodPost, "/documents", "", models.DocumentRequest{
		Filename: "irpr.pdf",
		Section:  "Case Laws",
		Content:  "Section R205(a) text.",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(f.store.upserted) != 1 {
		t.Fatalf("expected 1 upserted document, got %d", len(f.store.upserted))
	}
	doc := f.store.upserted[0]
	if doc.Filename != "irpr.pdf" || doc.Section != "Case Laws" {
		t.Errorf("unexpected document %+v", doc)
	}
	if len(doc.Embedding) == 0 {
		t.Error("expected embedding attached before storage")
	}
}

func TestAddDocumentRequiresContent(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodPost, "/documents", "", models.DocumentRequest{Filename: "a.pdf", Content: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if len(f.store.upserted) != 0 {
		t.Error("nothing should be stored without content")
	}
}

func TestAddDocumentEmbeddingFailure(t *testing.T) {
	f := newServerFixture()
	f.embedder.err = errors.New("provider down")

	rr := doRequest(t, f.handler, http.MethodPost, "/documents", "", models.DocumentRequest{Content: "text"})
	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rr.Code)
	}
}

func TestListDocuments(t *testing.T) {
	f := newServerFixture()
	f.store.documents = []models.Document{
		{ID: uuid.New(), Filename: "a.pdf", Section: "Policies", Content: "A."},
	}

	rr := doRequest(t, f.handler, http.MethodGet, "/documents", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp models.DocumentListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 1 || len(resp.Documents) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newServerFixture()

	rr := doRequest(t, f.handler, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp models.HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("unexpected status %q", resp.Status)
	}
}
