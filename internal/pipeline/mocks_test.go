package pipeline

import (
	"context"
	"fmt"
	"time"

	"legal-rag-assistant/internal/models"
	"legal-rag-assistant/internal/openrouter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mock implementations for testing

type mockStore struct {
	conversations map[uuid.UUID]string
	messages      map[uuid.UUID][]models.Message
	interactions  []models.Interaction
	searchResults []models.RetrievedPassage
	searchErr     error
	appendErr     error
}

func newMockStore() *mockStore {
	return &mockStore{
		conversations: make(map[uuid.UUID]string),
		messages:      make(map[uuid.UUID][]models.Message),
	}
}

func (m *mockStore) CreateConversation(userID string) (uuid.UUID, error) {
	id := uuid.New()
	m.conversations[id] = userID
	return id, nil
}

func (m *mockStore) ConversationOwned(id uuid.UUID, userID string) (bool, error) {
	return m.conversations[id] == userID, nil
}

func (m *mockStore) RecentMessages(conversationID uuid.UUID, window int) ([]models.Message, error) {
	msgs := m.messages[conversationID]
	if len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	return msgs, nil
}

func (m *mockStore) AppendMessage(conversationID uuid.UUID, role, kind, content string, sources []models.Source) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.messages[conversationID] = append(m.messages[conversationID], models.Message{
		ConversationID: conversationID,
		Role:           role,
		Kind:           kind,
		Content:        content,
		Sources:        sources,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (m *mockStore) SearchSimilar(_ []float32, topK int, _ float64) ([]models.RetrievedPassage, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	results := m.searchResults
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *mockStore) InsertInteraction(rec *models.Interaction) error {
	rec.CreatedAt = time.Now()
	m.interactions = append(m.interactions, *rec)
	return nil
}

type mockEmbedder struct {
	embedding []float32
	err       error
	inputs    []string
}

func (m *mockEmbedder) Embed(_ context.Context, _, input string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, input)
	if m.embedding != nil {
		return m.embedding, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type generatorCall struct {
	model    string
	messages []openrouter.ChatMessage
}

type mockGenerator struct {
	responses  map[string]string // keyed by model
	errByModel map[string]error
	calls      []generatorCall
}

func newMockGenerator() *mockGenerator {
	return &mockGenerator{
		responses:  make(map[string]string),
		errByModel: make(map[string]error),
	}
}

func (m *mockGenerator) Complete(_ context.Context, messages []openrouter.ChatMessage, opts openrouter.ChatOptions) (string, error) {
	m.calls = append(m.calls, generatorCall{model: opts.Model, messages: messages})
	if err := m.errByModel[opts.Model]; err != nil {
		return "", err
	}
	return m.responses[opts.Model], nil
}

func testOptions() Options {
	return Options{
		EmbeddingModel:     "test-embedding-model",
		GenerationModel:    "test-answer-model",
		RewriteModel:       "test-rewrite-model",
		RelevanceThreshold: 0.4,
		TopK:               8,
		WindowSize:         10,
	}
}

func newTestPipeline(store *mockStore, embedder *mockEmbedder, generator *mockGenerator) *Pipeline {
	return New(store, embedder, generator, testOptions(), zap.NewNop().Sugar())
}

func passageFixtures(n int) []models.RetrievedPassage {
	passages := make([]models.RetrievedPassage, 0, n)
	for i := 0; i < n; i++ {
		passages = append(passages, models.RetrievedPassage{
			Content:    fmt.Sprintf("Passage content %d", i+1),
			Filename:   fmt.Sprintf("doc-%d.pdf", i+1),
			Section:    "Case Laws",
			Similarity: 0.9 - float64(i)*0.1,
		})
	}
	return passages
}

func structuredAnswerFixture() models.StructuredAnswer {
	return models.StructuredAnswer{
		Summary:         "Yes, R205(a) permits this [Source 1].",
		KeyPoints:       []string{"Significant benefit must be shown [Source 2]."},
		LegalReferences: []string{"R205(a)"},
		Details:         "The exemption applies when a significant benefit can be demonstrated [Source 1, Source 2].",
		Recommendation:  "Prepare a benefit statement.",
		Confidence:      "high",
	}
}
