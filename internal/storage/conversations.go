package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"legal-rag-assistant/internal/models"

	"github.com/google/uuid"
)

// CreateConversation starts a new conversation owned by the given user.
func (s *Store) CreateConversation(userID string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, user_id, created_at) VALUES (?, ?, ?)`,
		id.String(), userID, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// ConversationOwned reports whether the conversation exists and belongs to
// the given user.
func (s *Store) ConversationOwned(id uuid.UUID, userID string) (bool, error) {
	var found string
	err := s.db.QueryRow(
		`SELECT id FROM conversations WHERE id = ? AND user_id = ?`,
		id.String(), userID,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check conversation: %w", err)
	}
	return true, nil
}

// AppendMessage appends one turn to a conversation.
func (s *Store) AppendMessage(conversationID uuid.UUID, role, kind, content string, sources []models.Source) error {
	var sourcesJSON any
	if sources != nil {
		encoded, err := json.Marshal(sources)
		if err != nil {
			return fmt.Errorf("failed to encode sources: %w", err)
		}
		sourcesJSON = string(encoded)
	}

	_, err := s.db.Exec(
		`INSERT INTO messages (conversation_id, role, kind, content, sources, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID.String(), role, kind, content, sourcesJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last `window` messages of a conversation in
// ascending order. The scan is newest-first for a bounded read, then
// reversed. An empty conversation yields an empty slice.
func (s *Store) RecentMessages(conversationID uuid.UUID, window int) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, kind, content, sources, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		conversationID.String(), window,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages, err := scanMessages(rows, conversationID)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query, oldest-first for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Messages returns all messages of a conversation in ascending order.
func (s *Store) Messages(conversationID uuid.UUID) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, kind, content, sources, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC, id ASC`,
		conversationID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows, conversationID)
}

func scanMessages(rows *sql.Rows, conversationID uuid.UUID) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		var (
			msg         models.Message
			sourcesJSON sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Kind, &msg.Content, &sourcesJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msg.ConversationID = conversationID
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &msg.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode message sources: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListConversations returns the user's conversations newest first, each with
// its opening query and message count.
func (s *Store) ListConversations(userID string, limit int) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.created_at,
			COALESCE((SELECT content FROM messages WHERE conversation_id = c.id AND role = 'user' ORDER BY created_at, id LIMIT 1), ''),
			(SELECT COUNT(*) FROM messages WHERE conversation_id = c.id)
		 FROM conversations c
		 WHERE c.user_id = ?
		 ORDER BY c.created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var (
			id      string
			summary models.ConversationSummary
		)
		if err := rows.Scan(&id, &summary.CreatedAt, &summary.FirstQuery, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation id %q: %w", id, err)
		}
		summary.ID = convID
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// ConversationPage returns one page of the user's conversations with their
// messages grouped, plus the total conversation count for pagination.
func (s *Store) ConversationPage(userID string, limit, offset int) ([]models.ConversationDetail, int, error) {
	summaries, err := s.listConversationsPage(userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	details := []models.ConversationDetail{}
	for _, summary := range summaries {
		messages, err := s.Messages(summary.ID)
		if err != nil {
			return nil, 0, err
		}
		views := make([]models.MessageView, 0, len(messages))
		for _, msg := range messages {
			views = append(views, msg.View())
		}
		details = append(details, models.ConversationDetail{
			ConversationID: summary.ID,
			FirstQuery:     summary.FirstQuery,
			MessageCount:   summary.MessageCount,
			StartedAt:      summary.CreatedAt,
			Messages:       views,
		})
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	return details, total, nil
}

func (s *Store) listConversationsPage(userID string, limit, offset int) ([]models.ConversationSummary, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.created_at,
			COALESCE((SELECT content FROM messages WHERE conversation_id = c.id AND role = 'user' ORDER BY created_at, id LIMIT 1), ''),
			(SELECT COUNT(*) FROM messages WHERE conversation_id = c.id)
		 FROM conversations c
		 WHERE c.user_id = ?
		 ORDER BY c.created_at DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var (
			id      string
			summary models.ConversationSummary
		)
		if err := rows.Scan(&id, &summary.CreatedAt, &summary.FirstQuery, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		convID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid conversation id %q: %w", id, err)
		}
		summary.ID = convID
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
