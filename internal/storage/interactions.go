package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"legal-rag-assistant/internal/models"
)

// InsertInteraction appends one audit row. Interactions are never mutated.
func (s *Store) InsertInteraction(rec *models.Interaction) error {
	answerJSON, err := json.Marshal(rec.Answer)
	if err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}
	sourcesJSON, err := json.Marshal(rec.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	rec.CreatedAt = time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO interactions (user_id, query, answer, sources, model, response_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Query, string(answerJSON), string(sourcesJSON), rec.Model, rec.ResponseTimeMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// ListInteractions returns the user's full interaction log in ascending order.
func (s *Store) ListInteractions(userID string) ([]models.Interaction, error) {
	rows, err := s.db.Query(
		`SELECT id, query, answer, sources, model, response_time_ms, created_at
		 FROM interactions
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	interactions := []models.Interaction{}
	for rows.Next() {
		var (
			rec         models.Interaction
			answerJSON  string
			sourcesJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Query, &answerJSON, &sourcesJSON, &rec.Model, &rec.ResponseTimeMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction row: %w", err)
		}
		if err := json.Unmarshal([]byte(answerJSON), &rec.Answer); err != nil {
			return nil, fmt.Errorf("failed to decode interaction answer: %w", err)
		}
		if sourcesJSON.Valid && sourcesJSON.String != "" {
			if err := json.Unmarshal([]byte(sourcesJSON.String), &rec.Sources); err != nil {
				return nil, fmt.Errorf("failed to decode interaction sources: %w", err)
			}
		}
		rec.UserID = userID
		interactions = append(interactions, rec)
	}
	return interactions, rows.Err()
}
