package storage

import (
	"fmt"
	"time"

	"legal-rag-assistant/internal/models"
)

// InsertConsultation persists a pending consultation request, filling in the
// generated id and creation time.
func (s *Store) InsertConsultation(c *models.Consultation) error {
	if c.Status == "" {
		c.Status = models.ConsultationStatusPending
	}
	c.CreatedAt = time.Now().UTC()

	result, err := s.db.Exec(
		`INSERT INTO consultations (user_id, contact_email, contact_phone, original_query, chat_history, additional_notes, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.ContactEmail, c.ContactPhone, c.OriginalQuery, c.ChatHistory, c.AdditionalNotes, c.Status, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert consultation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read consultation id: %w", err)
	}
	c.ID = id
	return nil
}

// MarkConsultationEmailed records that the notification email was handed off.
func (s *Store) MarkConsultationEmailed(id int64, emailID string) error {
	_, err := s.db.Exec(
		`UPDATE consultations SET email_sent = 1, email_id = ? WHERE id = ?`,
		emailID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark consultation emailed: %w", err)
	}
	return nil
}
