package storage

import (
	"fmt"

	"legal-rag-assistant/internal/models"

	"github.com/google/uuid"
)

// UpsertDocument inserts or updates a corpus document with its embedding.
func (s *Store) UpsertDocument(doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	if err := s.ensureVecTableExists(len(doc.Embedding)); err != nil {
		return fmt.Errorf("failed to ensure vec table exists: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	metadataQuery := `
		INSERT INTO documents (id, filename, section, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			section = excluded.section,
			content = excluded.content
	`
	if _, err := tx.Exec(metadataQuery, doc.ID.String(), doc.Filename, doc.Section, doc.Content); err != nil {
		return fmt.Errorf("failed to upsert document metadata: %w", err)
	}

	// vec0 doesn't support UPDATE, so replace the row
	if _, err := tx.Exec(`DELETE FROM vec_documents WHERE id = ?`, doc.ID.String()); err != nil {
		return fmt.Errorf("failed to delete old vector: %w", err)
	}

	embeddingBytes := serializeFloat32Vector(doc.Embedding)
	if _, err := tx.Exec(`INSERT INTO vec_documents (id, embedding) VALUES (?, ?)`, doc.ID.String(), embeddingBytes); err != nil {
		return fmt.Errorf("failed to insert document vector: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ensureVecTableExists creates the vec_documents table if it doesn't exist
func (s *Store) ensureVecTableExists(embeddingLen int) error {
	if embeddingLen == 0 {
		return fmt.Errorf("document has no embedding")
	}

	var tableExists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='vec_documents'").Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("failed to check vec_documents existence: %w", err)
	}

	if tableExists == 0 {
		s.embeddingLength = embeddingLen
		vecQuery := fmt.Sprintf(`
			CREATE VIRTUAL TABLE vec_documents USING vec0(
				id TEXT PRIMARY KEY,
				embedding FLOAT[%d] distance_metric=cosine
			)
		`, s.embeddingLength)

		if _, err := s.db.Exec(vecQuery); err != nil {
			return fmt.Errorf("failed to create vec_documents table: %w", err)
		}
	}
	// A dimension mismatch against an existing table surfaces as an insert
	// error from vec0 itself.

	return nil
}

// SearchSimilar performs KNN vector search over the corpus, keeping only
// passages with similarity strictly above the threshold, ordered by
// descending similarity with document id as the deterministic tie-break.
func (s *Store) SearchSimilar(embedding []float32, topK int, threshold float64) ([]models.RetrievedPassage, error) {
	var tableExists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='vec_documents'").Scan(&tableExists); err != nil {
		return nil, fmt.Errorf("failed to check vec_documents existence: %w", err)
	}
	if tableExists == 0 {
		return []models.RetrievedPassage{}, nil
	}

	embeddingBytes := serializeFloat32Vector(embedding)

	// sqlite-vec requires the k parameter as part of the MATCH expression.
	// Cosine distance is 1 - cosine similarity, so ascending distance is
	// descending similarity.
	query := `
		SELECT
			d.filename,
			d.section,
			d.content,
			v.distance
		FROM vec_documents v
		JOIN documents d ON d.id = v.id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance, d.id
	`

	rows, err := s.db.Query(query, embeddingBytes, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []models.RetrievedPassage{}
	for rows.Next() {
		var filename, section, content string
		var distance float64

		if err := rows.Scan(&filename, &section, &content, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}

		similarity := 1 - distance
		if similarity <= threshold {
			continue
		}

		results = append(results, models.RetrievedPassage{
			Content:    content,
			Filename:   filename,
			Section:    section,
			Similarity: similarity,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

// ListDocuments returns all corpus documents (without embeddings for efficiency).
func (s *Store) ListDocuments() ([]models.Document, error) {
	query := `SELECT id, filename, section, content FROM documents ORDER BY filename, section`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	documents := []models.Document{}
	for rows.Next() {
		var id, filename, section, content string
		if err := rows.Scan(&id, &filename, &section, &content); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		docID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", id, err)
		}

		documents = append(documents, models.Document{
			ID:       docID,
			Filename: filename,
			Section:  section,
			Content:  content,
		})
	}

	return documents, rows.Err()
}
