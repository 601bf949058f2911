package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// VectorRecord holds the embedding for one artifact. Embeddings are derived
// data like the FTS index: deletable and regenerable without loss.
type VectorRecord struct {
	ArtifactID string
	Embedding  []float64
	Model      string
	Dimensions int
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the embedding for an artifact.
func (s *Store) SaveVector(artifactID string, embedding []float64, model string) error {
	blob := encodeEmbedding(embedding)
	now := formatTime(s.cfg.Now())

	_, err := s.db.Exec(`
		INSERT INTO artifact_vectors (artifact_id, embedding, model, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(artifact_id) DO UPDATE SET embedding = ?, model = ?, dimensions = ?, created_at = ?
	`, artifactID, blob, model, len(embedding), now,
		blob, model, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the embedding for an artifact, or nil if not stored.
func (s *Store) GetVector(artifactID string) (*VectorRecord, error) {
	var v VectorRecord
	var blob []byte

	err := s.db.QueryRow(`
		SELECT artifact_id, embedding, model, dimensions
		FROM artifact_vectors WHERE artifact_id = ?
	`, artifactID).Scan(&v.ArtifactID, &blob, &v.Model, &v.Dimensions)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	v.Embedding = decodeEmbedding(blob)
	return &v, nil
}

// AllVectors returns every stored vector record.
func (s *Store) AllVectors() ([]VectorRecord, error) {
	rows, err := s.db.Query(`SELECT artifact_id, embedding, model, dimensions FROM artifact_vectors`)
	if err != nil {
		return nil, fmt.Errorf("all vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var v VectorRecord
		var blob []byte
		if err := rows.Scan(&v.ArtifactID, &blob, &v.Model, &v.Dimensions); err != nil {
			return nil, fmt.Errorf("scan vector: %w", err)
		}
		v.Embedding = decodeEmbedding(blob)
		records = append(records, v)
	}
	return records, rows.Err()
}
