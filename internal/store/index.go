package store

import (
	"context"
	"fmt"
	"strings"
)

// The FTS5 table is a derived cache over the artifacts table. It is never
// authoritative: readers tolerate a stale index, and RebuildIndex can
// reconstruct it from scratch at any time.

// KeywordHit is one full-text match with its bm25 rank.
type KeywordHit struct {
	ArtifactID string
	Rank       float64
}

// KeywordSearch runs an FTS5 query and returns matching artifact ids
// ordered by relevance (best first).
func (s *Store) KeywordSearch(query string, limit int) ([]KeywordHit, error) {
	if limit <= 0 || limit > s.cfg.MaxSearchResults {
		limit = s.cfg.MaxSearchResults
	}

	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT artifact_id, rank FROM artifact_fts
		 WHERE artifact_fts MATCH ?
		 ORDER BY rank LIMIT ?`,
		ftsQuery, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ArtifactID, &h.Rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// RebuildIndex drops and reconstructs the FTS index from the artifacts
// table. Idempotent and safe to call anytime; each row is committed
// independently so cancellation mid-pass leaves a partially rebuilt (still
// consistent) index and reports how many rows were indexed.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	if _, err := s.db.Exec(`DELETE FROM artifact_fts`); err != nil {
		return 0, fmt.Errorf("clear index: %w", err)
	}

	indexed := 0
	for a, err := range s.List(ListFilter{IncludeSuperseded: true}) {
		if err != nil {
			return indexed, err
		}
		select {
		case <-ctx.Done():
			return indexed, ctx.Err()
		default:
		}

		if _, err := s.db.Exec(
			`INSERT INTO artifact_fts (artifact_id, type, body, tags) VALUES (?, ?, ?, ?)`,
			a.ID, string(a.Type), a.SearchText(), strings.Join(a.Tags, " "),
		); err != nil {
			return indexed, fmt.Errorf("reindex %s: %w", a.ID, err)
		}
		indexed++
	}
	return indexed, nil
}

// sanitizeFTS wraps each word in quotes for safe FTS5 queries.
// "limit is 100" → `"limit" "is" "100"`
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}
