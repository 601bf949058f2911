// Package store implements the durable artifact store for Duro.
//
// It uses SQLite with an FTS5 derived index. The store is the source of
// truth for all artifacts: the decay engine, validation state machine, and
// supersession manager all mutate artifacts through Update, never by writing
// rows directly. Writes to the same artifact id are serialized with a per-id
// lock; reads and writes to different ids proceed without coordination.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/durolabs/duro/internal/artifact"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds artifact store configuration.
type Config struct {
	DataDir          string
	MaxSearchResults int
	Now              func() time.Time
}

// DefaultConfig returns the default configuration for the artifact store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:          filepath.Join(home, ".duro"),
		MaxSearchResults: 20,
		Now:              time.Now,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Auditor records a mutating action in the tamper-evident audit log.
// Implemented by audit.Log; injected so the store never owns the chain.
// RecordTx writes through the caller's transaction so the entry commits or
// rolls back with the mutation it records; the returned release func must be
// called once the transaction is resolved.
type Auditor interface {
	Record(action, targetID, reason, actor string) error
	RecordTx(tx *sql.Tx, action, targetID, reason, actor string) (release func(), err error)
}

// Store is the persistent artifact engine backed by SQLite + FTS5.
type Store struct {
	db  *sql.DB
	cfg Config

	auditor Auditor

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and runs migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 20
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "duro.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// SetAuditor injects the audit log used to record deletions and approvals.
// Must be set before the first Delete; the server wires it at startup.
func (s *Store) SetAuditor(a Auditor) { s.auditor = a }

// DB exposes the underlying connection for sibling packages (audit log and
// vector table live in the same database file).
func (s *Store) DB() *sql.DB { return s.db }

// Now returns the store's clock reading.
func (s *Store) Now() time.Time { return s.cfg.Now() }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// idLock returns the mutex serializing writes to one artifact id.
func (s *Store) idLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
			id              TEXT PRIMARY KEY,
			type            TEXT NOT NULL,
			sensitivity     TEXT NOT NULL DEFAULT 'internal',
			tags            TEXT NOT NULL DEFAULT '[]',
			source_workflow TEXT,
			content         TEXT NOT NULL,
			valid_until     TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_type    ON artifacts(type);
		CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_artifacts_valid   ON artifacts(valid_until);

		CREATE VIRTUAL TABLE IF NOT EXISTS artifact_fts USING fts5(
			artifact_id UNINDEXED,
			type UNINDEXED,
			body,
			tags
		);

		CREATE TABLE IF NOT EXISTS artifact_vectors (
			artifact_id TEXT PRIMARY KEY,
			embedding   BLOB NOT NULL,
			model       TEXT NOT NULL,
			dimensions  INTEGER NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS audit_log (
			idx       INTEGER PRIMARY KEY,
			ts        TEXT NOT NULL,
			actor     TEXT NOT NULL,
			action    TEXT NOT NULL,
			target_id TEXT NOT NULL,
			reason    TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			this_hash TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// ─── Serialization ───────────────────────────────────────────────────────────

func encodeContent(a *artifact.Artifact) (string, error) {
	content := a.Content()
	if content == nil {
		return "", fmt.Errorf("%w: artifact %q has no content for type %s", artifact.ErrValidation, a.ID, a.Type)
	}
	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return string(b), nil
}

func decodeContent(a *artifact.Artifact, raw string) error {
	var target any
	switch a.Type {
	case artifact.TypeFact:
		a.Fact = &artifact.Fact{}
		target = a.Fact
	case artifact.TypeDecision:
		a.Decision = &artifact.Decision{}
		target = a.Decision
	case artifact.TypeEpisode:
		a.Episode = &artifact.Episode{}
		target = a.Episode
	case artifact.TypeIncident:
		a.Incident = &artifact.Incident{}
		target = a.Incident
	case artifact.TypeChange:
		a.Change = &artifact.Change{}
		target = a.Change
	default:
		return fmt.Errorf("unknown artifact type %q", a.Type)
	}
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return fmt.Errorf("unmarshal %s content: %w", a.Type, err)
	}
	return nil
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

// Create validates the artifact, assigns its id and timestamps, persists it,
// and updates the derived index. The input is mutated in place with the
// assigned fields and returned.
func (s *Store) Create(a *artifact.Artifact) (*artifact.Artifact, error) {
	now := s.cfg.Now()

	if a.Sensitivity == "" {
		a.Sensitivity = artifact.SensitivityInternal
	}
	if a.Type == artifact.TypeFact && a.Fact != nil && a.Fact.LastReinforcedAt.IsZero() {
		a.Fact.LastReinforcedAt = now
	}
	if a.Type == artifact.TypeDecision && a.Decision != nil {
		// Decisions always enter the machine at pending with 0.5 confidence.
		a.Decision.Status = artifact.StatusPending
		a.Decision.Confidence = 0.5
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	a.ID = artifact.NewID(a.Type, now)
	a.CreatedAt = now
	a.UpdatedAt = now

	content, err := encodeContent(a)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		`INSERT INTO artifacts (id, type, sensitivity, tags, source_workflow, content, valid_until, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		a.ID, string(a.Type), string(a.Sensitivity), encodeTags(a.Tags),
		nullableString(a.SourceWorkflow), content, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	); err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}

	if err := indexArtifactTx(tx, a); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// Get retrieves a single artifact by id.
func (s *Store) Get(id string) (*artifact.Artifact, error) {
	row := s.db.QueryRow(
		`SELECT id, type, sensitivity, tags, source_workflow, content, valid_until, created_at, updated_at
		 FROM artifacts WHERE id = ?`, id,
	)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", artifact.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return a, nil
}

// Update applies mutate to a copy of the stored artifact under the per-id
// write lock, re-validates, bumps updated_at, and persists atomically.
// Changing the artifact's id or type is disallowed.
func (s *Store) Update(id string, mutate func(*artifact.Artifact) error) (*artifact.Artifact, error) {
	l := s.idLock(id)
	l.Lock()
	defer l.Unlock()

	a, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	next := a.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if next.ID != a.ID {
		return nil, fmt.Errorf("%w: artifact id is immutable", artifact.ErrValidation)
	}
	if next.Type != a.Type {
		return nil, fmt.Errorf("%w: artifact type is immutable", artifact.ErrValidation)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	next.UpdatedAt = s.cfg.Now()

	content, err := encodeContent(next)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		`UPDATE artifacts
		 SET sensitivity = ?, tags = ?, source_workflow = ?, content = ?, valid_until = ?, updated_at = ?
		 WHERE id = ?`,
		string(next.Sensitivity), encodeTags(next.Tags), nullableString(next.SourceWorkflow),
		content, nullableTime(next.ValidUntil), formatTime(next.UpdatedAt), id,
	); err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM artifact_fts WHERE artifact_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deindex artifact: %w", err)
	}
	if err := indexArtifactTx(tx, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// Delete removes an artifact. Sensitive artifacts require force; every
// deletion is recorded in the audit chain with the given reason.
func (s *Store) Delete(id, reason, actor string, force bool) error {
	l := s.idLock(id)
	l.Lock()
	defer l.Unlock()

	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if a.Sensitivity == artifact.SensitivitySensitive && !force {
		return fmt.Errorf("%w: artifact %s is sensitive; deletion requires force", artifact.ErrPermission, id)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM artifact_fts WHERE artifact_id = ?`, id); err != nil {
		return fmt.Errorf("deindex artifact: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM artifact_vectors WHERE artifact_id = ?`, id); err != nil {
		return fmt.Errorf("delete vector: %w", err)
	}

	// The audit entry rides the same transaction: the deletion and its
	// record either both commit or neither does.
	if s.auditor != nil {
		release, err := s.auditor.RecordTx(tx, "delete", id, reason, actor)
		if err != nil {
			return fmt.Errorf("audit delete of %s: %w", id, err)
		}
		defer release()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ─── Listing ─────────────────────────────────────────────────────────────────

// ListFilter narrows a List scan. Zero values mean "no constraint".
type ListFilter struct {
	Type              artifact.Type
	Tag               string
	Since             time.Time
	Until             time.Time
	IncludeSuperseded bool
	Limit             int
}

// List lazily yields artifacts matching the filter in creation order.
// The sequence is restartable: each range re-runs the query.
func (s *Store) List(f ListFilter) iter.Seq2[*artifact.Artifact, error] {
	return func(yield func(*artifact.Artifact, error) bool) {
		query := `
			SELECT id, type, sensitivity, tags, source_workflow, content, valid_until, created_at, updated_at
			FROM artifacts WHERE 1=1
		`
		var args []any

		if f.Type != "" {
			query += " AND type = ?"
			args = append(args, string(f.Type))
		}
		if !f.Since.IsZero() {
			query += " AND created_at >= ?"
			args = append(args, formatTime(f.Since))
		}
		if !f.Until.IsZero() {
			query += " AND created_at < ?"
			args = append(args, formatTime(f.Until))
		}
		if !f.IncludeSuperseded {
			query += " AND valid_until IS NULL"
		}
		query += " ORDER BY created_at ASC"
		if f.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, f.Limit)
		}

		rows, err := s.db.Query(query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("list artifacts: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanArtifact(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan artifact: %w", err))
				return
			}
			// Tag filtering happens in Go: tags live in a JSON column.
			if f.Tag != "" && !a.HasTag(f.Tag) {
				continue
			}
			if !yield(a, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// CountByType returns the number of stored artifacts per type.
func (s *Store) CountByType() (map[artifact.Type]int, error) {
	rows, err := s.db.Query(`SELECT type, COUNT(*) FROM artifacts GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("count artifacts: %w", err)
	}
	defer rows.Close()

	counts := make(map[artifact.Type]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[artifact.Type(t)] = n
	}
	return counts, rows.Err()
}

// CountPinnedFacts returns the number of facts exempt from decay.
func (s *Store) CountPinnedFacts() (int, error) {
	n := 0
	for a, err := range s.List(ListFilter{Type: artifact.TypeFact, IncludeSuperseded: true}) {
		if err != nil {
			return 0, err
		}
		if a.Fact != nil && a.Fact.Pinned {
			n++
		}
	}
	return n, nil
}

// ─── Scan helpers ────────────────────────────────────────────────────────────

type rowLike interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowLike) (*artifact.Artifact, error) {
	var a artifact.Artifact
	var typ, sens, tags, content, createdAt, updatedAt string
	var sourceWorkflow, validUntil sql.NullString

	if err := row.Scan(&a.ID, &typ, &sens, &tags, &sourceWorkflow, &content, &validUntil, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.Type = artifact.Type(typ)
	a.Sensitivity = artifact.Sensitivity(sens)
	a.Tags = decodeTags(tags)
	a.SourceWorkflow = sourceWorkflow.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if validUntil.Valid {
		t := parseTime(validUntil.String)
		a.ValidUntil = &t
	}

	if err := decodeContent(&a, content); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := formatTime(*t)
	return &v
}

func indexArtifactTx(tx *sql.Tx, a *artifact.Artifact) error {
	if _, err := tx.Exec(
		`INSERT INTO artifact_fts (artifact_id, type, body, tags) VALUES (?, ?, ?, ?)`,
		a.ID, string(a.Type), a.SearchText(), strings.Join(a.Tags, " "),
	); err != nil {
		return fmt.Errorf("index artifact: %w", err)
	}
	return nil
}
