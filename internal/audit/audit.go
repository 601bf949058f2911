// Package audit implements Duro's tamper-evident log of deletions and
// decision approvals.
//
// Entries form a singly-linked hash chain: each entry's hash covers its own
// fields plus the previous entry's hash, rooted at a fixed genesis hash.
// There is no update or delete operation — append-only is structural, not a
// convention. Verification is a pure read that reports tampering instead of
// failing, since it must run against a possibly-compromised log.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// genesisSeed is hashed to produce the well-known root of every chain.
const genesisSeed = "duro:audit:genesis:v1"

// GenesisHash returns the prev_hash of the first entry in any chain.
func GenesisHash() string {
	h := sha256.Sum256([]byte(genesisSeed))
	return hex.EncodeToString(h[:])
}

// Entry is one record in the chain. Immutable once written.
type Entry struct {
	Index     int64     `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	TargetID  string    `json:"target_id"`
	Reason    string    `json:"reason"`
	PrevHash  string    `json:"prev_hash"`
	ThisHash  string    `json:"this_hash"`
}

// Report is the result of a chain verification pass.
type Report struct {
	ChainValid bool   `json:"chain_valid"`
	BreakIndex *int64 `json:"break_index,omitempty"`
	Entries    int    `json:"entries"`
	Detail     string `json:"detail,omitempty"`
}

// Log is the append-only audit chain stored in the audit_log table.
type Log struct {
	db  *sql.DB
	now func() time.Time

	// Appends are strictly sequential: two entries must never share a
	// prev_hash, so a single lock covers read-last + insert.
	mu sync.Mutex
}

// New creates a Log over the given database. The audit_log table is created
// by the store's migration; the log never owns schema.
func New(db *sql.DB, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{db: db, now: now}
}

// entryHash computes this_hash from the entry's fields and prev_hash.
func entryHash(index int64, ts time.Time, action, targetID, reason, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(index, 10)))
	h.Write([]byte{0})
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write([]byte(action))
	h.Write([]byte{0})
	h.Write([]byte(targetID))
	h.Write([]byte{0})
	h.Write([]byte(reason))
	h.Write([]byte{0})
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Append writes a new entry linked to the current chain head.
func (l *Log) Append(action, targetID, reason, actor string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastIndex sql.NullInt64
	var lastHash sql.NullString
	err := l.db.QueryRow(
		`SELECT idx, this_hash FROM audit_log ORDER BY idx DESC LIMIT 1`,
	).Scan(&lastIndex, &lastHash)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("audit: read chain head: %w", err)
	}

	index := int64(0)
	prevHash := GenesisHash()
	if err == nil {
		index = lastIndex.Int64 + 1
		prevHash = lastHash.String
	}

	e := &Entry{
		Index:     index,
		Timestamp: l.now().UTC(),
		Actor:     actor,
		Action:    action,
		TargetID:  targetID,
		Reason:    reason,
		PrevHash:  prevHash,
	}
	e.ThisHash = entryHash(e.Index, e.Timestamp, e.Action, e.TargetID, e.Reason, e.PrevHash)

	if _, err := l.db.Exec(
		`INSERT INTO audit_log (idx, ts, actor, action, target_id, reason, prev_hash, this_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Index, e.Timestamp.Format(time.RFC3339Nano), e.Actor, e.Action, e.TargetID, e.Reason, e.PrevHash, e.ThisHash,
	); err != nil {
		return nil, fmt.Errorf("audit: append entry: %w", err)
	}
	return e, nil
}

// Record satisfies the store's Auditor interface.
func (l *Log) Record(action, targetID, reason, actor string) error {
	_, err := l.Append(action, targetID, reason, actor)
	return err
}

// AppendTx writes the next chain entry through the caller's transaction, so
// the entry commits or rolls back with the caller's own writes. The append
// lock is held until release is called; callers release only after commit or
// rollback, keeping the chain head fixed while the entry is in flight.
func (l *Log) AppendTx(tx *sql.Tx, action, targetID, reason, actor string) (entry *Entry, release func(), err error) {
	l.mu.Lock()
	release = l.mu.Unlock

	var lastIndex sql.NullInt64
	var lastHash sql.NullString
	err = tx.QueryRow(
		`SELECT idx, this_hash FROM audit_log ORDER BY idx DESC LIMIT 1`,
	).Scan(&lastIndex, &lastHash)
	if err != nil && err != sql.ErrNoRows {
		release()
		return nil, func() {}, fmt.Errorf("audit: read chain head: %w", err)
	}

	index := int64(0)
	prevHash := GenesisHash()
	if err == nil {
		index = lastIndex.Int64 + 1
		prevHash = lastHash.String
	}

	e := &Entry{
		Index:     index,
		Timestamp: l.now().UTC(),
		Actor:     actor,
		Action:    action,
		TargetID:  targetID,
		Reason:    reason,
		PrevHash:  prevHash,
	}
	e.ThisHash = entryHash(e.Index, e.Timestamp, e.Action, e.TargetID, e.Reason, e.PrevHash)

	if _, err := tx.Exec(
		`INSERT INTO audit_log (idx, ts, actor, action, target_id, reason, prev_hash, this_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Index, e.Timestamp.Format(time.RFC3339Nano), e.Actor, e.Action, e.TargetID, e.Reason, e.PrevHash, e.ThisHash,
	); err != nil {
		release()
		return nil, func() {}, fmt.Errorf("audit: append entry: %w", err)
	}
	return e, release, nil
}

// RecordTx satisfies the store's Auditor interface for in-transaction records.
func (l *Log) RecordTx(tx *sql.Tx, action, targetID, reason, actor string) (func(), error) {
	_, release, err := l.AppendTx(tx, action, targetID, reason, actor)
	return release, err
}

// Entries returns the full chain in index order.
func (l *Log) Entries() ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT idx, ts, actor, action, target_id, reason, prev_hash, this_hash
		 FROM audit_log ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.Index, &ts, &e.Actor, &e.Action, &e.TargetID, &e.Reason, &e.PrevHash, &e.ThisHash); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Len returns the number of entries in the chain.
func (l *Log) Len() (int, error) {
	var n int
	err := l.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n)
	return n, err
}

// VerifyChain recomputes every hash and checks the chain's linkage,
// sequencing, and timestamp order. It never returns an error for tampering —
// the Report is the result. Cancellable between entries; a cancelled pass
// reports what it saw so far with ChainValid still honest for the prefix.
func (l *Log) VerifyChain(ctx context.Context) (*Report, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}

	report := &Report{ChainValid: true, Entries: len(entries)}
	prevHash := GenesisHash()
	var prevTime time.Time

	for i := range entries {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}
		e := entries[i]

		if e.Index != int64(i) {
			return breakAt(report, int64(i), fmt.Sprintf("index gap: expected %d, found %d", i, e.Index)), nil
		}
		if e.PrevHash != prevHash {
			return breakAt(report, e.Index, "prev_hash does not match preceding entry"), nil
		}
		if want := entryHash(e.Index, e.Timestamp, e.Action, e.TargetID, e.Reason, e.PrevHash); e.ThisHash != want {
			return breakAt(report, e.Index, "stored hash does not match recomputed hash"), nil
		}
		if i > 0 && e.Timestamp.Before(prevTime) {
			return breakAt(report, e.Index, "timestamp earlier than preceding entry"), nil
		}

		prevHash = e.ThisHash
		prevTime = e.Timestamp
	}
	return report, nil
}

func breakAt(r *Report, index int64, detail string) *Report {
	r.ChainValid = false
	r.BreakIndex = &index
	r.Detail = detail
	return r
}
