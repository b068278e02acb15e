package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex persists the entry index durably, giving sentineld a way to
// recover records_for(agent, ...) queries across process restarts without
// replaying the whole segment log.
type SQLiteIndex struct {
	db *sql.DB
}

// OpenSQLiteIndex opens (creating if necessary) the SQLite index at path
// and runs its migration.
func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite index: %w", err)
	}
	idx := &SQLiteIndex{db: db}
	if err := idx.migrate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS asr_index (
		sequence      INTEGER PRIMARY KEY,
		asr_id        TEXT UNIQUE NOT NULL,
		agent_id      TEXT NOT NULL,
		timestamp     DATETIME NOT NULL,
		entry_hash    TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		record_hash   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_asr_agent ON asr_index(agent_id);
	`
	_, err := idx.db.ExecContext(context.Background(), query)
	return err
}

// Record persists one entry's index row. The canonical record bytes
// themselves live in the segment log, not in SQLite.
func (idx *SQLiteIndex) Record(ctx context.Context, e *Entry, recordHash string) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO asr_index (sequence, asr_id, agent_id, timestamp, entry_hash, previous_hash, record_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Sequence, e.ASRID, e.AgentID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.EntryHash, e.PreviousHash, recordHash,
	)
	if err != nil {
		return fmt.Errorf("store: index insert: %w", err)
	}
	return nil
}

// IndexRow is a persisted index entry, without the record payload.
type IndexRow struct {
	Sequence     uint64
	ASRID        string
	AgentID      string
	Timestamp    time.Time
	EntryHash    string
	PreviousHash string
	RecordHash   string
}

// ByAgent returns the persisted index rows for agentID, in sequence order.
func (idx *SQLiteIndex) ByAgent(ctx context.Context, agentID string, limit int) ([]IndexRow, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT sequence, asr_id, agent_id, timestamp, entry_hash, previous_hash, record_hash
		FROM asr_index WHERE agent_id = ? ORDER BY sequence ASC LIMIT ?`,
		agentID, nonZeroOr(limit, -1),
	)
	if err != nil {
		return nil, fmt.Errorf("store: index query: %w", err)
	}
	defer rows.Close()

	var out []IndexRow
	for rows.Next() {
		var r IndexRow
		var ts string
		if err := rows.Scan(&r.Sequence, &r.ASRID, &r.AgentID, &ts, &r.EntryHash, &r.PreviousHash, &r.RecordHash); err != nil {
			return nil, fmt.Errorf("store: index scan: %w", err)
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonZeroOr(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// Close releases the underlying database handle.
func (idx *SQLiteIndex) Close() error {
	return idx.db.Close()
}
