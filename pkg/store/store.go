// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store is the Fact Store: a durable, temporally-versioned
// key/value database with a synced BM25 full-text index and a brute-force
// cosine vector index over the active set.
//
// Schema, FTS5 triggers, and the migration mechanism are grounded on
// pkg/storage/sqlite/migrator.go and pkg/agent/session_store.go's
// initSchema/SearchFTS5 from the teacher. Embedding blob encode/decode and
// cosine similarity follow the same approach used by
// ODSapper-CLIAIRMONITOR's internal/memory/learning.go, since the
// teacher's own SessionStore never stores vectors.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/cortexmemory/cortex/internal/sqlitedriver"
	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/observability"
)

// Store is a single fact-store handle. It serializes writes with an
// in-process mutex (single writer per handle, per the spec's concurrency
// design note) and relies on SQLite's busy_timeout for cross-process
// contention.
type Store struct {
	db     *sql.DB
	tracer observability.Tracer
	mu     sync.Mutex
}

// Open opens (creating if necessary) the SQLite database at path, applies
// pending migrations, and runs crash recovery before returning.
func Open(ctx context.Context, path string, tracer observability.Tracer) (*Store, error) {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	migrator, err := NewMigrator(db, tracer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s := &Store{db: db, tracer: tracer}
	if err := s.recoverCrashedState(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("crash recovery: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// recoverCrashedState enforces invariant 2 (at most one active row per
// key): for any key left with more than one end_time IS NULL row, the
// row with the latest start_time (ties broken by the highest id) wins and
// the others are closed at that start_time. Safe and cheap to run unconditionally on every Open.
func (s *Store) recoverCrashedState(ctx context.Context) error {
	ctx, span := s.tracer.StartSpan(ctx, "store.recover_crashed_state")
	defer s.tracer.EndSpan(span)

	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM facts WHERE end_time IS NULL
		GROUP BY key HAVING COUNT(*) > 1
	`)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("find duplicate active keys: %w", err)
	}
	var dupeKeys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return fmt.Errorf("scan duplicate key: %w", err)
		}
		dupeKeys = append(dupeKeys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	span.SetAttribute("duplicate_keys", len(dupeKeys))
	for _, key := range dupeKeys {
		if err := s.recoverKey(ctx, key); err != nil {
			return fmt.Errorf("recover key %q: %w", key, err)
		}
	}
	return nil
}

func (s *Store) recoverKey(ctx context.Context, key string) error {
	var winnerID int64
	var winnerStart int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, start_time FROM facts
		WHERE key = ? AND end_time IS NULL
		ORDER BY start_time DESC, id DESC LIMIT 1
	`, key).Scan(&winnerID, &winnerStart); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE facts SET end_time = ?
		WHERE key = ? AND end_time IS NULL AND id != ?
	`, winnerStart, key, winnerID)
	return err
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	Skipped bool
	Fact    facts.Fact
}

// Upsert is the sole write path for a single key's value. If the active
// row already has this value, it is a no-op (Skipped=true). Otherwise the
// active row (if any) is closed at startTime and a new active row is
// inserted, all inside one transaction — satisfying invariant 4 (the
// closed row's end_time equals the new row's start_time) and invariant 5
// (the FTS5 triggers keep the index in lockstep with this same
// transaction).
func (s *Store) Upsert(ctx context.Context, key, value, source string, startTime time.Time) (UpsertResult, error) {
	return s.upsertUnderKey(ctx, key, key, value, source, startTime)
}

// ApplyMerge writes fact under targetKey instead of its own key — the
// semantic deduper's "merge into an existing fact" outcome.
func (s *Store) ApplyMerge(ctx context.Context, targetKey, value, source string, startTime time.Time) (UpsertResult, error) {
	return s.upsertUnderKey(ctx, targetKey, targetKey, value, source, startTime)
}

func (s *Store) upsertUnderKey(ctx context.Context, writeKey, lookupKey, value, source string, startTime time.Time) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.StartSpan(ctx, "store.upsert")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("key", writeKey)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return UpsertResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var activeID int64
	var activeValue string
	err = tx.QueryRowContext(ctx, `
		SELECT id, value FROM facts WHERE key = ? AND end_time IS NULL
	`, lookupKey).Scan(&activeID, &activeValue)

	switch {
	case err == sql.ErrNoRows:
		// no active row: fall through to insert
	case err != nil:
		span.RecordError(err)
		return UpsertResult{}, fmt.Errorf("read active row: %w", err)
	case activeValue == value:
		span.SetAttribute("outcome", "skip")
		return UpsertResult{Skipped: true}, tx.Commit()
	default:
		startMillis := startTime.UnixMilli()
		if _, err := tx.ExecContext(ctx,
			"UPDATE facts SET end_time = ? WHERE id = ?", startMillis, activeID,
		); err != nil {
			span.RecordError(err)
			return UpsertResult{}, fmt.Errorf("close previous active row: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO facts (key, value, source, start_time, end_time)
		VALUES (?, ?, ?, ?, NULL)
	`, writeKey, value, source, startTime.UnixMilli())
	if err != nil {
		span.RecordError(err)
		return UpsertResult{}, fmt.Errorf("insert new row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return UpsertResult{}, fmt.Errorf("read inserted id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return UpsertResult{}, fmt.Errorf("commit upsert: %w", err)
	}

	span.SetAttribute("outcome", "inserted")
	return UpsertResult{
		Fact: facts.Fact{
			ID: id, Key: writeKey, Value: value, Source: source, StartTime: startTime,
		},
	}, nil
}

// Active returns the active row for key, or nil if none exists.
func (s *Store) Active(ctx context.Context, key string) (*facts.Fact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, value, source, start_time, end_time, embedding
		FROM facts WHERE key = ? AND end_time IS NULL
	`, key)
	fact, err := scanFact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active(%q): %w", key, err)
	}
	return &fact, nil
}

// ActivePrefix returns all active rows whose key starts with prefix.
func (s *Store) ActivePrefix(ctx context.Context, prefix string) ([]facts.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, source, start_time, end_time, embedding
		FROM facts WHERE end_time IS NULL AND key LIKE ? ESCAPE '\'
		ORDER BY start_time DESC
	`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("active_prefix(%q): %w", prefix, err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// ActiveAll returns every active row, most recent first. Used by the
// Aggregator and by search's "no query supplied" fallback.
func (s *Store) ActiveAll(ctx context.Context) ([]facts.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, source, start_time, end_time, embedding
		FROM facts WHERE end_time IS NULL
		ORDER BY start_time DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("active_all: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// History returns every row (active and superseded) for key, oldest first.
func (s *Store) History(ctx context.Context, key string) ([]facts.Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, value, source, start_time, end_time, embedding
		FROM facts WHERE key = ?
		ORDER BY start_time ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("history(%q): %w", key, err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// SetEmbedding attaches a vector to row id. Permitted only while the row
// is still active (it may have been superseded since the caller fetched
// it). The store records the first embedding's dimension and rejects any
// later vector of a different length.
func (s *Store) SetEmbedding(ctx context.Context, id int64, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.StartSpan(ctx, "store.set_embedding")
	defer s.tracer.EndSpan(span)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var endTime sql.NullInt64
	if err := tx.QueryRowContext(ctx, "SELECT end_time FROM facts WHERE id = ?", id).Scan(&endTime); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("row %d not found", id)
		}
		return fmt.Errorf("check row state: %w", err)
	}
	if endTime.Valid {
		span.SetAttribute("outcome", "row_no_longer_active")
		return nil
	}

	if err := s.checkDimension(ctx, tx, len(vector)); err != nil {
		span.RecordError(err)
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE facts SET embedding = ? WHERE id = ?", encodeEmbedding(vector), id,
	); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write embedding: %w", err)
	}
	return tx.Commit()
}

func (s *Store) checkDimension(ctx context.Context, tx *sql.Tx, dim int) error {
	var stored int
	err := tx.QueryRowContext(ctx, "SELECT dimension FROM embedding_meta WHERE id = 1").Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err := tx.ExecContext(ctx, "INSERT INTO embedding_meta (id, dimension) VALUES (1, ?)", dim)
		return err
	case err != nil:
		return fmt.Errorf("read embedding dimension: %w", err)
	case stored != dim:
		return fmt.Errorf("embedding dimension mismatch: store expects %d, got %d", stored, dim)
	default:
		return nil
	}
}

// Delete closes the active row for key (end_time = now), removing it from
// the indexes via the same triggers that handle supersession. History is
// never removed.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.StartSpan(ctx, "store.delete")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("key", key)

	res, err := s.db.ExecContext(ctx,
		"UPDATE facts SET end_time = ? WHERE key = ? AND end_time IS NULL",
		time.Now().UnixMilli(), key,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete(%q): %w", key, err)
	}
	n, _ := res.RowsAffected()
	span.SetAttribute("rows_affected", n)
	return nil
}

func likePrefix(prefix string) string {
	escaped := ""
	for _, r := range prefix {
		if r == '%' || r == '_' || r == '\\' {
			escaped += `\`
		}
		escaped += string(r)
	}
	return escaped + "%"
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFact(row rowScanner) (facts.Fact, error) {
	var f facts.Fact
	var startMillis int64
	var endMillis sql.NullInt64
	var embeddingBlob []byte

	if err := row.Scan(&f.ID, &f.Key, &f.Value, &f.Source, &startMillis, &endMillis, &embeddingBlob); err != nil {
		return facts.Fact{}, err
	}

	f.StartTime = time.UnixMilli(startMillis).UTC()
	if endMillis.Valid {
		t := time.UnixMilli(endMillis.Int64).UTC()
		f.EndTime = &t
	}
	if len(embeddingBlob) > 0 {
		f.Embedding = decodeEmbedding(embeddingBlob)
	}
	return f, nil
}

func scanFacts(rows *sql.Rows) ([]facts.Fact, error) {
	var out []facts.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fact row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
