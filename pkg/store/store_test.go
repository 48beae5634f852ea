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
package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/cortexmemory/cortex/internal/sqlitedriver"
	"github.com/cortexmemory/cortex/pkg/observability"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortex.db")
	s, err := Open(context.Background(), path, observability.NewNoOpTracer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertInsertsAndSupersedes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t1 := time.UnixMilli(1000)
	res, err := s.Upsert(ctx, "user.name", "Alice", "session:1", t1)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	active, err := s.Active(ctx, "user.name")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "Alice", active.Value)
	require.True(t, active.Active())

	t2 := time.UnixMilli(2000)
	res2, err := s.Upsert(ctx, "user.name", "Bob", "session:2", t2)
	require.NoError(t, err)
	require.False(t, res2.Skipped)

	active, err = s.Active(ctx, "user.name")
	require.NoError(t, err)
	require.Equal(t, "Bob", active.Value)

	history, err := s.History(ctx, "user.name")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "Alice", history[0].Value)
	require.NotNil(t, history[0].EndTime)
	require.Equal(t, t2.UnixMilli(), history[0].EndTime.UnixMilli())
	require.Equal(t, "Bob", history[1].Value)
	require.Nil(t, history[1].EndTime)
}

func TestUpsertSameValueSkips(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Upsert(ctx, "user.city", "Taipei", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)

	res, err := s.Upsert(ctx, "user.city", "Taipei", "session:2", time.UnixMilli(2000))
	require.NoError(t, err)
	require.True(t, res.Skipped)

	history, err := s.History(ctx, "user.city")
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestActivePrefix(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Upsert(ctx, "project.cortex.language", "Go", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "project.cortex.status", "active", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "user.name", "Alice", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)

	rows, err := s.ActivePrefix(ctx, "project.cortex")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestDeletePreservesHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Upsert(ctx, "user.name", "Alice", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "user.name"))

	active, err := s.Active(ctx, "user.name")
	require.NoError(t, err)
	require.Nil(t, active)

	history, err := s.History(ctx, "user.name")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].EndTime)
}

func TestSetEmbeddingDimensionEnforcement(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res, err := s.Upsert(ctx, "user.name", "Alice", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)

	vec := []float32{0.1, 0.2, 0.3}
	require.NoError(t, s.SetEmbedding(ctx, res.Fact.ID, vec))

	active, err := s.Active(ctx, "user.name")
	require.NoError(t, err)
	require.InDeltaSlice(t, vec, active.Embedding, 1e-6)

	res2, err := s.Upsert(ctx, "user.city", "Taipei", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	err = s.SetEmbedding(ctx, res2.Fact.ID, []float32{0.1, 0.2})
	require.Error(t, err)
}

func TestSetEmbeddingIgnoresNoLongerActiveRow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res, err := s.Upsert(ctx, "user.name", "Alice", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "user.name", "Bob", "session:2", time.UnixMilli(2000))
	require.NoError(t, err)

	require.NoError(t, s.SetEmbedding(ctx, res.Fact.ID, []float32{1, 2, 3}))

	history, err := s.History(ctx, "user.name")
	require.NoError(t, err)
	require.Nil(t, history[0].Embedding)
}

func TestCrashRecoveryReconcilesDuplicateActiveRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cortex.db")

	s := openTestStore2(t, path)
	_, err := s.Upsert(ctx, "user.name", "Alice", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO facts (key, value, source, start_time, end_time) VALUES (?, ?, ?, ?, NULL)`,
		"user.name", "Bob", "session:2", 2000)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s2, err := Open(ctx, path, observability.NewNoOpTracer())
	require.NoError(t, err)
	defer s2.Close()

	active, err := s2.Active(ctx, "user.name")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "Bob", active.Value)

	history, err := s2.History(ctx, "user.name")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "Alice", history[0].Value)
	require.NotNil(t, history[0].EndTime)
}

func openTestStore2(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, observability.NewNoOpTracer())
	require.NoError(t, err)
	return s
}

func TestCosineSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-6)
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	require.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.125, -0.5, 3.25, 0}
	require.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))
}
