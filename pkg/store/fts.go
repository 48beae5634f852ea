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
	"fmt"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
)

// FTS5Hit is one row of a QueryFTS5 result: the matched fact plus its
// raw SQLite bm25() score (negative; closer to zero is a better match).
type FTS5Hit struct {
	Fact  facts.Fact
	Score float64
}

// QueryFTS5 runs an FTS5 MATCH query (already token-quoted by the caller)
// against facts_fts5, returning up to limit hits ordered by bm25() score.
// The FTS5 index only ever contains active rows (the sync triggers in
// the 000001 migration enforce this), so no separate end_time filter is
// needed here.
func (s *Store) QueryFTS5(ctx context.Context, matchQuery string, limit int) ([]FTS5Hit, error) {
	if matchQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	ctx, span := s.tracer.StartSpan(ctx, "store.query_fts5")
	defer s.tracer.EndSpan(span)
	span.SetAttribute("limit", limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.key, f.value, f.source, f.start_time, f.end_time, f.embedding,
		       bm25(facts_fts5) AS score
		FROM facts_fts5
		JOIN facts f ON f.id = facts_fts5.rowid
		WHERE facts_fts5 MATCH ?
		ORDER BY score
		LIMIT ?
	`, matchQuery, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fts5 match query: %w", err)
	}
	defer rows.Close()

	var hits []FTS5Hit
	for rows.Next() {
		var f facts.Fact
		var startMillis int64
		var endMillis sql.NullInt64
		var embeddingBlob []byte
		var score float64

		if err := rows.Scan(&f.ID, &f.Key, &f.Value, &f.Source, &startMillis, &endMillis, &embeddingBlob, &score); err != nil {
			return nil, fmt.Errorf("scan fts5 hit: %w", err)
		}
		f.StartTime = time.UnixMilli(startMillis).UTC()
		if endMillis.Valid {
			t := time.UnixMilli(endMillis.Int64).UTC()
			f.EndTime = &t
		}
		if len(embeddingBlob) > 0 {
			f.Embedding = decodeEmbedding(embeddingBlob)
		}
		hits = append(hits, FTS5Hit{Fact: f, Score: score})
	}
	return hits, rows.Err()
}
