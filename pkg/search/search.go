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

// Package search implements hybrid BM25 + cosine-similarity retrieval
// over the fact store's active set, fusing the two result lists with a
// weighted score and applying verdict filters.
//
// Grounded on pkg/agent/session_store.go's SearchFTS5/convertToFTS5Query:
// the same quote-every-token approach to neutralizing FTS5 operator
// characters, and the same "restrict to the live set, not full history"
// framing the teacher applies to undeleted sessions.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

// Config holds the fusion weights and thresholds from the search.* config
// table. Zero-value Config is invalid; use DefaultConfig.
type Config struct {
	VectorThreshold float64
	VectorWeight    float64
	BM25Weight      float64
	BM25Bonus       float64
	TypeMappings    map[string][]string
}

// DefaultConfig returns the weights specified by the search.* defaults.
func DefaultConfig() Config {
	return Config{
		VectorThreshold: 0.3,
		VectorWeight:    0.7,
		BM25Weight:      0.3,
		BM25Bonus:       0.15,
	}
}

// Query is a single search request. Candidates come from Prefix if set,
// else from Keys, else from Text and Semantic together (hybrid ranking);
// the lower-precedence fields are ignored. An empty query returns the most
// recent active rows.
type Query struct {
	Prefix   string
	Keys     []string
	Text     string
	Semantic []float32

	Limit int

	SourceVerified bool
	Subject        string
	MaxAgeDays     int
	Type           string
}

// Result pairs a fact with the score it was ranked by.
type Result struct {
	Fact  facts.Fact
	Score float64
}

// Searcher runs hybrid search over a fact store.
type Searcher struct {
	store  *store.Store
	cfg    Config
	tracer observability.Tracer
}

// New builds a Searcher over store s.
func New(s *store.Store, cfg Config, tracer observability.Tracer) *Searcher {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Searcher{store: s, cfg: cfg, tracer: tracer}
}

// Search resolves q against the active set and returns up to q.Limit
// results, highest score first.
func (s *Searcher) Search(ctx context.Context, q Query) ([]Result, error) {
	ctx, span := s.tracer.StartSpan(ctx, "search.search")
	defer s.tracer.EndSpan(span)

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var results []Result
	var err error
	switch {
	case q.Prefix != "":
		results, err = s.plainResults(ctx, func() ([]facts.Fact, error) {
			return s.store.ActivePrefix(ctx, q.Prefix)
		})
	case len(q.Keys) > 0:
		results, err = s.plainResults(ctx, func() ([]facts.Fact, error) {
			return s.byKeys(ctx, q.Keys)
		})
	case q.Text != "" || len(q.Semantic) > 0:
		results, err = s.hybridRank(ctx, q, limit)
	default:
		results, err = s.plainResults(ctx, func() ([]facts.Fact, error) {
			return s.store.ActiveAll(ctx)
		})
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("resolve candidates: %w", err)
	}

	results = s.applyFilters(results, q)

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Fact.StartTime.After(results[j].Fact.StartTime)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Searcher) plainResults(_ context.Context, fetch func() ([]facts.Fact, error)) ([]Result, error) {
	fs, err := fetch()
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(fs))
	for _, f := range fs {
		out = append(out, Result{Fact: f})
	}
	return out, nil
}

func (s *Searcher) byKeys(ctx context.Context, keys []string) ([]facts.Fact, error) {
	var out []facts.Fact
	for _, k := range keys {
		f, err := s.store.Active(ctx, k)
		if err != nil {
			return nil, err
		}
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

// hybridRank implements §4.G's vector+BM25 fusion algorithm.
func (s *Searcher) hybridRank(ctx context.Context, q Query, limit int) ([]Result, error) {
	topN := 2 * limit

	vectorScores := make(map[int64]float64)
	byID := make(map[int64]facts.Fact)

	if len(q.Semantic) > 0 {
		all, err := s.store.ActiveAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch active set for vector search: %w", err)
		}
		type scored struct {
			fact  facts.Fact
			score float64
		}
		var ranked []scored
		for _, f := range all {
			if len(f.Embedding) == 0 {
				continue
			}
			sim := store.CosineSimilarity(f.Embedding, q.Semantic)
			if sim >= s.cfg.VectorThreshold {
				ranked = append(ranked, scored{f, sim})
			}
		}
		sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}
		for _, r := range ranked {
			vectorScores[r.fact.ID] = r.score
			byID[r.fact.ID] = r.fact
		}
	}

	bm25Scores := make(map[int64]float64)
	if q.Text != "" {
		hits, err := s.store.QueryFTS5(ctx, quoteFTS5Query(q.Text), topN)
		if err != nil {
			return nil, fmt.Errorf("bm25 search: %w", err)
		}
		normalizeBM25(hits)
		for _, h := range hits {
			bm25Scores[h.Fact.ID] = h.Score
			if _, ok := byID[h.Fact.ID]; !ok {
				byID[h.Fact.ID] = h.Fact
			}
		}
	}

	type combined struct {
		id    int64
		score float64
	}
	var out []combined
	for id := range byID {
		vScore, hasVector := vectorScores[id]
		bScore, hasBM25 := bm25Scores[id]
		score := s.cfg.VectorWeight*vScore + s.cfg.BM25Weight*bScore
		if hasVector && hasBM25 && vScore >= s.cfg.VectorThreshold {
			score += s.cfg.BM25Bonus * vScore
		}
		out = append(out, combined{id, score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })

	results := make([]Result, 0, len(out))
	for _, c := range out {
		results = append(results, Result{Fact: byID[c.id], Score: c.score})
	}
	return results, nil
}

// quoteFTS5Query tokenizes on whitespace and double-quotes each token so
// that FTS5 operator characters (-, :, *, (, )) in user text are treated
// literally rather than as query syntax.
func quoteFTS5Query(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		quoted[i] = `"` + f + `"`
	}
	return strings.Join(quoted, " ")
}

// normalizeBM25 rescales hits' raw SQLite bm25() scores (negative;
// closer to zero is a better match) to [0,1] within this result set,
// in place, so that higher means better like the vector score.
func normalizeBM25(hits []store.FTS5Hit) {
	if len(hits) == 0 {
		return
	}
	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}
	// bm25() is negative and lower-is-better; flip sign so higher is
	// better, then min-max normalize.
	for i := range hits {
		hits[i].Score = -hits[i].Score
	}
	lo, hi := -max, -min
	spread := hi - lo
	for i := range hits {
		if spread <= 0 {
			hits[i].Score = 1
			continue
		}
		hits[i].Score = (hits[i].Score - lo) / spread
	}
}

func (s *Searcher) applyFilters(results []Result, q Query) []Result {
	out := results[:0:0]
	now := time.Now()
	for _, r := range results {
		if q.SourceVerified && facts.Category(r.Fact.Key) == "inferred" {
			continue
		}
		if q.Subject != "" && !strings.Contains(r.Fact.Key, q.Subject) {
			continue
		}
		if q.MaxAgeDays > 0 {
			age := now.Sub(r.Fact.StartTime)
			if age > time.Duration(q.MaxAgeDays)*24*time.Hour {
				continue
			}
		}
		if q.Type != "" {
			prefixes := s.cfg.TypeMappings[q.Type]
			if len(prefixes) > 0 && !matchesAnyPrefix(r.Fact.Key, prefixes) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func matchesAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
