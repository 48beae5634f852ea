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

// Package api is the Query/Mutation Service: a thin composition layer
// wiring the fact store, hybrid search, aggregator, and learning
// extractor behind the small operation set every host hook, CLI command,
// or future RPC transport calls through.
package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cortexmemory/cortex/pkg/aggregate"
	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/learning"
	"github.com/cortexmemory/cortex/pkg/llmprovider"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/search"
	"github.com/cortexmemory/cortex/pkg/store"
)

// Service implements the Query/Mutation API's seven operations (Summary,
// Search, Store, ListInstincts, ShowInstinct, DeleteInstinct,
// ExtractInstincts) over an
// injected fact store, searcher, aggregator, and learning extractor.
type Service struct {
	store      *store.Store
	searcher   *search.Searcher
	aggregator *aggregate.Aggregator
	learner    *learning.Extractor
	embedder   llmprovider.EmbeddingProvider
	tracer     observability.Tracer
}

// New builds a Service. embedder may be nil, in which case Store() skips
// embedding the newly written fact (it remains searchable via FTS5 only).
func New(st *store.Store, searcher *search.Searcher, agg *aggregate.Aggregator, learner *learning.Extractor, embedder llmprovider.EmbeddingProvider, tracer observability.Tracer) *Service {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Service{store: st, searcher: searcher, aggregator: agg, learner: learner, embedder: embedder, tracer: tracer}
}

// Summary returns the compact one-line digest text.
func (s *Service) Summary(ctx context.Context) (string, error) {
	digest, err := s.aggregator.BuildDigest(ctx)
	if err != nil {
		return "", fmt.Errorf("build digest: %w", err)
	}
	return digest.Summary(), nil
}

// Search runs a hybrid/prefix/key-list query and returns the ranked
// results.
func (s *Service) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	results, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

// Store upserts key=value under source "mcp:store", embedding it
// immediately when an embedding provider is configured.
func (s *Service) Store(ctx context.Context, key, value string) (facts.Fact, error) {
	result, err := s.store.Upsert(ctx, key, value, "mcp:store", time.Now().UTC())
	if err != nil {
		return facts.Fact{}, fmt.Errorf("upsert %q: %w", key, err)
	}
	if result.Skipped || s.embedder == nil {
		return result.Fact, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{value})
	if err != nil || len(vectors) == 0 {
		// Fallback over failure: the fact is already durable; embedding is
		// best-effort enrichment, not a precondition for the write.
		return result.Fact, nil
	}
	if err := s.store.SetEmbedding(ctx, result.Fact.ID, vectors[0]); err != nil {
		return result.Fact, nil
	}
	return result.Fact, nil
}

// ListInstincts returns every active instinct, sorted by domain then
// trigger, optionally filtered to a single domain.
func (s *Service) ListInstincts(ctx context.Context, domain string) ([]facts.Instinct, error) {
	all, err := learning.ListInstincts(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if domain == "" {
		return all, nil
	}
	var filtered []facts.Instinct
	for _, in := range all {
		if in.Domain == domain {
			filtered = append(filtered, in)
		}
	}
	return filtered, nil
}

// ShowInstinct finds the single active instinct stored under key.
func (s *Service) ShowInstinct(ctx context.Context, key string) (facts.Instinct, error) {
	f, err := s.store.Active(ctx, key)
	if err != nil {
		return facts.Instinct{}, fmt.Errorf("lookup %q: %w", key, err)
	}
	if f == nil {
		return facts.Instinct{}, fmt.Errorf("no active instinct at %q", key)
	}
	return facts.ParseInstinct(f.Value)
}

// DeleteInstinct closes out the active row at key without writing a
// successor, per §4.F's delete-is-supersede-with-no-replacement contract.
func (s *Service) DeleteInstinct(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// ExtractInstincts runs the learning extractor's instinct synthesis over
// the store's current cases/patterns directly, bypassing the
// transcript-scanning Run entrypoint — this is the "recompute instincts
// from what's already in the store" operation the CLI's
// `instinct extract` exposes, distinct from learning extraction that
// happens inline during pipeline processing.
func (s *Service) ExtractInstincts(ctx context.Context, minConfidence float64, commit bool) ([]facts.Instinct, error) {
	cases, err := loadCases(ctx, s.store)
	if err != nil {
		return nil, err
	}
	patterns, err := loadPatterns(ctx, s.store)
	if err != nil {
		return nil, err
	}

	instincts := learning.SynthesizeInstincts(cases, patterns, minConfidence)
	if !commit {
		return instincts, nil
	}

	now := time.Now().UTC()
	for _, in := range instincts {
		value, err := in.MarshalValue()
		if err != nil {
			return nil, fmt.Errorf("marshal instinct: %w", err)
		}
		key := fmt.Sprintf("agent.instinct.%s.%s", in.Domain, instinctSlug(in.Trigger))
		if _, err := s.store.Upsert(ctx, key, value, "auto:instinct-extraction", now); err != nil {
			return nil, fmt.Errorf("upsert instinct %q: %w", key, err)
		}
	}
	return instincts, nil
}

func loadCases(ctx context.Context, st *store.Store) ([]learning.CategorizedCase, error) {
	active, err := st.ActivePrefix(ctx, "agent.case.")
	if err != nil {
		return nil, fmt.Errorf("list active cases: %w", err)
	}
	out := make([]learning.CategorizedCase, 0, len(active))
	for _, f := range active {
		c, err := facts.ParseCase(f.Value)
		if err != nil {
			continue
		}
		out = append(out, learning.CategorizedCase{Case: c, ErrorType: facts.Segment(f.Key, 2)})
	}
	return out, nil
}

func loadPatterns(ctx context.Context, st *store.Store) ([]facts.Pattern, error) {
	active, err := st.ActivePrefix(ctx, "agent.pattern.")
	if err != nil {
		return nil, fmt.Errorf("list active patterns: %w", err)
	}
	out := make([]facts.Pattern, 0, len(active))
	for _, f := range active {
		p, err := facts.ParsePattern(f.Value)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func instinctSlug(trigger string) string {
	sum := 0
	for _, r := range trigger {
		sum = sum*31 + int(r)
	}
	if sum < 0 {
		sum = -sum
	}
	return fmt.Sprintf("%x", sum)
}
