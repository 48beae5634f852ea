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
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cortexmemory/cortex/internal/config"
	"github.com/cortexmemory/cortex/pkg/aggregate"
	"github.com/cortexmemory/cortex/pkg/api"
	"github.com/cortexmemory/cortex/pkg/concurrency"
	"github.com/cortexmemory/cortex/pkg/dedup"
	"github.com/cortexmemory/cortex/pkg/extract"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/learning"
	"github.com/cortexmemory/cortex/pkg/llmprovider"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/pipeline"
	"github.com/cortexmemory/cortex/pkg/search"
	"github.com/cortexmemory/cortex/pkg/store"
)

// app bundles every long-lived collaborator a subcommand might need. It is
// built once per process invocation from the resolved Config.
type app struct {
	cfg          *config.Config
	store        *store.Store
	llm          llmprovider.LLMProvider
	embedder     llmprovider.EmbeddingProvider
	searcher     *search.Searcher
	aggregator   *aggregate.Aggregator
	learner      *learning.Extractor
	deduper      *dedup.Deduper
	extractor    *extract.Extractor
	orchestrator *pipeline.Orchestrator
	service      *api.Service
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tracer := observability.NewNoOpTracer()

	dbPath := cfg.DataDir
	if dbPath == "" {
		dbPath = config.DataDir()
	}
	st, err := store.Open(ctx, filepath.Join(dbPath, "cortex.db"), tracer)
	if err != nil {
		return nil, fmt.Errorf("open fact store: %w", err)
	}

	llmCfg := llmprovider.OllamaConfig{
		Endpoint:       cfg.LLM.Endpoint,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.Embedding.Model,
		EmbeddingDim:   cfg.Embedding.Dimension,
	}
	provider := llmprovider.NewOllamaProvider(llmCfg)

	searchCfg := search.Config{
		VectorThreshold: cfg.Search.VectorThreshold,
		VectorWeight:    cfg.Search.VectorWeight,
		BM25Weight:      cfg.Search.BM25Weight,
		BM25Bonus:       cfg.Search.BM25Bonus,
		TypeMappings:    cfg.TypeMappings,
	}
	searcher := search.New(st, searchCfg, tracer)
	agg := aggregate.New(st, tracer)
	learner := learning.New(st, learning.Config{MinConfidence: cfg.Learning.MinConfidence}, tracer)

	dedupCfg := dedup.Config{
		Enabled:       cfg.Dedup.Enabled,
		Threshold:     cfg.Dedup.SimilarityThreshold,
		MaxCandidates: cfg.Dedup.MaxCandidates,
	}
	deduper := dedup.New(provider, provider, st, dedupCfg, tracer)

	extractCfg := extract.DefaultConfig()
	if len(cfg.Categories) > 0 {
		extractCfg.Categories = cfg.Categories
	}
	extractor := extract.New(provider, extractCfg, tracer)

	ledgerPath := filepath.Join(dbPath, "processed_sources.ledger")
	ledger, err := pipeline.OpenLedger(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	pipelineCfg := pipeline.DefaultConfig()
	orchestrator := pipeline.New(ingest.JSONLAdapter{}, extractor, provider, deduper, st, ledger, pipelineCfg, tracer)

	svc := api.New(st, searcher, agg, learner, provider, tracer)

	return &app{
		cfg: cfg, store: st, llm: provider, embedder: provider,
		searcher: searcher, aggregator: agg, learner: learner, deduper: deduper,
		extractor: extractor, orchestrator: orchestrator, service: svc,
	}, nil
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func acquireLock(cfg *config.Config, owner string) (*concurrency.Lock, error) {
	lockPath := filepath.Join(cfg.DataDir, "cortex.lock")
	ttl := concurrency.StaleTTLWorker
	if cfg.Lock.StaleTTLSeconds > 0 {
		ttl = time.Duration(cfg.Lock.StaleTTLSeconds) * time.Second
	}
	return concurrency.Acquire(lockPath, owner, ttl)
}
