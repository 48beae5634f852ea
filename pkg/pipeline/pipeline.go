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

// Package pipeline is the Pipeline Orchestrator: it runs the
// Seen→Normalize→Filter→Chunk/Extract→Align→Dedup→Commit→Embed state
// machine for one source at a time, enforcing idempotency via the
// processed-source ledger and structured per-stage logging the way the
// teacher logs every pipeline stage in pkg/agent and pkg/storage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cortexmemory/cortex/internal/log"
	"github.com/cortexmemory/cortex/pkg/align"
	"github.com/cortexmemory/cortex/pkg/dedup"
	"github.com/cortexmemory/cortex/pkg/extract"
	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/llmprovider"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

// Outcome is the terminal state of one ProcessSource call.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeDone    Outcome = "done"
	OutcomeFailed  Outcome = "failed"
)

// Config holds the orchestrator's own knobs; stage-specific
// configuration (chunking, dedup thresholds, noise floors) lives on the
// components it composes.
type Config struct {
	NoiseConfig  ingest.NoiseConfig
	StageTimeout time.Duration
}

// DefaultConfig returns sensible defaults for every orchestrator-owned
// setting.
func DefaultConfig() Config {
	return Config{
		NoiseConfig:  ingest.DefaultNoiseConfig(),
		StageTimeout: 2 * time.Minute,
	}
}

// Orchestrator wires together one instance of every pipeline stage
// around a single fact store.
type Orchestrator struct {
	adapter   ingest.Adapter
	extractor *extract.Extractor
	embedder  llmprovider.EmbeddingProvider
	deduper   *dedup.Deduper
	store     *store.Store
	ledger    *Ledger
	cfg       Config
	tracer    observability.Tracer

	// OnCommitted, if set, is invoked after every successfully processed
	// source with the facts it committed — the Aggregator and Learning
	// Extractor hook in here without pipeline importing either package.
	OnCommitted func(ctx context.Context, sourceID string, committed []facts.Fact)
}

// New builds an Orchestrator.
func New(adapter ingest.Adapter, extractor *extract.Extractor, embedder llmprovider.EmbeddingProvider,
	deduper *dedup.Deduper, st *store.Store, ledger *Ledger, cfg Config, tracer observability.Tracer) *Orchestrator {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Orchestrator{
		adapter: adapter, extractor: extractor, embedder: embedder,
		deduper: deduper, store: st, ledger: ledger, cfg: cfg, tracer: tracer,
	}
}

// ProcessSource runs the full state machine for one source. inline
// selects the extractor's per-chunk deadline (hook vs background
// worker).
func (o *Orchestrator) ProcessSource(ctx context.Context, sourceID string, raw []byte, mtimeUnix int64, inline bool) (Outcome, error) {
	ctx, span := o.tracer.StartSpan(ctx, "pipeline.process_source")
	defer o.tracer.EndSpan(span)
	span.SetAttribute("source_id", sourceID)

	stageLog := log.Logger().With(zap.String("source_id", sourceID))

	if o.ledger.IsProcessed(sourceID, mtimeUnix) {
		stageLog.Info("pipeline: skipped, already processed", zap.Int64("mtime", mtimeUnix))
		return OutcomeSkipped, nil
	}

	messages, err := o.adapter.Decode(sourceID, raw)
	if err != nil {
		stageLog.Warn("pipeline: malformed transcript, advancing ledger to avoid looping", zap.Error(err))
		_ = o.ledger.MarkProcessed(sourceID, mtimeUnix)
		return OutcomeSkipped, nil
	}
	if len(messages) == 0 {
		stageLog.Info("pipeline: skipped, empty transcript")
		_ = o.ledger.MarkProcessed(sourceID, mtimeUnix)
		return OutcomeSkipped, nil
	}

	filtered := ingest.FilterMessages(messages, o.cfg.NoiseConfig)
	if len(filtered) == 0 {
		stageLog.Info("pipeline: skipped, all messages were noise", zap.Int("message_count", len(messages)))
		_ = o.ledger.MarkProcessed(sourceID, mtimeUnix)
		return OutcomeSkipped, nil
	}
	stageLog.Info("pipeline: filtered", zap.Int("before", len(messages)), zap.Int("after", len(filtered)))

	extractResult, err := o.extractor.Extract(ctx, sourceID, filtered, inline)
	if err != nil {
		stageLog.Error("pipeline: extraction failed", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("extract: %w", err)
	}
	for _, w := range extractResult.Warnings {
		stageLog.Warn("pipeline: extractor warning", zap.String("warning", w))
	}
	if len(extractResult.Facts) == 0 {
		stageLog.Info("pipeline: no facts extracted")
		_ = o.ledger.MarkProcessed(sourceID, mtimeUnix)
		return OutcomeDone, nil
	}

	timed := align.Align(extractResult.Facts)
	stageLog.Info("pipeline: aligned", zap.Int("raw_facts", len(extractResult.Facts)), zap.Int("timed_facts", len(timed)))

	committed, err := o.commitAndEmbed(ctx, sourceID, timed, stageLog)
	if err != nil {
		stageLog.Error("pipeline: commit failed", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("commit: %w", err)
	}

	if err := o.ledger.MarkProcessed(sourceID, mtimeUnix); err != nil {
		stageLog.Error("pipeline: failed to advance ledger", zap.Error(err))
		return OutcomeFailed, fmt.Errorf("mark processed: %w", err)
	}

	if o.OnCommitted != nil {
		o.OnCommitted(ctx, sourceID, committed)
	}

	stageLog.Info("pipeline: done", zap.Int("committed", len(committed)))
	return OutcomeDone, nil
}

func (o *Orchestrator) commitAndEmbed(ctx context.Context, sourceID string, timed []facts.TimedFact, stageLog *zap.Logger) ([]facts.Fact, error) {
	var committed []facts.Fact

	for _, tf := range timed {
		decision, err := o.deduper.Decide(ctx, tf)
		if err != nil {
			return nil, fmt.Errorf("dedup decide for %q: %w", tf.Key, err)
		}

		var result store.UpsertResult
		switch decision.Action {
		case dedup.ActionSkip:
			stageLog.Debug("pipeline: dedup skip", zap.String("key", tf.Key))
			continue
		case dedup.ActionMerge:
			result, err = o.store.ApplyMerge(ctx, decision.Target, tf.Value, tf.Source, tf.StartTime)
		default:
			result, err = o.store.Upsert(ctx, tf.Key, tf.Value, tf.Source, tf.StartTime)
		}
		if err != nil {
			return nil, fmt.Errorf("commit %q: %w", tf.Key, err)
		}
		if result.Skipped {
			continue
		}

		if len(decision.Embedding) > 0 {
			if err := o.store.SetEmbedding(ctx, result.Fact.ID, decision.Embedding); err != nil {
				stageLog.Warn("pipeline: embed failed, leaving row unembedded", zap.String("key", tf.Key), zap.Error(err))
			} else {
				result.Fact.Embedding = decision.Embedding
			}
		}
		committed = append(committed, result.Fact)
	}
	return committed, nil
}
