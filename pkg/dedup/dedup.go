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

// Package dedup is the Semantic Deduper: before a timed fact is
// committed, find existing active facts whose embeddings are close
// enough to be "the same fact" and ask the LLM whether to skip, merge,
// or create.
//
// The JSON-object decision contract and its fail-soft-to-create posture
// are grounded on pkg/patterns/llm_classifier.go's confidence-scored
// classification decoding: strip to the object, parse strictly, and
// never let a malformed response take down the caller.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/llmprovider"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

// Action is the deduper's decision outcome.
type Action string

const (
	ActionSkip   Action = "skip"
	ActionMerge  Action = "merge"
	ActionCreate Action = "create"
)

// Decision is the deduper's verdict for one incoming fact.
type Decision struct {
	Action    Action
	Target    string
	Reason    string
	Embedding []float32
}

// Config holds the dedup.* settings.
type Config struct {
	Enabled       bool
	Threshold     float64
	MaxCandidates int
}

// DefaultConfig matches dedup.enabled=true, dedup.similarity_threshold=0.85,
// dedup.max_candidates=5.
func DefaultConfig() Config {
	return Config{Enabled: true, Threshold: 0.85, MaxCandidates: 5}
}

// Store is the subset of *store.Store the deduper reads from.
type Store interface {
	ActiveAll(ctx context.Context) ([]facts.Fact, error)
}

// Deduper decides skip/merge/create for incoming facts.
type Deduper struct {
	embedder llmprovider.EmbeddingProvider
	provider llmprovider.LLMProvider
	store    Store
	cfg      Config
	tracer   observability.Tracer
}

// New builds a Deduper.
func New(embedder llmprovider.EmbeddingProvider, provider llmprovider.LLMProvider, st Store, cfg Config, tracer observability.Tracer) *Deduper {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Deduper{embedder: embedder, provider: provider, store: st, cfg: cfg, tracer: tracer}
}

// Decide implements §4.E's algorithm for a single timed fact.
func (d *Deduper) Decide(ctx context.Context, fact facts.TimedFact) (Decision, error) {
	ctx, span := d.tracer.StartSpan(ctx, "dedup.decide")
	defer d.tracer.EndSpan(span)
	span.SetAttribute("key", fact.Key)

	if !d.cfg.Enabled {
		span.SetAttribute("outcome", "create_disabled")
		return Decision{Action: ActionCreate}, nil
	}

	vectors, err := d.embedder.Embed(ctx, []string{fact.Key + ": " + fact.Value})
	if err != nil || len(vectors) == 0 {
		span.RecordError(err)
		return Decision{Action: ActionCreate, Reason: "embedding unavailable, falling back to create"}, nil
	}
	vector := vectors[0]

	candidates, err := d.topCandidates(ctx, vector)
	if err != nil {
		span.RecordError(err)
		return Decision{Action: ActionCreate, Embedding: vector, Reason: "candidate lookup failed, falling back to create"}, nil
	}
	if len(candidates) == 0 {
		span.SetAttribute("outcome", "create_no_candidates")
		return Decision{Action: ActionCreate, Embedding: vector}, nil
	}

	decision, err := d.askLLM(ctx, fact, candidates)
	if err != nil {
		span.RecordError(err)
		span.SetAttribute("outcome", "create_llm_fallback")
		return Decision{Action: ActionCreate, Embedding: vector, Reason: "decision unavailable, falling back to create"}, nil
	}
	decision.Embedding = vector
	span.SetAttribute("outcome", string(decision.Action))
	return decision, nil
}

type candidate struct {
	fact  facts.Fact
	score float64
}

func (d *Deduper) topCandidates(ctx context.Context, vector []float32) ([]candidate, error) {
	all, err := d.store.ActiveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active facts: %w", err)
	}

	var ranked []candidate
	for _, f := range all {
		if len(f.Embedding) == 0 {
			continue
		}
		sim := store.CosineSimilarity(f.Embedding, vector)
		if sim >= d.cfg.Threshold {
			ranked = append(ranked, candidate{fact: f, score: sim})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > d.cfg.MaxCandidates {
		ranked = ranked[:d.cfg.MaxCandidates]
	}
	return ranked, nil
}

const systemPrompt = `You decide whether a new fact duplicates an existing one.

Given a NEW fact and a list of CANDIDATE existing facts it is semantically
close to, decide one of:
- "skip": the new fact adds nothing beyond an existing candidate.
- "merge": the new fact updates an existing candidate; name its key as "target".
- "create": the new fact is genuinely distinct from every candidate.

Output ONLY a bare JSON object, no prose, no markdown fences:
{"action": "skip|merge|create", "target": "<candidate key, if merge>", "reason": "<short reason>"}`

func (d *Deduper) askLLM(ctx context.Context, fact facts.TimedFact, candidates []candidate) (Decision, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "NEW fact: %s: %s\n\nCANDIDATES:\n", fact.Key, fact.Value)
	for _, c := range candidates {
		fmt.Fprintf(&b, "- key=%s value=%s similarity=%.3f\n", c.fact.Key, c.fact.Value, c.score)
	}

	raw, err := d.provider.Chat(ctx, systemPrompt, b.String())
	if err != nil {
		return Decision{}, fmt.Errorf("decision call failed: %w", err)
	}

	parsed, err := parseDecision(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("parse decision: %w", err)
	}
	return parsed, nil
}

type decisionJSON struct {
	Action string `json:"action"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

func parseDecision(text string) (Decision, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < 0 || end < start {
		return Decision{}, fmt.Errorf("no JSON object found in response")
	}
	var d decisionJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return Decision{}, err
	}

	action := Action(strings.ToLower(strings.TrimSpace(d.Action)))
	switch action {
	case ActionSkip, ActionMerge, ActionCreate:
	default:
		return Decision{}, fmt.Errorf("unrecognized action %q", d.Action)
	}
	if action == ActionMerge && d.Target == "" {
		return Decision{}, fmt.Errorf("merge decision missing target")
	}
	return Decision{Action: action, Target: d.Target, Reason: d.Reason}, nil
}
