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
package learning

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

// Config tunes the Extractor's behavior.
type Config struct {
	MinConfidence float64
}

// DefaultConfig returns the documented default (min_confidence 0.5).
func DefaultConfig() Config {
	return Config{MinConfidence: DefaultMinConfidence}
}

// Extractor runs the case/pattern/instinct pipeline over a transcript and
// upserts the results into the fact store under the agent.* namespace.
type Extractor struct {
	store  *store.Store
	cfg    Config
	tracer observability.Tracer
}

// New builds an Extractor writing to st.
func New(st *store.Store, cfg Config, tracer observability.Tracer) *Extractor {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	return &Extractor{store: st, cfg: cfg, tracer: tracer}
}

// Result reports what a single Run produced.
type Result struct {
	Cases     []CategorizedCase
	Patterns  []facts.Pattern
	Instincts []facts.Instinct
}

// Run scans messages for tool events, detects cases and patterns, and
// synthesizes and commits instincts above the configured confidence
// floor. sessionID tags every case it finds and seeds deterministic keys
// so repeated runs over the same transcript overwrite rather than
// duplicate.
func (e *Extractor) Run(ctx context.Context, sessionID string, messages []ingest.Message) (Result, error) {
	ctx, span := e.tracer.StartSpan(ctx, "learning.run")
	defer e.tracer.EndSpan(span)

	events := ExtractToolEvents(messages)
	cases := DetectCases(events, sessionID)
	patterns := DetectPatterns(events)
	instincts := SynthesizeInstincts(cases, patterns, e.cfg.MinConfidence)

	now := time.Now().UTC()
	for i, c := range cases {
		value, err := c.Case.MarshalValue()
		if err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("marshal case: %w", err)
		}
		key := fmt.Sprintf("agent.case.%s.%s", c.ErrorType, shortID(sessionID, i))
		if _, err := e.store.Upsert(ctx, key, value, "learning:"+sessionID, now); err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("upsert case %q: %w", key, err)
		}
	}

	for i, p := range patterns {
		value, err := p.MarshalValue()
		if err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("marshal pattern: %w", err)
		}
		key := fmt.Sprintf("agent.pattern.%s.%s", p.Type, shortID(string(p.Type), i))
		if _, err := e.store.Upsert(ctx, key, value, "learning:"+sessionID, now); err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("upsert pattern %q: %w", key, err)
		}
	}

	for _, in := range instincts {
		value, err := in.MarshalValue()
		if err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("marshal instinct: %w", err)
		}
		key := fmt.Sprintf("agent.instinct.%s.%s", in.Domain, shortID(in.Trigger, 0))
		if _, err := e.store.Upsert(ctx, key, value, "learning:"+sessionID, now); err != nil {
			span.RecordError(err)
			return Result{}, fmt.Errorf("upsert instinct %q: %w", key, err)
		}
	}

	return Result{Cases: cases, Patterns: patterns, Instincts: instincts}, nil
}

// ListInstincts returns every stored instinct under agent.instinct, used
// by the Query API's `instinct list`/`show` operations.
func ListInstincts(ctx context.Context, st *store.Store) ([]facts.Instinct, error) {
	active, err := st.ActivePrefix(ctx, "agent.instinct.")
	if err != nil {
		return nil, fmt.Errorf("list active instincts: %w", err)
	}
	out := make([]facts.Instinct, 0, len(active))
	for _, f := range active {
		in, err := facts.ParseInstinct(f.Value)
		if err != nil {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// shortID derives an 8-character deterministic identifier from seed and
// index so repeated extraction runs produce stable keys.
func shortID(seed string, index int) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s#%d", seed, index)))
	return hex.EncodeToString(sum[:])[:8]
}
