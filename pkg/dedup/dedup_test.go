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
package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/observability"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}
func (s stubEmbedder) Dimension() int { return len(s.vector) }

type stubChat struct {
	response string
	err      error
}

func (s stubChat) Chat(_ context.Context, _, _ string) (string, error) { return s.response, s.err }
func (s stubChat) Name() string                                        { return "stub" }
func (s stubChat) Model() string                                       { return "stub-model" }

type stubStore struct {
	facts []facts.Fact
}

func (s stubStore) ActiveAll(_ context.Context) ([]facts.Fact, error) { return s.facts, nil }

func TestDecideDisabledShortCircuitsToCreate(t *testing.T) {
	d := New(stubEmbedder{}, stubChat{}, stubStore{}, Config{Enabled: false}, observability.NewNoOpTracer())
	decision, err := d.Decide(context.Background(), facts.TimedFact{Key: "user.name", Value: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ActionCreate, decision.Action)
}

func TestDecideNoCandidatesCreates(t *testing.T) {
	d := New(stubEmbedder{vector: []float32{1, 0, 0}}, stubChat{}, stubStore{}, DefaultConfig(), observability.NewNoOpTracer())
	decision, err := d.Decide(context.Background(), facts.TimedFact{Key: "user.name", Value: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ActionCreate, decision.Action)
}

func TestDecideMergeFromLLM(t *testing.T) {
	existing := facts.Fact{ID: 1, Key: "user.name", Value: "Alicia", StartTime: time.Now(), Embedding: []float32{1, 0, 0}}
	d := New(
		stubEmbedder{vector: []float32{1, 0, 0}},
		stubChat{response: `{"action":"merge","target":"user.name","reason":"same person"}`},
		stubStore{facts: []facts.Fact{existing}},
		DefaultConfig(),
		observability.NewNoOpTracer(),
	)
	decision, err := d.Decide(context.Background(), facts.TimedFact{Key: "user.name", Value: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ActionMerge, decision.Action)
	require.Equal(t, "user.name", decision.Target)
}

func TestDecideLLMFailureFallsBackToCreate(t *testing.T) {
	existing := facts.Fact{ID: 1, Key: "user.name", Value: "Alicia", StartTime: time.Now(), Embedding: []float32{1, 0, 0}}
	d := New(
		stubEmbedder{vector: []float32{1, 0, 0}},
		stubChat{err: errors.New("connection refused")},
		stubStore{facts: []facts.Fact{existing}},
		DefaultConfig(),
		observability.NewNoOpTracer(),
	)
	decision, err := d.Decide(context.Background(), facts.TimedFact{Key: "user.name", Value: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ActionCreate, decision.Action)
}

func TestDecideEmbeddingFailureFallsBackToCreate(t *testing.T) {
	d := New(stubEmbedder{err: errors.New("timeout")}, stubChat{}, stubStore{}, DefaultConfig(), observability.NewNoOpTracer())
	decision, err := d.Decide(context.Background(), facts.TimedFact{Key: "user.name", Value: "Alice"})
	require.NoError(t, err)
	require.Equal(t, ActionCreate, decision.Action)
}

func TestParseDecisionRejectsMergeWithoutTarget(t *testing.T) {
	_, err := parseDecision(`{"action":"merge"}`)
	require.Error(t, err)
}
