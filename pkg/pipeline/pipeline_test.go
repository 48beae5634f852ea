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
package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexmemory/cortex/pkg/dedup"
	"github.com/cortexmemory/cortex/pkg/extract"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

type stubChatProvider struct{ response string }

func (s stubChatProvider) Chat(_ context.Context, _, _ string) (string, error) { return s.response, nil }
func (s stubChatProvider) Name() string                                       { return "stub" }
func (s stubChatProvider) Model() string                                      { return "stub-model" }

type stubEmbedder struct{ dim int }

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
		out[i][0] = 1
	}
	return out, nil
}
func (s stubEmbedder) Dimension() int { return s.dim }

func newTestOrchestrator(t *testing.T, extractResponse string) (*Orchestrator, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cortex.db")
	st, err := store.Open(context.Background(), dbPath, observability.NewNoOpTracer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	extractor := extract.New(stubChatProvider{response: extractResponse}, extract.DefaultConfig(), observability.NewNoOpTracer())
	embedder := stubEmbedder{dim: 3}
	deduper := dedup.New(embedder, stubChatProvider{response: `{"action":"create"}`}, st, dedup.DefaultConfig(), observability.NewNoOpTracer())

	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "processed_sources.ledger"))
	require.NoError(t, err)

	o := New(ingest.JSONLAdapter{}, extractor, embedder, deduper, st, ledger, DefaultConfig(), observability.NewNoOpTracer())
	return o, st
}

func TestProcessSourceCommitsFacts(t *testing.T) {
	o, st := newTestOrchestrator(t, `[{"key":"user.name","value":"Alice"}]`)

	raw := []byte(`{"type":"message","message":{"role":"user","content":"My name is Alice and I live in a small house near the river."},"timestamp":"2026-07-30T10:00:00Z"}` + "\n")

	outcome, err := o.ProcessSource(context.Background(), "session:1", raw, 1000, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeDone, outcome)

	active, err := st.Active(context.Background(), "user.name")
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, "Alice", active.Value)
}

func TestProcessSourceSkipsWhenAlreadyProcessed(t *testing.T) {
	o, _ := newTestOrchestrator(t, `[{"key":"user.name","value":"Alice"}]`)
	raw := []byte(`{"type":"message","message":{"role":"user","content":"My name is Alice and I live near the river."},"timestamp":"2026-07-30T10:00:00Z"}` + "\n")

	_, err := o.ProcessSource(context.Background(), "session:1", raw, 1000, true)
	require.NoError(t, err)

	outcome, err := o.ProcessSource(context.Background(), "session:1", raw, 1000, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
}

func TestProcessSourceSkipsAllNoiseTranscript(t *testing.T) {
	o, _ := newTestOrchestrator(t, `[]`)
	raw := []byte(`{"type":"message","message":{"role":"user","content":"hi"},"timestamp":"2026-07-30T10:00:00Z"}` + "\n")

	outcome, err := o.ProcessSource(context.Background(), "session:2", raw, 1000, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
}

func TestProcessSourceMalformedTranscriptAdvancesLedger(t *testing.T) {
	o, _ := newTestOrchestrator(t, `[]`)
	raw := []byte("not json\n")

	outcome, err := o.ProcessSource(context.Background(), "session:3", raw, 1000, true)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.True(t, o.ledger.IsProcessed("session:3", 1000))
}
