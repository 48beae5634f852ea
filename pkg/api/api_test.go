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
package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmemory/cortex/pkg/aggregate"
	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/learning"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/search"
	"github.com/cortexmemory/cortex/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortex.db")
	st, err := store.Open(context.Background(), path, observability.NewNoOpTracer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	searcher := search.New(st, search.DefaultConfig(), observability.NewNoOpTracer())
	agg := aggregate.New(st, observability.NewNoOpTracer())
	learner := learning.New(st, learning.DefaultConfig(), observability.NewNoOpTracer())
	return New(st, searcher, agg, learner, nil, observability.NewNoOpTracer()), st
}

func TestServiceStoreAndSummary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	fact, err := svc.Store(ctx, "user.name", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", fact.Value)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Contains(t, summary, "1 facts")
}

func TestServiceSearchByPrefix(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Store(ctx, "user.name", "Alice")
	require.NoError(t, err)

	results, err := svc.Search(ctx, search.Query{Prefix: "user", Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "user.name", results[0].Fact.Key)
}

func TestServiceInstinctLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	in := facts.Instinct{Trigger: "error.network", Action: "retry with backoff", Confidence: 0.8, Domain: "error_recovery", EvidenceCount: 5}
	value, err := in.MarshalValue()
	require.NoError(t, err)
	_, err = st.Upsert(ctx, "agent.instinct.error_recovery.abc123", value, "test", time.Now().UTC())
	require.NoError(t, err)

	list, err := svc.ListInstincts(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = svc.ListInstincts(ctx, "tool_preference")
	require.NoError(t, err)
	assert.Empty(t, list)

	shown, err := svc.ShowInstinct(ctx, "agent.instinct.error_recovery.abc123")
	require.NoError(t, err)
	assert.Equal(t, "error.network", shown.Trigger)

	err = svc.DeleteInstinct(ctx, "agent.instinct.error_recovery.abc123")
	require.NoError(t, err)

	_, err = svc.ShowInstinct(ctx, "agent.instinct.error_recovery.abc123")
	assert.Error(t, err)
}

func TestServiceExtractInstinctsWithoutCommit(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	c1 := facts.Case{Solution: facts.CaseSolution{Tools: []string{"chmod"}, Description: "fixed"}}
	c2 := facts.Case{Solution: facts.CaseSolution{Tools: []string{"chmod"}, Description: "fixed again"}}
	v1, _ := c1.MarshalValue()
	v2, _ := c2.MarshalValue()
	_, err := st.Upsert(ctx, "agent.case.permission.a1", v1, "test", time.Now().UTC())
	require.NoError(t, err)
	_, err = st.Upsert(ctx, "agent.case.permission.a2", v2, "test", time.Now().UTC())
	require.NoError(t, err)

	instincts, err := svc.ExtractInstincts(ctx, 0, false)
	require.NoError(t, err)
	require.Len(t, instincts, 1)

	list, err := svc.ListInstincts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	instincts, err = svc.ExtractInstincts(ctx, 0, true)
	require.NoError(t, err)
	require.Len(t, instincts, 1)

	list, err = svc.ListInstincts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
