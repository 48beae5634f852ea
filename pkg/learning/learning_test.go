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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

func msg(t time.Time, text string) ingest.Message {
	return ingest.Message{Role: ingest.RoleAssistant, Text: text, Timestamp: t}
}

func TestExtractToolEventsParsesLines(t *testing.T) {
	base := time.Unix(0, 0)
	messages := []ingest.Message{
		msg(base, "Tool: git error: merge conflict in file.go"),
		msg(base.Add(time.Second), "Tool: git ok: resolved conflict"),
	}
	events := ExtractToolEvents(messages)
	require.Len(t, events, 2)
	assert.Equal(t, "git", events[0].Tool)
	assert.False(t, events[0].Success)
	assert.True(t, events[1].Success)
}

func TestDetectCasesFindsRecoveryWithinWindow(t *testing.T) {
	base := time.Unix(0, 0)
	events := []ToolEvent{
		{Tool: "bash", Success: false, Payload: "permission denied running script", Timestamp: base},
		{Tool: "bash", Success: false, Payload: "permission denied again", Timestamp: base.Add(time.Second)},
		{Tool: "chmod", Success: true, Payload: "fixed permissions", Timestamp: base.Add(2 * time.Second)},
	}
	cases := DetectCases(events, "session-1")
	require.Len(t, cases, 2)
	assert.Equal(t, "permission", cases[0].ErrorType)
	assert.Contains(t, cases[0].Case.Solution.Tools, "chmod")
	assert.Equal(t, "recovered", cases[0].Case.Outcome)
}

func TestDetectCasesNoRecoveryOutsideWindow(t *testing.T) {
	base := time.Unix(0, 0)
	events := []ToolEvent{{Tool: "bash", Success: false, Payload: "not found: missing file", Timestamp: base}}
	for i := 0; i < CaseWindow; i++ {
		events = append(events, ToolEvent{Tool: "bash", Success: false, Payload: "still missing", Timestamp: base})
	}
	events = append(events, ToolEvent{Tool: "bash", Success: true, Payload: "created", Timestamp: base})
	cases := DetectCases(events, "session-1")
	// The final success lies CaseWindow+1 events after the first failure,
	// so only the CaseWindow later failures are recovered by it.
	require.Len(t, cases, CaseWindow)
	for _, c := range cases {
		assert.NotEqual(t, "bash: not found: missing file", c.Case.Problem)
	}
}

func TestCategorizeKeywords(t *testing.T) {
	assert.Equal(t, "not_found", categorize("Error: no such file or directory"))
	assert.Equal(t, "network", categorize("connection refused while dialing"))
	assert.Equal(t, "generic", categorize("something weird happened"))
}

func TestDetectPatternsFrequentTool(t *testing.T) {
	var events []ToolEvent
	for i := 0; i < frequentToolThreshold; i++ {
		events = append(events, ToolEvent{Tool: "grep", Success: true})
	}
	patterns := DetectPatterns(events)
	var found bool
	for _, p := range patterns {
		if p.Type == facts.PatternKindFrequentTool && p.Tool == "grep" {
			found = true
			assert.Equal(t, frequentToolThreshold, p.Count)
		}
	}
	assert.True(t, found)
}

func TestDetectPatternsSequence(t *testing.T) {
	var events []ToolEvent
	for i := 0; i < sequenceThreshold; i++ {
		events = append(events,
			ToolEvent{Tool: "read", Success: true},
			ToolEvent{Tool: "edit", Success: true},
		)
	}
	patterns := DetectPatterns(events)
	var found bool
	for _, p := range patterns {
		if p.Type == facts.PatternKindSequence {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectPatternsWorkflow(t *testing.T) {
	var events []ToolEvent
	for i := 0; i < workflowThreshold; i++ {
		events = append(events,
			ToolEvent{Tool: "a", Success: true},
			ToolEvent{Tool: "b", Success: true},
			ToolEvent{Tool: "c", Success: true},
		)
	}
	patterns := DetectPatterns(events)
	var found bool
	for _, p := range patterns {
		if p.Type == facts.PatternKindWorkflow {
			found = true
			assert.Equal(t, workflowThreshold, p.Count)
		}
	}
	assert.True(t, found)
}

func TestStepConfidence(t *testing.T) {
	assert.Equal(t, 0.5, stepConfidence(2))
	assert.Equal(t, 0.6, stepConfidence(3))
	assert.Equal(t, 0.7, stepConfidence(5))
	assert.Equal(t, 0.8, stepConfidence(7))
	assert.Equal(t, 0.9, stepConfidence(10))
	assert.Equal(t, 0.9, stepConfidence(100))
}

func TestSynthesizeInstinctsFromCasesRequiresCommonTools(t *testing.T) {
	cases := []CategorizedCase{
		{ErrorType: "permission", Case: facts.Case{Solution: facts.CaseSolution{Tools: []string{"chmod"}, Description: "fixed"}}},
		{ErrorType: "permission", Case: facts.Case{Solution: facts.CaseSolution{Tools: []string{"chmod"}, Description: "fixed again"}}},
	}
	instincts := SynthesizeInstincts(cases, nil, 0)
	require.Len(t, instincts, 1)
	assert.Equal(t, "error.permission", instincts[0].Trigger)
	assert.Equal(t, "error_recovery", instincts[0].Domain)
	assert.Equal(t, 2, instincts[0].EvidenceCount)
}

func TestSynthesizeInstinctsFiltersBelowMinConfidence(t *testing.T) {
	patterns := []facts.Pattern{
		{Type: facts.PatternKindFrequentTool, Tool: "grep", Count: 2, Confidence: 0.5},
	}
	instincts := SynthesizeInstincts(nil, patterns, 0.8)
	assert.Empty(t, instincts)
}

func TestSynthesizeInstinctsDedupesByTriggerAndDomain(t *testing.T) {
	patterns := []facts.Pattern{
		{Type: facts.PatternKindFrequentTool, Tool: "grep", Count: 10, Confidence: 0.9},
		{Type: facts.PatternKindFrequentTool, Tool: "grep", Count: 10, Confidence: 0.9},
	}
	instincts := SynthesizeInstincts(nil, patterns, 0)
	assert.Len(t, instincts, 1)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cortex.db")
	s, err := store.Open(context.Background(), path, observability.NewNoOpTracer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestExtractorRunCommitsInstinctsToStore(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	ex := New(st, DefaultConfig(), observability.NewNoOpTracer())

	base := time.Unix(0, 0)
	messages := []ingest.Message{
		msg(base, "Tool: chmod error: permission denied"),
		msg(base.Add(time.Second), "Tool: chmod ok: fixed permissions"),
		msg(base.Add(2*time.Second), "Tool: chmod error: permission denied again"),
		msg(base.Add(3*time.Second), "Tool: chmod ok: fixed permissions again"),
	}

	result, err := ex.Run(ctx, "session-1", messages)
	require.NoError(t, err)
	require.NotEmpty(t, result.Instincts)

	stored, err := ListInstincts(ctx, st)
	require.NoError(t, err)
	require.Len(t, stored, len(result.Instincts))
}

func TestExtractorRunIsIdempotentForSameTranscript(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	ex := New(st, DefaultConfig(), observability.NewNoOpTracer())

	base := time.Unix(0, 0)
	messages := []ingest.Message{
		msg(base, "Tool: chmod error: permission denied"),
		msg(base.Add(time.Second), "Tool: chmod ok: fixed permissions"),
		msg(base.Add(2*time.Second), "Tool: chmod error: permission denied again"),
		msg(base.Add(3*time.Second), "Tool: chmod ok: fixed permissions again"),
	}

	_, err := ex.Run(ctx, "session-1", messages)
	require.NoError(t, err)
	_, err = ex.Run(ctx, "session-1", messages)
	require.NoError(t, err)

	stored, err := ListInstincts(ctx, st)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}
