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
package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/observability"
)

type stubProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (s *stubProvider) Chat(_ context.Context, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], err
	}
	return "[]", err
}
func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-model" }

func TestExtractParsesValidFacts(t *testing.T) {
	provider := &stubProvider{responses: []string{
		`Sure, here it is:
[{"key":"user.name","value":"Alice"},{"key":"user.city","value":"Taipei"},{"key":"bogus","value":"x"}]
Hope that helps!`,
	}}
	extractor := New(provider, DefaultConfig(), observability.NewNoOpTracer())

	messages := []ingest.Message{
		{Role: ingest.RoleUser, Text: "My name is Alice and I live in Taipei.", Timestamp: time.Unix(1000, 0)},
	}
	result, err := extractor.Extract(context.Background(), "session:abc", messages, true)
	require.NoError(t, err)
	require.Len(t, result.Facts, 2)
	require.Equal(t, "user.name", result.Facts[0].Key)
	require.Equal(t, "session:session", result.Facts[0].Source)
}

func TestExtractHandlesParseFailureAsWarning(t *testing.T) {
	provider := &stubProvider{responses: []string{"not json at all"}}
	extractor := New(provider, DefaultConfig(), observability.NewNoOpTracer())

	messages := []ingest.Message{
		{Role: ingest.RoleUser, Text: "something durable and specific here", Timestamp: time.Unix(1000, 0)},
	}
	result, err := extractor.Extract(context.Background(), "session:abc", messages, true)
	require.NoError(t, err)
	require.Empty(t, result.Facts)
	require.NotEmpty(t, result.Warnings)
}

func TestExtractProviderUnavailableIsWarningNotFatal(t *testing.T) {
	provider := &stubProvider{errs: []error{errors.New("connection refused")}}
	extractor := New(provider, DefaultConfig(), observability.NewNoOpTracer())

	messages := []ingest.Message{
		{Role: ingest.RoleUser, Text: "something durable and specific here", Timestamp: time.Unix(1000, 0)},
	}
	result, err := extractor.Extract(context.Background(), "session:abc", messages, true)
	require.NoError(t, err)
	require.Empty(t, result.Facts)
	require.Len(t, result.Warnings, 1)
}

func TestChunkMessagesSplitsOnParagraphBoundary(t *testing.T) {
	messages := []ingest.Message{
		{Role: ingest.RoleUser, Text: "AAAAAAAAAA", Timestamp: time.Unix(1, 0)},
		{Role: ingest.RoleAssistant, Text: "BBBBBBBBBB", Timestamp: time.Unix(2, 0)},
	}
	chunks := chunkMessages(messages, 20)
	require.Len(t, chunks, 2)
}
