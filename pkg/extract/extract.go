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

// Package extract is the Fact Extractor: it chunks a filtered
// conversation, asks the LLM provider for a bare JSON array of
// {key,value} facts per chunk, and validates what comes back.
//
// The bare-JSON-array parsing style (strip to the outermost brackets,
// parse strictly, fail soft per-chunk) follows the same
// strip-then-decode posture pkg/patterns/llm_classifier.go takes with its
// confidence-scored classification output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/llmprovider"
	"github.com/cortexmemory/cortex/pkg/observability"
)

// ExtractorUnavailableError indicates the LLM provider could not be
// reached or timed out for a chunk. The pipeline treats this as a
// warning, not a fatal error: other chunks and other sources continue.
type ExtractorUnavailableError struct {
	ChunkIndex int
	Err        error
}

func (e *ExtractorUnavailableError) Error() string {
	return fmt.Sprintf("extractor unavailable for chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *ExtractorUnavailableError) Unwrap() error { return e.Err }

// Config controls chunking and provider deadlines.
type Config struct {
	ChunkCharCap       int
	Categories         []string
	InlineDeadline     time.Duration
	BackgroundDeadline time.Duration
}

// DefaultConfig matches §4.C: a ~30,000 char chunk cap, the default
// category set, a 45s inline deadline and a 2min background deadline.
func DefaultConfig() Config {
	return Config{
		ChunkCharCap:       30000,
		Categories:         facts.DefaultCategories,
		InlineDeadline:     45 * time.Second,
		BackgroundDeadline: 2 * time.Minute,
	}
}

const systemPrompt = `You extract durable facts from a conversation transcript.

Output a bare JSON array of objects, each shaped exactly as:
{"key": "<category>.<segment>[.<segment>...]", "value": "<string>"}

Rules:
- Output ONLY the JSON array. No prose, no markdown fences, no explanation.
- "key" must use one of these categories as its first dotted segment:
  user, project, task, system, config, preference, location, tool, agent,
  workflow, team, environment, model, auth, channel, gateway, plugin,
  binding, command, meta, error, correction, event, entity, inferred.
- Only extract facts that are durable and specific: identities, decisions,
  preferences, configuration, recurring errors, and their resolutions.
- Do not extract transient chit-chat, acknowledgments, or questions.
- If nothing extractable is present, output an empty array: []`

// Extractor turns filtered messages into raw facts.
type Extractor struct {
	provider llmprovider.LLMProvider
	cfg      Config
	tracer   observability.Tracer
}

// New builds an Extractor over provider.
func New(provider llmprovider.LLMProvider, cfg Config, tracer observability.Tracer) *Extractor {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Extractor{provider: provider, cfg: cfg, tracer: tracer}
}

// Result is the outcome of extracting one source's messages.
type Result struct {
	Facts    []facts.RawFact
	Warnings []string
}

// Extract chunks messages' text at paragraph boundaries, calls the LLM
// once per chunk, and validates the returned facts. inline selects the
// per-chunk deadline (45s when called from a hook, 2min from a
// background worker).
func (e *Extractor) Extract(ctx context.Context, sourceID string, messages []ingest.Message, inline bool) (Result, error) {
	ctx, span := e.tracer.StartSpan(ctx, "extract.extract")
	defer e.tracer.EndSpan(span)
	span.SetAttribute("source_id", sourceID)
	span.SetAttribute("message_count", len(messages))

	if len(messages) == 0 {
		return Result{}, nil
	}

	chunks := chunkMessages(messages, e.cfg.ChunkCharCap)
	span.SetAttribute("chunk_count", len(chunks))

	deadline := e.cfg.BackgroundDeadline
	if inline {
		deadline = e.cfg.InlineDeadline
	}

	var result Result
	for i, chunk := range chunks {
		chunkCtx, cancel := context.WithTimeout(ctx, deadline)
		rawFacts, err := e.extractChunk(chunkCtx, sourceID, chunk, i)
		cancel()
		if err != nil {
			var unavailable *ExtractorUnavailableError
			if asUnavailable(err, &unavailable) {
				result.Warnings = append(result.Warnings, unavailable.Error())
				continue
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("chunk %d: %v", i, err))
			continue
		}
		result.Facts = append(result.Facts, rawFacts...)
	}

	span.SetAttribute("fact_count", len(result.Facts))
	span.SetAttribute("warning_count", len(result.Warnings))
	return result, nil
}

func asUnavailable(err error, target **ExtractorUnavailableError) bool {
	if u, ok := err.(*ExtractorUnavailableError); ok {
		*target = u
		return true
	}
	return false
}

func (e *Extractor) extractChunk(ctx context.Context, sourceID string, chunk chunkData, idx int) ([]facts.RawFact, error) {
	raw, err := e.provider.Chat(ctx, systemPrompt, chunk.text)
	if err != nil {
		return nil, &ExtractorUnavailableError{ChunkIndex: idx, Err: err}
	}

	parsed, parseErr := parseFactArray(raw)
	if parseErr != nil {
		return nil, fmt.Errorf("chunk %d: parse failure: %w", idx, parseErr)
	}

	out := make([]facts.RawFact, 0, len(parsed))
	for _, p := range parsed {
		key := facts.NormalizeKey(p.Key)
		if err := facts.ValidKey(key, e.cfg.Categories); err != nil {
			continue
		}
		if p.Value == "" {
			continue
		}
		out = append(out, facts.RawFact{
			Key:              key,
			Value:            p.Value,
			Source:           "session:" + firstSegment(sourceID),
			MessageTimestamp: chunk.timestamp,
		})
	}
	return out, nil
}

type rawFactJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// parseFactArray strips anything before the first '[' and after the last
// ']', then parses strictly, per §4.C step 1-2.
func parseFactArray(text string) ([]rawFactJSON, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	var out []rawFactJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func firstSegment(sourceID string) string {
	if idx := strings.IndexAny(sourceID, ":/"); idx >= 0 {
		return sourceID[:idx]
	}
	return sourceID
}

type chunkData struct {
	text      string
	timestamp time.Time
}

// chunkMessages concatenates message text with paragraph breaks and
// splits into chunks no larger than capChars, splitting only at
// paragraph boundaries (never mid-paragraph); a single paragraph longer
// than capChars becomes its own chunk, unsplit. Each chunk's timestamp is
// its first message's timestamp, used as message_timestamp for every
// fact extracted from it.
func chunkMessages(messages []ingest.Message, capChars int) []chunkData {
	if capChars <= 0 {
		capChars = 30000
	}

	type paragraph struct {
		text      string
		timestamp time.Time
	}
	var paragraphs []paragraph
	for _, m := range messages {
		prefix := "User: "
		if m.Role == ingest.RoleAssistant {
			prefix = "Assistant: "
		}
		paragraphs = append(paragraphs, paragraph{text: prefix + m.Text, timestamp: m.Timestamp})
	}

	var chunks []chunkData
	var builder strings.Builder
	var chunkStart time.Time
	chunkHasContent := false

	flush := func() {
		if chunkHasContent {
			chunks = append(chunks, chunkData{text: builder.String(), timestamp: chunkStart})
		}
		builder.Reset()
		chunkHasContent = false
	}

	for _, p := range paragraphs {
		addition := p.text
		if chunkHasContent {
			addition = "\n\n" + addition
		}
		if chunkHasContent && builder.Len()+len(addition) > capChars {
			flush()
			addition = p.text
		}
		if !chunkHasContent {
			chunkStart = p.timestamp
		}
		builder.WriteString(addition)
		chunkHasContent = true
	}
	flush()

	return chunks
}
