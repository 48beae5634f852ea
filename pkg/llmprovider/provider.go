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

// Package llmprovider defines the two external-collaborator boundaries the
// spec treats as pluggable: "text -> text" completion for the extractor and
// deduper, and "text -> vector" embedding for the store's vector index.
// Both are narrow interfaces; a default HTTP-based implementation talking
// to an Ollama-compatible local server is provided, but any implementation
// satisfying the interface may be substituted.
package llmprovider

import "context"

// LLMProvider maps a system/user prompt pair to a text completion. It is
// the only call surface the Fact Extractor and Semantic Deduper use.
type LLMProvider interface {
	// Chat sends a single-turn system+user prompt and returns the model's
	// text response. Implementations MUST honor ctx cancellation/deadline.
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Name returns the provider name (e.g. "ollama", "anthropic").
	Name() string

	// Model returns the model identifier in use.
	Model() string
}

// EmbeddingProvider maps text to a fixed-dimension float vector.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector length this provider produces. The
	// store does not call it: it records the length of the first vector
	// it stores and rejects later vectors of a different length.
	Dimension() int
}
