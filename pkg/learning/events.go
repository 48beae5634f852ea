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

// Package learning is the Learning Extractor: it scans normalized
// transcripts for tool-result events to derive error->recovery cases and
// tool-usage patterns, then synthesizes both into high-confidence agent
// instincts that get written back to the fact store.
package learning

import (
	"regexp"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/ingest"
)

// ToolEvent is one tool invocation's outcome, as recovered from a
// transcript message's text. The normalized transcript schema (§6) folds
// tool-call blocks into plain text rather than carrying a structured
// event type, so ToolEvent recovery is a text heuristic over assistant
// messages shaped like "Tool: <name> ok|error: <payload>" — the format
// host adapters are expected to fold tool-call blocks into.
type ToolEvent struct {
	Tool      string
	Success   bool
	Payload   string
	Timestamp time.Time
}

var toolEventRe = regexp.MustCompile(`(?im)^Tool:\s*(\S+)\s+(ok|success|error|fail(?:ed)?)\s*:\s*(.*)$`)

// ExtractToolEvents scans messages for tool-result lines in conversation
// order.
func ExtractToolEvents(messages []ingest.Message) []ToolEvent {
	var events []ToolEvent
	for _, m := range messages {
		for _, line := range strings.Split(m.Text, "\n") {
			match := toolEventRe.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			success := match[2] == "ok" || match[2] == "success"
			events = append(events, ToolEvent{
				Tool:      match[1],
				Success:   success,
				Payload:   strings.TrimSpace(match[3]),
				Timestamp: m.Timestamp,
			})
		}
	}
	return events
}
