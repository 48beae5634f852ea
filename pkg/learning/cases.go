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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
)

// CaseWindow bounds how many events after a failure still count as its
// recovery.
const CaseWindow = 4

// errorKeywords maps each of the eight recognized error categories to the
// keywords whose presence in an event's payload votes for that category.
// The category with the most votes wins; ties fall back to "generic".
var errorKeywords = map[string][]string{
	"permission":   {"permission denied", "forbidden", "eacces", "access denied", "unauthorized", "401", "403"},
	"not_found":    {"not found", "no such file", "404", "enoent", "does not exist"},
	"syntax":       {"syntax error", "unexpected token", "parse error", "invalid syntax", "unexpected eof"},
	"test_failure": {"test failed", "assertion", "expected", "fail:", "tests failed"},
	"network":      {"connection refused", "timeout", "timed out", "econnrefused", "dns", "network"},
	"conflict":     {"merge conflict", "conflict", "diverged", "non-fast-forward"},
	"import":       {"import cycle", "undefined:", "cannot find package", "no required module", "unresolved import"},
}

// categorize returns the error type with the most keyword hits in payload,
// or "generic" when nothing matches.
func categorize(payload string) string {
	lower := strings.ToLower(payload)
	best, bestScore, tied := "generic", 0, false
	for category, keywords := range errorKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = category, score, false
		case score > 0 && score == bestScore:
			tied = true
		}
	}
	if tied {
		return "generic"
	}
	return best
}

// CategorizedCase pairs a Case with the error_type segment its key is
// filed under, since facts.Case itself carries no such field.
type CategorizedCase struct {
	Case      facts.Case
	ErrorType string
}

// DetectCases scans events for an error event followed, within CaseWindow
// events, by a success event — the signature of an agent recovering from
// a mistake. The recovering tools and the first CaseWindow-bounded
// success payload become the case's solution.
func DetectCases(events []ToolEvent, sessionID string) []CategorizedCase {
	var cases []CategorizedCase
	for i, ev := range events {
		if ev.Success {
			continue
		}
		end := i + CaseWindow + 1
		if end > len(events) {
			end = len(events)
		}
		var recoveryTools []string
		seen := make(map[string]bool)
		for j := i + 1; j < end; j++ {
			next := events[j]
			if !seen[next.Tool] {
				seen[next.Tool] = true
				recoveryTools = append(recoveryTools, next.Tool)
			}
			if next.Success {
				errType := categorize(ev.Payload)
				cases = append(cases, CategorizedCase{
					Case: facts.Case{
						Problem: fmt.Sprintf("%s: %s", ev.Tool, truncatePayload(ev.Payload)),
						Solution: facts.CaseSolution{
							Tools:       recoveryTools,
							Actions:     recoveryActions(events[i+1 : j+1]),
							Description: truncatePayload(next.Payload),
						},
						Outcome:   "recovered",
						Session:   sessionID,
						Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
					},
					ErrorType: errType,
				})
				break
			}
		}
	}
	return cases
}

func recoveryActions(events []ToolEvent) []string {
	var actions []string
	for _, ev := range events {
		if len(actions) >= 3 {
			break
		}
		actions = append(actions, fmt.Sprintf("%s: %s", ev.Tool, truncatePayload(ev.Payload)))
	}
	return actions
}

func truncatePayload(s string) string {
	const max = 200
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// sortedErrorTypes returns the distinct error types present in cs, sorted
// for deterministic instinct key assignment.
func sortedErrorTypes(cs []CategorizedCase) []string {
	seen := make(map[string]bool)
	var types []string
	for _, c := range cs {
		if !seen[c.ErrorType] {
			seen[c.ErrorType] = true
			types = append(types, c.ErrorType)
		}
	}
	sort.Strings(types)
	return types
}
