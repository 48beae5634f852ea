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
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
)

// DefaultMinConfidence is the floor below which a synthesized instinct is
// dropped rather than stored.
const DefaultMinConfidence = 0.5

// SynthesizeInstincts groups cases by error type and turns each group of
// 2 or more into a trigger/action instinct; it does the same for
// frequent-tool and workflow patterns strong enough to generalize, then
// drops anything below minConfidence (0 selects DefaultMinConfidence) and
// deduplicates by instinct trigger+domain.
func SynthesizeInstincts(cases []CategorizedCase, patterns []facts.Pattern, minConfidence float64) []facts.Instinct {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	var out []facts.Instinct
	out = append(out, instinctsFromCases(cases)...)
	out = append(out, instinctsFromPatterns(patterns)...)

	seen := make(map[string]bool)
	var deduped []facts.Instinct
	for _, in := range out {
		if in.Confidence < minConfidence {
			continue
		}
		key := in.Domain + "|" + in.Trigger
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, in)
	}

	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Domain != deduped[j].Domain {
			return deduped[i].Domain < deduped[j].Domain
		}
		return deduped[i].Trigger < deduped[j].Trigger
	})
	return deduped
}

func instinctsFromCases(cases []CategorizedCase) []facts.Instinct {
	byType := make(map[string][]CategorizedCase)
	for _, c := range cases {
		byType[c.ErrorType] = append(byType[c.ErrorType], c)
	}

	var out []facts.Instinct
	for _, errType := range sortedErrorTypes(cases) {
		group := byType[errType]
		if len(group) < 2 {
			continue
		}

		toolCounts := make(map[string]int)
		for _, c := range group {
			seen := make(map[string]bool)
			for _, t := range c.Case.Solution.Tools {
				if !seen[t] {
					seen[t] = true
					toolCounts[t]++
				}
			}
		}

		threshold := int(math.Ceil(float64(len(group)) / 2))
		var commonTools []string
		for t, n := range toolCounts {
			if n >= threshold {
				commonTools = append(commonTools, t)
			}
		}
		sort.Strings(commonTools)
		if len(commonTools) == 0 {
			continue
		}

		latest := group[len(group)-1].Case
		out = append(out, facts.Instinct{
			Trigger:       fmt.Sprintf("error.%s", errType),
			Action:        fmt.Sprintf("use %s — %s", strings.Join(commonTools, ", "), latest.Solution.Description),
			Confidence:    facts.ClampConfidence(stepConfidence(len(group))),
			Domain:        "error_recovery",
			EvidenceCount: len(group),
			GeneratedAt:   time.Now().UTC(),
		})
	}
	return out
}

func instinctsFromPatterns(patterns []facts.Pattern) []facts.Instinct {
	var out []facts.Instinct
	for _, p := range patterns {
		switch p.Type {
		case facts.PatternKindFrequentTool:
			out = append(out, facts.Instinct{
				Trigger:       fmt.Sprintf("tool.%s.candidate", p.Tool),
				Action:        fmt.Sprintf("prefer %s when applicable", p.Tool),
				Confidence:    facts.ClampConfidence(p.Confidence),
				Domain:        "tool_preference",
				EvidenceCount: p.Count,
				GeneratedAt:   time.Now().UTC(),
			})
		case facts.PatternKindSequence:
			out = append(out, facts.Instinct{
				Trigger:       fmt.Sprintf("sequence.%s", strings.Join(p.Sequence, ">")),
				Action:        fmt.Sprintf("run %s in order", strings.Join(p.Sequence, " then ")),
				Confidence:    facts.ClampConfidence(p.Confidence),
				Domain:        "workflow",
				EvidenceCount: p.Count,
				GeneratedAt:   time.Now().UTC(),
			})
		case facts.PatternKindWorkflow:
			out = append(out, facts.Instinct{
				Trigger:       fmt.Sprintf("workflow.%s", strings.Join(p.Tools, ">")),
				Action:        fmt.Sprintf("treat %s as one workflow", strings.Join(p.Tools, ", ")),
				Confidence:    facts.ClampConfidence(p.Confidence),
				Domain:        "workflow",
				EvidenceCount: p.Count,
				GeneratedAt:   time.Now().UTC(),
			})
		}
	}
	return out
}
