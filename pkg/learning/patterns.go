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
	"sort"
	"strings"

	"github.com/cortexmemory/cortex/pkg/facts"
)

const (
	frequentToolThreshold = 5
	sequenceThreshold     = 3
	workflowThreshold     = 5
	workflowStreakLength  = 3
)

// DetectPatterns scans events for three independent shapes: individual
// tools used at least frequentToolThreshold times, 2- and 3-step
// successful sequences repeated at least sequenceThreshold times, and
// contiguous all-success streaks of at least workflowStreakLength events
// occurring at least workflowThreshold times.
func DetectPatterns(events []ToolEvent) []facts.Pattern {
	var patterns []facts.Pattern
	patterns = append(patterns, frequentToolPatterns(events)...)
	patterns = append(patterns, sequencePatterns(events, 2)...)
	patterns = append(patterns, sequencePatterns(events, 3)...)
	patterns = append(patterns, workflowPatterns(events)...)
	return patterns
}

func frequentToolPatterns(events []ToolEvent) []facts.Pattern {
	counts := make(map[string]int)
	for _, ev := range events {
		counts[ev.Tool]++
	}
	var tools []string
	for t := range counts {
		tools = append(tools, t)
	}
	sort.Strings(tools)

	var patterns []facts.Pattern
	for _, t := range tools {
		if counts[t] < frequentToolThreshold {
			continue
		}
		patterns = append(patterns, facts.Pattern{
			Type:       facts.PatternKindFrequentTool,
			Tool:       t,
			Count:      counts[t],
			Confidence: stepConfidence(counts[t]),
		})
	}
	return patterns
}

func sequencePatterns(events []ToolEvent, n int) []facts.Pattern {
	counts := make(map[string]int)
	sequences := make(map[string][]string)
	for i := 0; i+n <= len(events); i++ {
		var seq []string
		ok := true
		for j := 0; j < n; j++ {
			if !events[i+j].Success {
				ok = false
				break
			}
			seq = append(seq, events[i+j].Tool)
		}
		if !ok {
			continue
		}
		key := strings.Join(seq, ">")
		counts[key]++
		sequences[key] = seq
	}

	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var patterns []facts.Pattern
	for _, k := range keys {
		if counts[k] < sequenceThreshold {
			continue
		}
		patterns = append(patterns, facts.Pattern{
			Type:       facts.PatternKindSequence,
			Sequence:   sequences[k],
			Count:      counts[k],
			Confidence: stepConfidence(counts[k]),
		})
	}
	return patterns
}

// workflowPatterns counts how many times a contiguous streak of at least
// workflowStreakLength all-success events occurs, keyed by the distinct
// tool set involved in each streak.
func workflowPatterns(events []ToolEvent) []facts.Pattern {
	counts := make(map[string]int)
	toolSets := make(map[string][]string)

	i := 0
	for i < len(events) {
		if !events[i].Success {
			i++
			continue
		}
		start := i
		seen := make(map[string]bool)
		var tools []string
		for i < len(events) && events[i].Success {
			if !seen[events[i].Tool] {
				seen[events[i].Tool] = true
				tools = append(tools, events[i].Tool)
			}
			i++
		}
		if i-start >= workflowStreakLength {
			sort.Strings(tools)
			key := strings.Join(tools, ">")
			counts[key]++
			toolSets[key] = tools
		}
	}

	var keys []string
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var patterns []facts.Pattern
	for _, k := range keys {
		if counts[k] < workflowThreshold {
			continue
		}
		patterns = append(patterns, facts.Pattern{
			Type:       facts.PatternKindWorkflow,
			Tools:      toolSets[k],
			Count:      counts[k],
			Confidence: stepConfidence(counts[k]),
		})
	}
	return patterns
}

// stepConfidence is the shared confidence step function: 2->0.5, 3->0.6,
// 5->0.7, 7->0.8, 10+->0.9, and 0.3 for counts below 2.
func stepConfidence(n int) float64 {
	switch {
	case n >= 10:
		return 0.9
	case n >= 7:
		return 0.8
	case n >= 5:
		return 0.7
	case n >= 3:
		return 0.6
	case n >= 2:
		return 0.5
	default:
		return 0.3
	}
}
