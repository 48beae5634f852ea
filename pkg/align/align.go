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

// Package align implements the Temporal Aligner: a pure transform from a
// batch of raw, timestamped facts to a batch of timed facts with
// resolved [start_time, end_time) intervals. No I/O, no external
// dependency — the teacher and the rest of the pack have nothing to
// contribute to a pure grouping/sorting transform like this one, so this
// package is deliberately stdlib-only (§9 design note).
package align

import (
	"sort"

	"github.com/cortexmemory/cortex/pkg/facts"
)

// Align implements §4.D's algorithm: normalize keys, group, sort by
// message timestamp, dedupe consecutive identical values, then assign
// [start_time, end_time) intervals.
func Align(raw []facts.RawFact) []facts.TimedFact {
	groups := make(map[string][]facts.RawFact)
	var order []string
	for _, f := range raw {
		key := facts.NormalizeKey(f.Key)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		f.Key = key
		groups[key] = append(groups[key], f)
	}

	var out []facts.TimedFact
	for _, key := range order {
		entries := groups[key]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].MessageTimestamp.Before(entries[j].MessageTimestamp)
		})
		deduped := dedupeConsecutive(entries)
		out = append(out, assignIntervals(deduped)...)
	}
	return out
}

// dedupeConsecutive drops all but the earliest of a run of consecutive
// entries sharing the same value.
func dedupeConsecutive(entries []facts.RawFact) []facts.RawFact {
	if len(entries) == 0 {
		return entries
	}
	out := []facts.RawFact{entries[0]}
	for _, e := range entries[1:] {
		if e.Value == out[len(out)-1].Value {
			continue
		}
		out = append(out, e)
	}
	return out
}

// assignIntervals gives each entry start_time = its own message_timestamp
// and end_time = the next entry's message_timestamp (∅ for the last).
func assignIntervals(entries []facts.RawFact) []facts.TimedFact {
	out := make([]facts.TimedFact, len(entries))
	for i, e := range entries {
		tf := facts.TimedFact{
			Key:       e.Key,
			Value:     e.Value,
			Source:    e.Source,
			StartTime: e.MessageTimestamp,
		}
		if i+1 < len(entries) {
			end := entries[i+1].MessageTimestamp
			tf.EndTime = &end
		}
		out[i] = tf
	}
	return out
}
