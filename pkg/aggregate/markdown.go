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
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
)

const longValueThreshold = 120

// DailyLog renders every active row whose start_time falls on date,
// grouped by top-level category then by second key segment.
func (a *Aggregator) DailyLog(ctx context.Context, date time.Time) (string, error) {
	all, err := a.store.ActiveAll(ctx)
	if err != nil {
		return "", fmt.Errorf("list active facts: %w", err)
	}

	y, m, d := date.UTC().Date()
	var todays []facts.Fact
	for _, f := range all {
		fy, fm, fd := f.StartTime.UTC().Date()
		if fy == y && fm == m && fd == d {
			todays = append(todays, f)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Daily log — %s\n\n", date.Format("2006-01-02"))
	if len(todays) == 0 {
		b.WriteString("_No facts recorded on this date._\n")
		return b.String(), nil
	}
	renderGrouped(&b, todays)
	return b.String(), nil
}

// WeeklySnapshot renders one markdown document per category for the ISO
// week (isoYear, isoWeek), plus an index. Returns a map of category name
// (or "index") to rendered markdown.
func (a *Aggregator) WeeklySnapshot(ctx context.Context, isoYear, isoWeek int) (map[string]string, error) {
	all, err := a.store.ActiveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active facts: %w", err)
	}

	var inWeek []facts.Fact
	for _, f := range all {
		y, w := f.StartTime.UTC().ISOWeek()
		if y == isoYear && w == isoWeek {
			inWeek = append(inWeek, f)
		}
	}

	byCategory := make(map[string][]facts.Fact)
	for _, f := range inWeek {
		cat := facts.Category(f.Key)
		byCategory[cat] = append(byCategory[cat], f)
	}

	out := make(map[string]string)
	var counts []categoryCount
	for cat, fs := range byCategory {
		var b strings.Builder
		fmt.Fprintf(&b, "# Week %d-W%02d — %s\n\n", isoYear, isoWeek, cat)
		renderGrouped(&b, fs)
		out[cat] = b.String()
		counts = append(counts, categoryCount{cat, len(fs)})
	}
	out["index"] = renderIndex(fmt.Sprintf("Week %d-W%02d index", isoYear, isoWeek), counts)
	return out, nil
}

// RollingTopicFiles renders one markdown document per category across
// the entire active set: grouped by second segment, then by full key,
// showing the latest value and (when history exists) a truncated
// timeline table.
func (a *Aggregator) RollingTopicFiles(ctx context.Context) (map[string]string, error) {
	all, err := a.store.ActiveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active facts: %w", err)
	}

	byCategory := make(map[string][]facts.Fact)
	for _, f := range all {
		cat := facts.Category(f.Key)
		byCategory[cat] = append(byCategory[cat], f)
	}

	out := make(map[string]string)
	var counts []categoryCount
	for cat, fs := range byCategory {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", cat)

		bySecond := make(map[string][]facts.Fact)
		for _, f := range fs {
			bySecond[facts.Segment(f.Key, 1)] = append(bySecond[facts.Segment(f.Key, 1)], f)
		}
		var seconds []string
		for s := range bySecond {
			seconds = append(seconds, s)
		}
		sort.Strings(seconds)

		for _, s := range seconds {
			fmt.Fprintf(&b, "## %s\n\n", s)
			group := bySecond[s]
			sort.Slice(group, func(i, j int) bool { return group[i].Key < group[j].Key })
			for _, f := range group {
				history, err := a.store.History(ctx, f.Key)
				if err != nil {
					return nil, fmt.Errorf("history for %q: %w", f.Key, err)
				}
				renderKeyBlock(&b, f, history)
			}
		}
		out[cat] = b.String()
		counts = append(counts, categoryCount{cat, len(fs)})
	}
	out["index"] = renderIndex("Topic index", counts)
	return out, nil
}

type categoryCount struct {
	name  string
	count int
}

// renderIndex formats a category count table sorted by count descending.
func renderIndex(title string, counts []categoryCount) string {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n| Category | Count |\n|---|---:|\n", title)
	for _, c := range counts {
		fmt.Fprintf(&b, "| [%s](%s.md) | %d |\n", c.name, c.name, c.count)
	}
	return b.String()
}

func renderGrouped(b *strings.Builder, fs []facts.Fact) {
	byCategory := make(map[string][]facts.Fact)
	for _, f := range fs {
		byCategory[facts.Category(f.Key)] = append(byCategory[facts.Category(f.Key)], f)
	}
	var cats []string
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	for _, cat := range cats {
		fmt.Fprintf(b, "## %s\n\n", cat)
		bySecond := make(map[string][]facts.Fact)
		for _, f := range byCategory[cat] {
			bySecond[facts.Segment(f.Key, 1)] = append(bySecond[facts.Segment(f.Key, 1)], f)
		}
		var seconds []string
		for s := range bySecond {
			seconds = append(seconds, s)
		}
		sort.Strings(seconds)
		for _, s := range seconds {
			fmt.Fprintf(b, "### %s\n\n", s)
			for _, f := range bySecond[s] {
				renderValue(b, f.Key, f.Value)
			}
		}
	}
}

func renderValue(b *strings.Builder, key, value string) {
	if len(value) > longValueThreshold || looksLikeJSON(value) {
		fmt.Fprintf(b, "- `%s`:\n  ```\n  %s\n  ```\n", key, value)
		return
	}
	fmt.Fprintf(b, "- `%s`: %s\n", key, value)
}

func looksLikeJSON(v string) bool {
	if len(v) == 0 {
		return false
	}
	return (v[0] == '{' && v[len(v)-1] == '}') || (v[0] == '[' && v[len(v)-1] == ']')
}

// renderKeyBlock renders the latest value for f.Key plus, when history
// has more than one entry, a truncated timeline table.
func renderKeyBlock(b *strings.Builder, f facts.Fact, history []facts.Fact) {
	renderValue(b, f.Key, f.Value)
	if len(history) <= 1 {
		return
	}

	b.WriteString("\n  | start_time | value |\n  |---|---|\n")
	start := 0
	if len(history) > 5 {
		start = len(history) - 5
	}
	for _, h := range history[start:] {
		fmt.Fprintf(b, "  | %s | %s |\n", h.StartTime.Format(time.RFC3339), truncate(h.Value, 60))
	}
	b.WriteString("\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
