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

// Package aggregate is the Aggregator: it reads only the store's active
// set and produces fully-regenerable artifacts — the digest, daily logs,
// weekly snapshots, rolling per-category topic files, and an index —
// none of which the pipeline ever reads back.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/observability"
	"github.com/cortexmemory/cortex/pkg/store"
)

// CategorySummary is one category's slice of the digest.
type CategorySummary struct {
	Count   int
	Samples []facts.Fact // up to 3
}

// Digest is the compact cross-category snapshot named in §4.I.
type Digest struct {
	GeneratedAt time.Time
	TotalFacts  int
	Categories  map[string]CategorySummary
}

// Aggregator produces regenerable artifacts from a fact store's active set.
type Aggregator struct {
	store  *store.Store
	tracer observability.Tracer
}

// New builds an Aggregator over st.
func New(st *store.Store, tracer observability.Tracer) *Aggregator {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Aggregator{store: st, tracer: tracer}
}

// BuildDigest groups the active set by its first key segment and
// samples up to 3 facts per category.
func (a *Aggregator) BuildDigest(ctx context.Context) (Digest, error) {
	ctx, span := a.tracer.StartSpan(ctx, "aggregate.build_digest")
	defer a.tracer.EndSpan(span)

	all, err := a.store.ActiveAll(ctx)
	if err != nil {
		span.RecordError(err)
		return Digest{}, fmt.Errorf("list active facts: %w", err)
	}

	categories := make(map[string]CategorySummary)
	for _, f := range all {
		cat := facts.Category(f.Key)
		summary := categories[cat]
		summary.Count++
		if len(summary.Samples) < 3 {
			summary.Samples = append(summary.Samples, f)
		}
		categories[cat] = summary
	}

	return Digest{
		GeneratedAt: time.Now().UTC(),
		TotalFacts:  len(all),
		Categories:  categories,
	}, nil
}

// Summary renders the one-line text the Query API's `summary` operation
// returns: date, total, and the top categories by count.
func (d Digest) Summary() string {
	type catCount struct {
		name  string
		count int
	}
	var counts []catCount
	for name, s := range d.Categories {
		counts = append(counts, catCount{name, s.Count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})

	top := counts
	if len(top) > 5 {
		top = top[:5]
	}
	var topStr string
	for i, c := range top {
		if i > 0 {
			topStr += ", "
		}
		topStr += fmt.Sprintf("%s(%d)", c.name, c.count)
	}

	return fmt.Sprintf("%s — %d facts — top categories: %s",
		d.GeneratedAt.Format("2006-01-02"), d.TotalFacts, topStr)
}
