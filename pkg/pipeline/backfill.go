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
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cortexmemory/cortex/internal/log"
	"github.com/cortexmemory/cortex/pkg/concurrency"
)

// BatchConfig bounds a backfill run: MAX_SESSIONS_PER_RUN and
// MIN_FREE_MB per §4.H/§4.K.
type BatchConfig struct {
	MaxSessionsPerRun int
	MinFreeMB         int
}

// DefaultBatchConfig matches the defaults named in §6: 50 sessions per
// run, a 300-500MB free-memory floor (this picks the middle of that
// range).
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{MaxSessionsPerRun: 50, MinFreeMB: 400}
}

// BatchResult tallies one backfill run's outcomes.
type BatchResult struct {
	Done    int
	Skipped int
	Failed  int
	Aborted bool // true if the run stopped early on a memory guard
}

// RunBackfill processes every *.jsonl file in dir, in sorted order,
// checking free memory before each file and stopping after
// MaxSessionsPerRun files. SourceIDs are the file's base name, prefixed
// by sourcePrefix (e.g. "gemini:") to keep ledger identity distinct
// between adapters per §3's external-state note.
func (o *Orchestrator) RunBackfill(ctx context.Context, dir, sourcePrefix string, batch BatchConfig) (BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("read backfill dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var result BatchResult
	processed := 0
	for _, name := range files {
		if processed >= batch.MaxSessionsPerRun {
			log.Logger().Info("pipeline: backfill stopping, reached MAX_SESSIONS_PER_RUN",
				zap.Int("limit", batch.MaxSessionsPerRun))
			break
		}

		ok, freeMB, err := concurrency.CheckMemory(batch.MinFreeMB)
		if err != nil {
			log.Logger().Warn("pipeline: memory check failed, proceeding anyway", zap.Error(err))
		} else if !ok {
			log.Logger().Warn("pipeline: aborting backfill, below MIN_FREE_MB",
				zap.Int("free_mb", freeMB), zap.Int("min_free_mb", batch.MinFreeMB))
			result.Aborted = true
			break
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Logger().Error("pipeline: failed to read backfill file", zap.String("path", path), zap.Error(err))
			result.Failed++
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			log.Logger().Error("pipeline: failed to stat backfill file", zap.String("path", path), zap.Error(err))
			result.Failed++
			continue
		}

		sourceID := sourcePrefix + name
		outcome, err := o.ProcessSource(ctx, sourceID, raw, info.ModTime().Unix(), false)
		processed++
		switch outcome {
		case OutcomeDone:
			result.Done++
		case OutcomeSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
		if err != nil {
			log.Logger().Error("pipeline: backfill file failed", zap.String("path", path), zap.Error(err))
		}
	}
	return result, nil
}
