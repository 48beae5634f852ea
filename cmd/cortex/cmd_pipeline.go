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
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexmemory/cortex/pkg/concurrency"
	"github.com/cortexmemory/cortex/pkg/ingest"
	"github.com/cortexmemory/cortex/pkg/pipeline"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the ingestion pipeline over transcripts",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run <source>",
	Short: "Process a single transcript file through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineRun,
}

var pipelineBackfillCmd = &cobra.Command{
	Use:   "backfill <dir>",
	Short: "Process every .jsonl file in a directory, sorted and RAM-guarded",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineBackfill,
}

var pipelineIngestHostCmd = &cobra.Command{
	Use:   "ingest-host <host-dir>",
	Short: "Process the most recently modified session file under a host's session directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineIngestHost,
}

func init() {
	pipelineCmd.AddCommand(pipelineRunCmd, pipelineBackfillCmd, pipelineIngestHostCmd)
}

func runPipelineRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lock, err := acquireLock(cfg, "pipeline-run")
	if err != nil {
		return newTransientError(fmt.Sprintf("acquire lock: %v", err))
	}
	if lock == nil {
		return newTransientError("another process holds the cortex lock")
	}
	defer lock.Release()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	path := args[0]
	raw, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read %s: %v", path, err))
	}
	info, err := os.Stat(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("stat %s: %v", path, err))
	}

	sourceID := filepath.Base(path)
	outcome, err := a.orchestrator.ProcessSource(ctx, sourceID, raw, info.ModTime().Unix(), true)
	if err != nil {
		return newTransientError(fmt.Sprintf("process %s: %v", sourceID, err))
	}

	runLearningPass(ctx, a, sourceID, raw)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sourceID, outcome)
	return nil
}

func runPipelineBackfill(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lock, err := acquireLock(cfg, "pipeline-backfill")
	if err != nil {
		return newTransientError(fmt.Sprintf("acquire lock: %v", err))
	}
	if lock == nil {
		return newTransientError("another process holds the cortex lock")
	}
	defer lock.Release()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	batch := pipeline.BatchConfig{
		MaxSessionsPerRun: cfg.Guards.MaxSessionsPerRun,
		MinFreeMB:         cfg.Guards.MinFreeMB,
	}
	result, err := a.orchestrator.RunBackfill(ctx, args[0], "", batch)
	if err != nil {
		return newUsageError(fmt.Sprintf("backfill %s: %v", args[0], err))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "done=%d skipped=%d failed=%d aborted=%v\n",
		result.Done, result.Skipped, result.Failed, result.Aborted)
	return nil
}

func runPipelineIngestHost(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lock, err := acquireLock(cfg, "pipeline-ingest-host")
	if err != nil {
		return newTransientError(fmt.Sprintf("acquire lock: %v", err))
	}
	if lock == nil {
		return newTransientError("another process holds the cortex lock")
	}
	defer lock.Release()

	ok, freeMB, err := concurrency.CheckMemory(cfg.Guards.MinFreeMB)
	if err == nil && !ok {
		return newTransientError(fmt.Sprintf("below MIN_FREE_MB: %d < %d", freeMB, cfg.Guards.MinFreeMB))
	}

	latest, err := latestSessionFile(args[0])
	if err != nil {
		return newUsageError(err.Error())
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	raw, err := os.ReadFile(latest)
	if err != nil {
		return newUsageError(fmt.Sprintf("read %s: %v", latest, err))
	}
	info, err := os.Stat(latest)
	if err != nil {
		return newUsageError(fmt.Sprintf("stat %s: %v", latest, err))
	}

	sourceID := "host:" + filepath.Base(latest)
	outcome, err := a.orchestrator.ProcessSource(ctx, sourceID, raw, info.ModTime().Unix(), true)
	if err != nil {
		return newTransientError(fmt.Sprintf("process %s: %v", sourceID, err))
	}

	runLearningPass(ctx, a, sourceID, raw)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", sourceID, outcome)
	return nil
}

// latestSessionFile finds the most recently modified *.jsonl file in dir,
// the "most recently modified session file for this host" behavior named
// for the session-end hook in the external interfaces surface.
func latestSessionFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read host session dir %s: %w", dir, err)
	}

	type candidate struct {
		path    string
		modUnix int64
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{filepath.Join(dir, e.Name()), info.ModTime().Unix()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no session files found under %s", dir)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modUnix > candidates[j].modUnix })
	return candidates[0].path, nil
}

// runLearningPass decodes raw once more for the learning extractor, which
// scans the same normalized messages the pipeline just committed facts
// from. A decode failure here is non-fatal: the fact commit already
// succeeded, and learning is best-effort enrichment.
func runLearningPass(ctx context.Context, a *app, sourceID string, raw []byte) {
	messages, err := (ingest.JSONLAdapter{}).Decode(sourceID, raw)
	if err != nil {
		return
	}
	_, _ = a.learner.Run(ctx, sourceID, messages)
}
