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

// Scheduler drives the Aggregator's daily/weekly jobs on a standard cron
// schedule, grounded on pkg/scheduler/scheduler.go's cron.New()/AddFunc
// idiom from the teacher (the file itself imported a generated-protobuf
// package absent from this tree, so only the pattern was carried over,
// not the code).
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cortexmemory/cortex/internal/log"
)

// Scheduler runs the Aggregator's daily/weekly/rolling jobs on a
// cron schedule, writing rendered markdown under outputDir.
type Scheduler struct {
	aggregator *Aggregator
	outputDir  string
	cron       *cron.Cron
}

// NewScheduler builds a Scheduler writing artifacts under outputDir.
func NewScheduler(aggregator *Aggregator, outputDir string) *Scheduler {
	return &Scheduler{
		aggregator: aggregator,
		outputDir:  outputDir,
		cron:       cron.New(),
	}
}

// Start registers the daily (every day at 00:10), weekly (Monday at
// 00:20) and rolling (every day at 00:30) jobs and starts the cron
// scheduler's background goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("10 0 * * *", s.runDaily); err != nil {
		return fmt.Errorf("register daily job: %w", err)
	}
	if _, err := s.cron.AddFunc("20 0 * * 1", s.runWeekly); err != nil {
		return fmt.Errorf("register weekly job: %w", err)
	}
	if _, err := s.cron.AddFunc("30 0 * * *", s.runRolling); err != nil {
		return fmt.Errorf("register rolling job: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDaily() {
	ctx := context.Background()
	content, err := s.aggregator.DailyLog(ctx, time.Now().UTC())
	if err != nil {
		log.Logger().Error("aggregate: daily job failed", zap.Error(err))
		return
	}
	path := filepath.Join(s.outputDir, "daily", time.Now().UTC().Format("2006-01-02")+".md")
	if err := writeFile(path, content); err != nil {
		log.Logger().Error("aggregate: failed to write daily log", zap.Error(err))
	}
}

func (s *Scheduler) runWeekly() {
	ctx := context.Background()
	year, week := time.Now().UTC().ISOWeek()
	artifacts, err := s.aggregator.WeeklySnapshot(ctx, year, week)
	if err != nil {
		log.Logger().Error("aggregate: weekly job failed", zap.Error(err))
		return
	}
	dir := filepath.Join(s.outputDir, "weekly", fmt.Sprintf("%d-W%02d", year, week))
	for name, content := range artifacts {
		if err := writeFile(filepath.Join(dir, name+".md"), content); err != nil {
			log.Logger().Error("aggregate: failed to write weekly artifact", zap.String("name", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) runRolling() {
	ctx := context.Background()
	artifacts, err := s.aggregator.RollingTopicFiles(ctx)
	if err != nil {
		log.Logger().Error("aggregate: rolling job failed", zap.Error(err))
		return
	}
	dir := filepath.Join(s.outputDir, "topics")
	for name, content := range artifacts {
		if err := writeFile(filepath.Join(dir, name+".md"), content); err != nil {
			log.Logger().Error("aggregate: failed to write topic file", zap.String("name", name), zap.Error(err))
		}
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
