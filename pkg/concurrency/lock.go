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

// Package concurrency is the Concurrency Gate: cross-process singleton
// locks with PID liveness and staleness TTL, and a RAM preflight check,
// so that multiple hooks triggered at once don't stampede the store.
package concurrency

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"
)

// Lock is a JSON record at a well-known path: {pid, acquired_at_epoch_ms, owner}.
type Lock struct {
	PID          int    `json:"pid"`
	AcquiredAtMs int64  `json:"acquired_at_epoch_ms"`
	Owner        string `json:"owner"`
	path         string
}

// StaleTTL bounds how long a lock record is honored without a liveness
// check succeeding. Hooks use the shorter end (5 min), background
// workers the longer end (10 min) per §4.K.
const (
	StaleTTLHook   = 5 * time.Minute
	StaleTTLWorker = 10 * time.Minute
)

// Acquire implements the §4.K acquisition protocol: write-if-absent,
// steal-if-stale, steal-if-owner-dead, otherwise refuse. Returns nil,
// nil (no error, nil lock) when another live owner holds it.
func Acquire(path, owner string, staleTTL time.Duration) (*Lock, error) {
	existing, err := readLock(path)
	switch {
	case err != nil && !os.IsNotExist(err):
		return nil, fmt.Errorf("read lock %s: %w", path, err)
	case err == nil:
		age := time.Since(time.UnixMilli(existing.AcquiredAtMs))
		if age <= staleTTL && processAlive(existing.PID) {
			return nil, nil
		}
	}

	lock := &Lock{
		PID:          os.Getpid(),
		AcquiredAtMs: time.Now().UnixMilli(),
		Owner:        owner,
		path:         path,
	}
	if err := lock.write(); err != nil {
		return nil, err
	}
	return lock, nil
}

// Release removes the lock file. Safe to call even if the lock was
// already removed.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}

func (l *Lock) write() error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	if err := os.WriteFile(l.path, b, 0o600); err != nil {
		return fmt.Errorf("write lock %s: %w", l.path, err)
	}
	return nil
}

func readLock(path string) (*Lock, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Lock
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, fmt.Errorf("parse lock %s: %w", path, err)
	}
	l.path = path
	return &l, nil
}

// processAlive sends signal 0 to pid, the standard liveness probe: it
// performs permission/existence checks without actually signaling the
// process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
