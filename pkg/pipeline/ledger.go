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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Ledger is the processed-source ledger: an append-only
// `<source-id>|<mtime>` text file used only for idempotency, never for
// content. A fresh Ledger loads the whole file into memory once; entries
// are appended both to the in-memory map and to disk as sources are
// marked processed.
type Ledger struct {
	path    string
	mu      sync.Mutex
	entries map[string]int64 // source-id -> mtime unix seconds
}

// OpenLedger loads path if it exists, or starts empty if it doesn't.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string]int64)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.LastIndexByte(line, '|')
		if idx < 0 {
			continue
		}
		mtime, err := strconv.ParseInt(line[idx+1:], 10, 64)
		if err != nil {
			continue
		}
		l.entries[line[:idx]] = mtime
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	return l, nil
}

// IsProcessed reports whether sourceID was already processed at exactly
// mtime (a changed mtime means the source should be reprocessed).
func (l *Ledger) IsProcessed(sourceID string, mtimeUnix int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	recorded, ok := l.entries[sourceID]
	return ok && recorded == mtimeUnix
}

// MarkProcessed appends (or updates) sourceID's entry, both in memory
// and on disk.
func (l *Ledger) MarkProcessed(sourceID string, mtimeUnix int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[sourceID] = mtimeUnix

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s for append: %w", l.path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s|%d\n", sourceID, mtimeUnix); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
