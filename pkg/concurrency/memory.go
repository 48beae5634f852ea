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
package concurrency

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// FreeMemoryMB reports available memory in megabytes. On Linux it reads
// /proc/meminfo's MemAvailable; everywhere else (and if that file is
// unreadable) it falls back to a runtime.MemStats-derived estimate,
// which is far coarser but keeps the preflight check from hard-failing
// on non-Linux development machines.
func FreeMemoryMB() (int, error) {
	if mb, ok := freeMemoryFromProcMeminfo(); ok {
		return mb, nil
	}
	return freeMemoryFromRuntimeStats(), nil
}

func freeMemoryFromProcMeminfo() (int, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, false
		}
		return kb / 1024, true
	}
	return 0, false
}

// freeMemoryFromRuntimeStats approximates free memory as the inverse of
// the Go runtime's own reserved system memory. It systematically
// underestimates true system-free memory (it only sees this process),
// so it is a fallback of last resort, not a primary signal.
func freeMemoryFromRuntimeStats() int {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	usedMB := int(stats.Sys / (1024 * 1024))
	const assumedTotalMB = 2048
	free := assumedTotalMB - usedMB
	if free < 0 {
		return 0
	}
	return free
}

// CheckMemory reports whether free memory meets minFreeMB. Callers
// should log-and-abort (no-op) rather than treat a failure here as
// fatal.
func CheckMemory(minFreeMB int) (ok bool, freeMB int, err error) {
	freeMB, err = FreeMemoryMB()
	if err != nil {
		return false, 0, err
	}
	return freeMB >= minFreeMB, freeMB, nil
}
