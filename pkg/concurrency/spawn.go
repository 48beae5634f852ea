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
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// SpawnDetached starts name/args as a detached background process: a new
// session (so it survives the parent hook's exit), stdio fully
// redirected away from the parent's terminal. The caller is expected to
// write the lock file with the returned PID immediately and return
// within its wall-clock budget (≤2.5s for the hook entry point).
func SpawnDetached(name string, args []string, logPath string) (pid int, err error) {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("open devnull: %w", err)
	}
	cmd.Stdin = devNull

	if logPath != "" {
		logFile, ferr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return 0, fmt.Errorf("open worker log %s: %w", logPath, ferr)
		}
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	} else {
		cmd.Stdout = devNull
		cmd.Stderr = devNull
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start detached worker: %w", err)
	}
	return cmd.Process.Pid, nil
}
