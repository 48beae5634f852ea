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
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDir returns the cortex data directory.
//
// Priority:
//  1. CORTEX_DATA_DIR environment variable (if set and non-empty)
//  2. ~/.cortex (default)
//
// The returned path is absolute, except that the relative ".cortex" is
// returned when the home directory cannot be determined. Tilde (~) in CORTEX_DATA_DIR is
// expanded to the user's home directory. Relative paths are made absolute
// against the current working directory.
//
// This is read directly from os.Getenv(), not from viper, so it can locate
// the config file itself before viper is initialized.
func DataDir() string {
	if dataDir := os.Getenv("CORTEX_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return filepath.Join(homeDir, ".cortex")
}

// SubDir returns a subdirectory within the cortex data directory.
func SubDir(name string) string {
	return filepath.Join(DataDir(), name)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}
