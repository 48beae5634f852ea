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
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	resetViper(t)
	_ = os.Setenv("CORTEX_DATA_DIR", t.TempDir())
	defer os.Unsetenv("CORTEX_DATA_DIR")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Digest.MinCountForL0)
	assert.Equal(t, 15, cfg.Digest.MaxCategoriesInL0)
	assert.Equal(t, 0.85, cfg.Dedup.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Dedup.MaxCandidates)
	assert.Equal(t, 0.3, cfg.Search.VectorThreshold)
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, 512, cfg.Guards.MinFreeMB)
	assert.Equal(t, 600, cfg.Lock.StaleTTLSeconds)
	assert.Equal(t, 0.5, cfg.Learning.MinConfidence)
	assert.Contains(t, cfg.Categories, "user")
	assert.Contains(t, cfg.Categories, "agent")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	resetViper(t)
	_ = os.Setenv("CORTEX_DATA_DIR", t.TempDir())
	_ = os.Setenv("CORTEX_DEDUP_SIMILARITY_THRESHOLD", "0.95")
	defer func() {
		os.Unsetenv("CORTEX_DATA_DIR")
		os.Unsetenv("CORTEX_DEDUP_SIMILARITY_THRESHOLD")
	}()

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.Dedup.SimilarityThreshold)
}

func TestDefaultDBPathUnderDataDir(t *testing.T) {
	dir := t.TempDir()
	_ = os.Setenv("CORTEX_DATA_DIR", dir)
	defer os.Unsetenv("CORTEX_DATA_DIR")

	assert.Equal(t, dir+"/cortex.db", DefaultDBPath())
}
