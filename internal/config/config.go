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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

// ServiceName is the keyring service namespace secrets are stored under.
const ServiceName = "cortex"

// DefaultConfigFileName is the base name (without extension) cortex looks
// for alongside CORTEX_DATA_DIR, the working directory, and /etc/cortex/.
const DefaultConfigFileName = "cortex"

// Config holds every tunable named in the external interfaces surface.
// Priority: CLI flags > env vars ("CORTEX_" prefix) > config file > these
// defaults.
type Config struct {
	DataDir string `mapstructure:"-"`

	Digest       DigestConfig        `mapstructure:"digest"`
	Dedup        DedupConfig         `mapstructure:"dedup"`
	Search       SearchConfig        `mapstructure:"search"`
	Embedding    EmbeddingConfig     `mapstructure:"embedding"`
	Guards       GuardsConfig        `mapstructure:"guards"`
	Lock         LockConfig          `mapstructure:"lock"`
	Learning     LearningConfig      `mapstructure:"learning"`
	LLM          LLMConfig           `mapstructure:"llm"`
	Logging      LoggingConfig       `mapstructure:"logging"`
	Categories   []string            `mapstructure:"categories"`
	TypeMappings map[string][]string `mapstructure:"type_mappings"`
}

// DigestConfig holds the digest display settings. The Aggregator does not
// read them; its digest layout is fixed in pkg/aggregate.
type DigestConfig struct {
	MinCountForL0     int      `mapstructure:"min_count_for_l0"`
	MaxCategoriesInL0 int      `mapstructure:"max_categories_in_l0"`
	ShownCategories   []string `mapstructure:"shown_categories"`
	PinnedKeys        []string `mapstructure:"pinned_keys"`
}

// DedupConfig tunes the Semantic Deduper.
type DedupConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxCandidates      int     `mapstructure:"max_candidates"`
}

// SearchConfig tunes the Hybrid Search fusion weights.
type SearchConfig struct {
	VectorThreshold float64 `mapstructure:"vector_threshold"`
	VectorWeight    float64 `mapstructure:"vector_weight"`
	BM25Weight      float64 `mapstructure:"bm25_weight"`
	BM25Bonus       float64 `mapstructure:"bm25_bonus"`
}

// EmbeddingConfig names the embedding provider and its shape.
type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	Dimension int    `mapstructure:"dimension"`
	BatchSize int    `mapstructure:"batch_size"`
	APIKey    string `mapstructure:"api_key"`
}

// GuardsConfig tunes the Concurrency Gate's resource preflight.
type GuardsConfig struct {
	MinFreeMB         int `mapstructure:"min_free_mb"`
	MaxSessionsPerRun int `mapstructure:"max_sessions_per_run"`
}

// LockConfig tunes the lock file's staleness window.
type LockConfig struct {
	StaleTTLSeconds int `mapstructure:"stale_ttl_seconds"`
}

// LearningConfig tunes the Learning Extractor.
type LearningConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

// LLMConfig names the chat/embedding provider and its credentials.
type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig tunes the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// secretMapping ties a config field to the keyring key that can fill it
// when the field is left empty by flags/file/env.
type secretMapping struct {
	KeyringKey string
	IsSet      func(*Config) bool
	Setter     func(*Config, string)
}

func secretMappings() []secretMapping {
	return []secretMapping{
		{
			KeyringKey: "llm-api-key",
			IsSet:      func(c *Config) bool { return c.LLM.APIKey != "" },
			Setter:     func(c *Config, v string) { c.LLM.APIKey = v },
		},
		{
			KeyringKey: "embedding-api-key",
			IsSet:      func(c *Config) bool { return c.Embedding.APIKey != "" },
			Setter:     func(c *Config, v string) { c.Embedding.APIKey = v },
		},
	}
}

// LoadConfig loads configuration from flags (already bound to viper by the
// caller), environment variables ("CORTEX_" prefix, with the dots of a
// nested key written as underscores), a config file, and these defaults,
// in that priority order, then fills any still-empty secret fields from
// the OS keyring.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(DataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/cortex/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("CORTEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.DataDir = DataDir()

	loadSecretsFromKeyring(&cfg)
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("digest.min_count_for_l0", 5)
	viper.SetDefault("digest.max_categories_in_l0", 15)

	viper.SetDefault("dedup.enabled", true)
	viper.SetDefault("dedup.similarity_threshold", 0.85)
	viper.SetDefault("dedup.max_candidates", 5)

	viper.SetDefault("search.vector_threshold", 0.3)
	viper.SetDefault("search.vector_weight", 0.7)
	viper.SetDefault("search.bm25_weight", 0.3)
	viper.SetDefault("search.bm25_bonus", 0.15)

	viper.SetDefault("embedding.batch_size", 100)

	viper.SetDefault("guards.min_free_mb", 512)
	viper.SetDefault("guards.max_sessions_per_run", 50)

	viper.SetDefault("lock.stale_ttl_seconds", 600)

	viper.SetDefault("learning.min_confidence", 0.5)

	viper.SetDefault("llm.provider", "ollama")
	viper.SetDefault("llm.endpoint", "http://localhost:11434")
	viper.SetDefault("llm.timeout_seconds", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("categories", []string{
		"user", "project", "task", "system", "config", "preference", "location",
		"tool", "agent", "workflow", "team", "environment", "model", "auth",
		"channel", "gateway", "plugin", "binding", "command", "meta", "error",
		"correction", "event", "entity", "inferred",
	})
}

// loadSecretsFromKeyring fills any still-empty secret field from the OS
// keyring. Non-fatal: the keyring may be unavailable in CI/headless
// environments, in which case cfg keeps whatever flags/file/env supplied
// (possibly empty, which provider constructors reject at use time).
func loadSecretsFromKeyring(cfg *Config) {
	for _, mapping := range secretMappings() {
		if mapping.IsSet(cfg) {
			continue
		}
		value, err := keyring.Get(ServiceName, mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(cfg, value)
		}
	}
}

// defaultDBPath is the default fact-store database path under the data
// directory.
func defaultDBPath() string {
	return filepath.Join(DataDir(), "cortex.db")
}

// DefaultDBPath returns the default fact-store database path,
// <DataDir>/cortex.db.
func DefaultDBPath() string {
	return defaultDBPath()
}
