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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cortexmemory/cortex/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - persistent memory consolidation engine for conversational agents",
	Long: `Cortex turns raw conversation transcripts into a durable, searchable
fact store and a set of learned behavioral instincts.`,
}

// Execute runs the root command, mapping the returned error (if any) to
// the CLI surface's exit codes: 0 success, 1 usage/fatal, 2 transient.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CORTEX_DATA_DIR/cortex.yaml)")

	rootCmd.PersistentFlags().String("llm-provider", "ollama", "LLM provider")
	rootCmd.PersistentFlags().String("llm-endpoint", "http://localhost:11434", "LLM provider endpoint")
	rootCmd.PersistentFlags().String("llm-model", "", "chat model name")
	rootCmd.PersistentFlags().String("embedding-model", "", "embedding model name")
	rootCmd.PersistentFlags().Int("embedding-dimension", 0, "embedding vector dimension (0 = provider default)")

	rootCmd.PersistentFlags().Bool("dedup-enabled", true, "enable semantic deduplication")
	rootCmd.PersistentFlags().Float64("dedup-threshold", 0.85, "dedup cosine-similarity threshold")

	rootCmd.PersistentFlags().Float64("search-vector-weight", 0.7, "hybrid search vector weight")
	rootCmd.PersistentFlags().Float64("search-bm25-weight", 0.3, "hybrid search BM25 weight")

	rootCmd.PersistentFlags().Int("min-free-mb", 512, "minimum free RAM (MB) required to run a heavy stage")
	rootCmd.PersistentFlags().Int("max-sessions-per-run", 50, "maximum sessions processed per backfill run")

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.endpoint", rootCmd.PersistentFlags().Lookup("llm-endpoint"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))
	_ = viper.BindPFlag("embedding.model", rootCmd.PersistentFlags().Lookup("embedding-model"))
	_ = viper.BindPFlag("embedding.dimension", rootCmd.PersistentFlags().Lookup("embedding-dimension"))
	_ = viper.BindPFlag("dedup.enabled", rootCmd.PersistentFlags().Lookup("dedup-enabled"))
	_ = viper.BindPFlag("dedup.similarity_threshold", rootCmd.PersistentFlags().Lookup("dedup-threshold"))
	_ = viper.BindPFlag("search.vector_weight", rootCmd.PersistentFlags().Lookup("search-vector-weight"))
	_ = viper.BindPFlag("search.bm25_weight", rootCmd.PersistentFlags().Lookup("search-bm25-weight"))
	_ = viper.BindPFlag("guards.min_free_mb", rootCmd.PersistentFlags().Lookup("min-free-mb"))
	_ = viper.BindPFlag("guards.max_sessions_per_run", rootCmd.PersistentFlags().Lookup("max-sessions-per-run"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(instinctCmd)
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
