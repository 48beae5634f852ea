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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cortexmemory/cortex/pkg/facts"
	"github.com/cortexmemory/cortex/pkg/search"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Query and write facts in the memory store",
}

var memorySummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the compact digest summary",
	Args:  cobra.NoArgs,
	RunE:  runMemorySummary,
}

var (
	searchPrefix   string
	searchKeys     []string
	searchQuery    string
	searchLimit    int
	searchFormat   string
	searchType     string
	searchSubject  string
	searchMaxAgeDs int
	searchVerified bool
)

var memorySearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the active fact set by prefix, key list, or hybrid text query",
	Args:  cobra.NoArgs,
	RunE:  runMemorySearch,
}

var memoryStoreCmd = &cobra.Command{
	Use:   "store <key> <value>",
	Short: "Write a fact directly, bypassing extraction",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryStore,
}

func init() {
	memorySearchCmd.Flags().StringVar(&searchPrefix, "prefix", "", "return all active facts under this key prefix")
	memorySearchCmd.Flags().StringSliceVar(&searchKeys, "keys", nil, "return active facts for these exact keys")
	memorySearchCmd.Flags().StringVar(&searchQuery, "query", "", "hybrid BM25 text query")
	memorySearchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum results")
	memorySearchCmd.Flags().StringVar(&searchFormat, "format", "text", "output format: text, json, hook")
	memorySearchCmd.Flags().StringVar(&searchType, "type", "", "filter by mapped type name")
	memorySearchCmd.Flags().StringVar(&searchSubject, "subject", "", "filter to keys containing this substring")
	memorySearchCmd.Flags().IntVar(&searchMaxAgeDs, "max-age-days", 0, "drop facts older than this many days (0 = no limit)")
	memorySearchCmd.Flags().BoolVar(&searchVerified, "source-verified", false, "exclude inferred facts")

	memoryCmd.AddCommand(memorySummaryCmd, memorySearchCmd, memoryStoreCmd)
}

func runMemorySummary(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	summary, err := a.service.Summary(ctx)
	if err != nil {
		return newTransientError(fmt.Sprintf("build summary: %v", err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), summary)
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	if searchPrefix == "" && len(searchKeys) == 0 && searchQuery == "" {
		return newUsageError("one of --prefix, --keys, or --query is required")
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	q := search.Query{
		Prefix:         searchPrefix,
		Keys:           searchKeys,
		Text:           searchQuery,
		Limit:          searchLimit,
		Type:           searchType,
		Subject:        searchSubject,
		MaxAgeDays:     searchMaxAgeDs,
		SourceVerified: searchVerified,
	}

	if searchQuery != "" && a.embedder != nil {
		if vectors, err := a.embedder.Embed(ctx, []string{searchQuery}); err == nil && len(vectors) > 0 {
			q.Semantic = vectors[0]
		}
	}

	results, err := a.service.Search(ctx, q)
	if err != nil {
		return newTransientError(fmt.Sprintf("search: %v", err))
	}

	return printSearchResults(cmd, results, searchFormat)
}

func printSearchResults(cmd *cobra.Command, results []search.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "hook":
		var b strings.Builder
		for _, r := range results {
			fmt.Fprintf(&b, "%s: %s\n", r.Fact.Key, r.Fact.Value)
		}
		fmt.Fprint(cmd.OutOrStdout(), b.String())
		return nil
	case "text", "":
		for _, r := range results {
			fmt.Fprintf(cmd.OutOrStdout(), "%-40s %.3f  %s\n", r.Fact.Key, r.Score, r.Fact.Value)
		}
		return nil
	default:
		return newUsageError(fmt.Sprintf("unknown --format %q (want text, json, or hook)", format))
	}
}

func runMemoryStore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	key, value := args[0], args[1]
	if err := facts.ValidKey(key, cfg.Categories); err != nil {
		return newUsageError(err.Error())
	}

	fact, err := a.service.Store(ctx, key, value)
	if err != nil {
		return newTransientError(fmt.Sprintf("store %q: %v", key, err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "stored %s (id=%d)\n", fact.Key, fact.ID)
	return nil
}
