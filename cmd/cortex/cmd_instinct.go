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
	"sort"

	"github.com/spf13/cobra"
)

var instinctCmd = &cobra.Command{
	Use:   "instinct",
	Short: "Inspect and manage learned behavioral instincts",
}

var instinctDomain string

var instinctListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active instincts, optionally filtered to one domain",
	Args:  cobra.NoArgs,
	RunE:  runInstinctList,
}

var instinctShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a single instinct's full detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstinctShow,
}

var (
	instinctExtractCommit     bool
	instinctExtractMinConfide float64
)

var instinctExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Recompute instincts from cases and patterns already in the store",
	Args:  cobra.NoArgs,
	RunE:  runInstinctExtract,
}

var instinctDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete an instinct",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstinctDelete,
}

var instinctStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show instinct counts by domain",
	Args:  cobra.NoArgs,
	RunE:  runInstinctStats,
}

func init() {
	instinctListCmd.Flags().StringVar(&instinctDomain, "domain", "", "restrict to this domain")

	instinctExtractCmd.Flags().BoolVar(&instinctExtractCommit, "store", false, "persist the recomputed instincts instead of only printing them")
	instinctExtractCmd.Flags().Float64Var(&instinctExtractMinConfide, "min-confidence", 0, "override the configured minimum confidence (0 = use config)")

	instinctCmd.AddCommand(instinctListCmd, instinctShowCmd, instinctExtractCmd, instinctDeleteCmd, instinctStatsCmd)
}

func runInstinctList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	instincts, err := a.service.ListInstincts(ctx, instinctDomain)
	if err != nil {
		return newTransientError(fmt.Sprintf("list instincts: %v", err))
	}
	for _, in := range instincts {
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-30s conf=%.2f  %s\n", in.Domain, in.Trigger, in.Confidence, in.Action)
	}
	return nil
}

func runInstinctShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	in, err := a.service.ShowInstinct(ctx, args[0])
	if err != nil {
		return newUsageError(err.Error())
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}

func runInstinctExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	minConfidence := instinctExtractMinConfide
	if minConfidence <= 0 {
		minConfidence = cfg.Learning.MinConfidence
	}

	instincts, err := a.service.ExtractInstincts(ctx, minConfidence, instinctExtractCommit)
	if err != nil {
		return newTransientError(fmt.Sprintf("extract instincts: %v", err))
	}

	for _, in := range instincts {
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-30s conf=%.2f  %s\n", in.Domain, in.Trigger, in.Confidence, in.Action)
	}
	if instinctExtractCommit {
		fmt.Fprintf(cmd.OutOrStdout(), "stored %d instincts\n", len(instincts))
	}
	return nil
}

func runInstinctDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	if err := a.service.DeleteInstinct(ctx, args[0]); err != nil {
		return newTransientError(fmt.Sprintf("delete %q: %v", args[0], err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runInstinctStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	instincts, err := a.service.ListInstincts(ctx, "")
	if err != nil {
		return newTransientError(fmt.Sprintf("list instincts: %v", err))
	}

	counts := make(map[string]int)
	for _, in := range instincts {
		counts[in.Domain]++
	}
	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		fmt.Fprintf(cmd.OutOrStdout(), "%-15s %d\n", d, counts[d])
	}
	return nil
}
