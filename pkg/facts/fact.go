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

// Package facts defines the Fact data model: the atomic unit of memory
// persisted by the store, plus the normalized key grammar and the typed
// decoders for the agent-learning sub-entities (Case, Pattern, Instinct).
package facts

import (
	"fmt"
	"strings"
	"time"
)

// Fact is a single (key, value) row with a temporal validity interval.
// Primary identity is (Key, StartTime). At most one row per Key has a nil
// EndTime — that row is the active value for Key.
type Fact struct {
	ID         int64
	Key        string
	Value      string
	Source     string
	StartTime  time.Time
	EndTime    *time.Time
	Embedding  []float32
}

// Active reports whether this row is the currently active value for its key.
func (f Fact) Active() bool {
	return f.EndTime == nil
}

// RawFact is a fact as produced by the extractor, before temporal alignment:
// it carries the transcript timestamp it was observed at instead of a
// resolved [start,end) interval.
type RawFact struct {
	Key              string
	Value            string
	Source           string
	MessageTimestamp time.Time
}

// TimedFact is a RawFact after temporal alignment: it has a resolved
// interval but has not yet been committed to the store.
type TimedFact struct {
	Key       string
	Value     string
	Source    string
	StartTime time.Time
	EndTime   *time.Time
}

// DefaultCategories is the enumerated set of valid first-segment key categories.
// Implementations MUST treat this as configuration, not a compiled-in list
// (spec open question: the extractor prompt's category set varies between
// source versions); DefaultCategories is the superset used when no
// configuration overrides it.
var DefaultCategories = []string{
	"user", "project", "task", "system", "config", "preference", "location",
	"tool", "agent", "workflow", "team", "environment", "model", "auth",
	"channel", "gateway", "plugin", "binding", "command", "meta", "error",
	"correction", "event", "entity", "inferred",
}

// pluralAliases maps a plural category form to its singular canonical form.
var pluralAliases = map[string]string{
	"users": "user", "projects": "project", "tasks": "task",
	"systems": "system", "configs": "config", "preferences": "preference",
	"locations": "location", "tools": "tool", "agents": "agent",
	"workflows": "workflow", "teams": "team", "environments": "environment",
	"models": "model", "auths": "auth", "channels": "channel",
	"gateways": "gateway", "plugins": "plugin", "bindings": "binding",
	"commands": "command", "metas": "meta", "errors": "error",
	"corrections": "correction", "events": "event", "entities": "entity",
}

// NormalizeKey coerces '/' separators to '.', lowercases the key, and
// aliases a plural first segment to its singular form. It does not validate
// the category against a known set — that is the caller's job via
// ValidKey, since the category set is configuration.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, "/", ".")
	segments := strings.Split(key, ".")
	if len(segments) == 0 {
		return key
	}
	if singular, ok := pluralAliases[segments[0]]; ok {
		segments[0] = singular
	}
	return strings.Join(segments, ".")
}

// ValidKey reports whether key matches the normalized key grammar
// <category>(.<segment>)+ against the supplied category set.
func ValidKey(key string, categories []string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	segments := strings.Split(key, ".")
	if len(segments) < 2 {
		return fmt.Errorf("key %q must have at least one category and one segment", key)
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("key %q has an empty segment", key)
		}
	}
	category := segments[0]
	for _, c := range categories {
		if c == category {
			return nil
		}
	}
	return fmt.Errorf("key %q has unrecognized category %q", key, category)
}

// Category returns the first dotted segment of key, used for aggregation.
func Category(key string) string {
	if idx := strings.IndexByte(key, '.'); idx >= 0 {
		return key[:idx]
	}
	return key
}

// Segment returns the zero-indexed dotted segment of key, or "" if it does
// not have that many segments.
func Segment(key string, idx int) string {
	segments := strings.Split(key, ".")
	if idx < 0 || idx >= len(segments) {
		return ""
	}
	return segments[idx]
}
