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
package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNoise(t *testing.T) {
	cfg := DefaultNoiseConfig()

	noisy := []string{
		"hi",
		"ok",
		"short",
		strings.Repeat("a", 6000),
		"I don't have data on that",
		"Do you remember what I said earlier?",
		"```\nfmt.Println(\"hi\")\n```",
		`{"status":"ok"}`,
		"2026-07-31T10:00:00 INFO starting worker",
		"# Section heading",
		"- a bullet point",
		"你好",
		"没有相关数据",
	}
	for _, text := range noisy {
		assert.True(t, IsNoise(text, cfg), "expected noise: %q", text)
	}

	signal := []string{
		"My name is Alice and I work at Acme Corp as a backend engineer.",
		"The deploy pipeline broke because the staging database migration failed halfway through.",
		"我们决定把发布日期推迟到下周五，因为数据库迁移还没完成。",
	}
	for _, text := range signal {
		assert.False(t, IsNoise(text, cfg), "expected signal: %q", text)
	}
}

func TestFilterMessages(t *testing.T) {
	cfg := DefaultNoiseConfig()
	messages := []Message{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleAssistant, Text: "My name is Alice and I live in Taipei."},
		{Role: RoleUser, Text: "ok thanks"},
	}
	filtered := FilterMessages(messages, cfg)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "My name is Alice and I live in Taipei.", filtered[0].Text)
}
