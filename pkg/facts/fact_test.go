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
package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"User.Name", "user.name"},
		{"users.name", "user.name"},
		{"config/db_path", "config.db_path"},
		{"Projects/Root", "project.root"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeKey(c.in), "NormalizeKey(%q)", c.in)
	}
}

func TestValidKey(t *testing.T) {
	cats := DefaultCategories

	require.NoError(t, ValidKey("user.name", cats))
	require.NoError(t, ValidKey("agent.case.test_failure.abc123", cats))

	assert.Error(t, ValidKey("", cats))
	assert.Error(t, ValidKey("nocategory", cats))
	assert.Error(t, ValidKey("bogus.segment", cats))
	assert.Error(t, ValidKey("user.", cats))
}

func TestCategoryAndSegment(t *testing.T) {
	assert.Equal(t, "agent", Category("agent.case.test_failure.abc"))
	assert.Equal(t, "case", Segment("agent.case.test_failure.abc", 1))
	assert.Equal(t, "", Segment("agent.case.test_failure.abc", 99))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(1.5))
	assert.Equal(t, 0.6, ClampConfidence(0.6))
}

func TestCaseRoundTrip(t *testing.T) {
	c := Case{
		Problem: "test failed",
		Solution: CaseSolution{
			Tools:       []string{"Bash"},
			Actions:     []string{"re-ran with verbose flag"},
			Description: "fixed import path",
		},
		Outcome:   "resolved",
		Session:   "session-123",
		Timestamp: "2026-01-01T10:00:00Z",
	}
	value, err := c.MarshalValue()
	require.NoError(t, err)

	got, err := ParseCase(value)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
