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
package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueryFTS5MatchesActiveRowsOnly(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Upsert(ctx, "user.editor.primary", "vscode editor", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "secret.api_key", "unrelated value", "session:1", time.UnixMilli(1000))
	require.NoError(t, err)

	hits, err := s.QueryFTS5(ctx, `"vscode"`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "user.editor.primary", hits[0].Fact.Key)

	// Superseding the row removes the old value from the index; the new
	// value becomes searchable instead.
	_, err = s.Upsert(ctx, "user.editor.primary", "vim editor", "session:2", time.UnixMilli(2000))
	require.NoError(t, err)

	hits, err = s.QueryFTS5(ctx, `"vscode"`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 0)

	hits, err = s.QueryFTS5(ctx, `"vim"`, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
