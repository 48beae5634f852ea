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
package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_sources.ledger")

	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.False(t, l.IsProcessed("session:1", 1000))

	require.NoError(t, l.MarkProcessed("session:1", 1000))
	require.True(t, l.IsProcessed("session:1", 1000))
	require.False(t, l.IsProcessed("session:1", 2000))

	l2, err := OpenLedger(path)
	require.NoError(t, err)
	require.True(t, l2.IsProcessed("session:1", 1000))
}

func TestLedgerDistinguishesAdapterPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_sources.ledger")
	l, err := OpenLedger(path)
	require.NoError(t, err)

	require.NoError(t, l.MarkProcessed("session:1", 1000))
	require.NoError(t, l.MarkProcessed("gemini:session:1", 1000))

	require.True(t, l.IsProcessed("session:1", 1000))
	require.True(t, l.IsProcessed("gemini:session:1", 1000))
}
