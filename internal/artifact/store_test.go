// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

package artifact_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumora/resumora/internal/artifact"
	"github.com/resumora/resumora/pkg/uuidv7"
)

func newTestStore(t *testing.T) (*artifact.Store, string) {
	t.Helper()

	root := t.TempDir()
	store, err := artifact.NewStore(root, slog.Default())
	require.NoError(t, err)
	return store, root
}

/*
TestStore_WriteBundle verifies the bundle layout: a slugged directory with
the record and the static shell, overwritten in place on rewrite.
*/
func TestStore_WriteBundle(t *testing.T) {
	store, root := newTestStore(t)
	jobID := uuidv7.New()
	recordJSON := []byte(`{"personalInfo":{"name":"Jane Smith"}}`)

	bundleName, err := store.WriteBundle(jobID, "Jane Smith", recordJSON)
	require.NoError(t, err)
	assert.Equal(t, "jane-smith-"+artifact.ShortID(jobID), bundleName)

	written, err := os.ReadFile(filepath.Join(root, bundleName, "resume.json"))
	require.NoError(t, err)
	assert.JSONEq(t, string(recordJSON), string(written))

	shell, err := os.ReadFile(filepath.Join(root, bundleName, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(shell), "resume.json")

	// Rewriting the same job replaces the bundle instead of duplicating it.
	again, err := store.WriteBundle(jobID, "Jane Smith", []byte(`{"personalInfo":{"name":"Jane Q Smith"}}`))
	require.NoError(t, err)
	assert.Equal(t, bundleName, again)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

/*
TestStore_WriteBundle_NameFallback verifies unusable names still produce a
directory.
*/
func TestStore_WriteBundle_NameFallback(t *testing.T) {
	store, _ := newTestStore(t)
	jobID := uuidv7.New()

	bundleName, err := store.WriteBundle(jobID, "!!!", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "resume-"+artifact.ShortID(jobID), bundleName)
}

/*
TestStore_Check verifies the writability probe leaves no residue.
*/
func TestStore_Check(t *testing.T) {
	store, root := newTestStore(t)

	require.NoError(t, store.Check())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

/*
TestStore_Purge verifies orphan removal honors both the live set and the
age grace window.
*/
func TestStore_Purge(t *testing.T) {
	store, root := newTestStore(t)

	liveJob := uuidv7.New()
	deadJob := uuidv7.New()

	liveBundle, err := store.WriteBundle(liveJob, "Jane Smith", []byte(`{}`))
	require.NoError(t, err)
	deadBundle, err := store.WriteBundle(deadJob, "John Doe", []byte(`{}`))
	require.NoError(t, err)

	t.Run("fresh_orphan_survives_grace", func(t *testing.T) {
		removed, err := store.Purge([]string{liveJob}, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Zero(t, removed)
		assert.DirExists(t, filepath.Join(root, deadBundle))
	})

	t.Run("aged_orphan_removed", func(t *testing.T) {
		removed, err := store.Purge([]string{liveJob}, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
		assert.NoDirExists(t, filepath.Join(root, deadBundle))
		assert.DirExists(t, filepath.Join(root, liveBundle))
	})

	t.Run("idempotent", func(t *testing.T) {
		removed, err := store.Purge([]string{liveJob}, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, removed)
	})
}
