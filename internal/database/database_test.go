package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	t.Run("creates file database with tables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "watch.db")
		db, err := Open(&config.DatabaseConfig{Path: path, MaxConnections: 4, WALMode: true})
		require.NoError(t, err)

		assert.True(t, db.Migrator().HasTable(&History{}))
		assert.True(t, db.Migrator().HasTable(&Setting{}))
		assert.FileExists(t, path)
	})

	t.Run("opens memory database", func(t *testing.T) {
		db, err := Open(&config.DatabaseConfig{Path: MemoryPath})
		require.NoError(t, err)
		assert.True(t, db.Migrator().HasTable("history"))
	})
}

func TestSettingsStore(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Path: MemoryPath})
	require.NoError(t, err)
	store := NewSettingsStore(db)
	ctx := context.Background()

	t.Run("missing key is not an error", func(t *testing.T) {
		value, ok, err := store.Get(ctx, "language_mode")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})

	t.Run("set then overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "language_mode", "sub"))
		require.NoError(t, store.Set(ctx, "language_mode", "dub"))

		value, ok, err := store.Get(ctx, "language_mode")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "dub", value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "language_mode"))
		_, ok, err := store.Get(ctx, "language_mode")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
