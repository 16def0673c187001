package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kippnorcal/zoom/internal/config"
)

func TestDialectorByType(t *testing.T) {
	for _, typ := range []string{"postgres", "mssql", "sqlite"} {
		d, err := Dialector(&config.Config{DBType: typ, DBName: "zoom"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}

	_, err := Dialector(&config.Config{DBType: "oracle"})
	assert.ErrorContains(t, err, "oracle")
}

func TestConnectSQLite(t *testing.T) {
	cfg := &config.Config{DBType: "sqlite", DBName: filepath.Join(t.TempDir(), "zoom.db")}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.NoError(t, Ping(db))
}
