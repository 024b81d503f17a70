package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"dsn": "postgres://u:p@localhost/lib?sslmode=disable"},
		"embedding": {"provider": "openai", "model": "all-MiniLM-L6-v2"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, 10, cfg.Database.PoolSize)
	require.Equal(t, 20, cfg.Database.MaxOverflow)
	require.Equal(t, 384, cfg.Embedding.Dimension)
	require.Equal(t, 500, cfg.Chunking.Size)
	require.Equal(t, 50, cfg.Chunking.Overlap)
	require.Equal(t, 50, cfg.Chunking.MinLen)
	require.Equal(t, 30, cfg.Embedding.RetryInterval)
	require.Equal(t, 100, cfg.Ingest.FlushSize)
	require.Equal(t, 150, cfg.Render.DPI)
	require.Equal(t, "./pdfs", cfg.Storage.LocalDir)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.False(t, cfg.RemoteEnabled())
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "db", "max_overflow": 0},
		"embedding": {"provider": "openai"},
		"chunking": {"size": 300, "overlap": 0, "min_len": 0}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Zero(t, cfg.Database.MaxOverflow)
	require.Zero(t, cfg.Chunking.Overlap)
	require.Zero(t, cfg.Chunking.MinLen)
	require.Equal(t, 300, cfg.Chunking.Size)
	require.Equal(t, 10, cfg.Database.PoolSize)
}

func TestLoadRemoteWithoutCredentialsIsDisabled(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "db"},
		"embedding": {"provider": "gemini"},
		"storage": {"remote": {"endpoint": "https://s3.example.com"}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.False(t, cfg.RemoteEnabled())
	require.Equal(t, "us-east-1", cfg.Storage.Remote.Region)
}

func TestLoadRemoteEnabled(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"host": "db"},
		"embedding": {"provider": "gemini"},
		"storage": {"remote": {"endpoint": "https://s3.example.com", "secret_id": "id", "secret_key": "key"}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.RemoteEnabled())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing database", body: `{"embedding": {"provider": "openai"}}`},
		{name: "missing provider", body: `{"database": {"host": "db"}}`},
		{name: "overlap too large", body: `{"database": {"host": "db"}, "embedding": {"provider": "openai"}, "chunking": {"size": 100, "overlap": 60}}`},
		{name: "negative overlap", body: `{"database": {"host": "db"}, "embedding": {"provider": "openai"}, "chunking": {"overlap": -1}}`},
		{name: "negative max overflow", body: `{"database": {"host": "db", "max_overflow": -2}, "embedding": {"provider": "openai"}}`},
		{name: "bad json", body: `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}
