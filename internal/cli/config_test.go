package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mirrorctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server_url: http://localhost:8080
token: secret-token
owner_id: owner-1
mirror_path: /tmp/mirror.db
interval: 10s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "secret-token", cfg.Token)
	assert.Equal(t, "owner-1", cfg.OwnerID)
	assert.Equal(t, "/tmp/mirror.db", cfg.MirrorPath)
	assert.Equal(t, 10*time.Second, cfg.Interval)
}

func TestLoadConfigDefaultInterval(t *testing.T) {
	path := writeConfig(t, `
server_url: http://localhost:8080
owner_id: owner-1
mirror_path: /tmp/mirror.db
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing server_url",
			body:    "owner_id: o\nmirror_path: /tmp/m.db\n",
			wantErr: "server_url is required",
		},
		{
			name:    "missing owner_id",
			body:    "server_url: http://localhost:8080\nmirror_path: /tmp/m.db\n",
			wantErr: "owner_id is required",
		},
		{
			name:    "missing mirror_path",
			body:    "server_url: http://localhost:8080\nowner_id: o\n",
			wantErr: "mirror_path is required",
		},
		{
			name:    "bad interval",
			body:    "server_url: http://localhost:8080\nowner_id: o\nmirror_path: /tmp/m.db\ninterval: soon\n",
			wantErr: "parse interval",
		},
		{
			name:    "malformed yaml",
			body:    "server_url: [unclosed\n",
			wantErr: "parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}
