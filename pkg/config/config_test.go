package config

import (
	"os"
	"path/filepath"
	"testing"

	"opcrdt/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Node.ID)
	assert.Equal(t, CodecJSON, cfg.Transport.Codec)
	assert.Equal(t, 3, cfg.Transport.Replicas)
	assert.Equal(t, 1, cfg.Transport.Copies)
	assert.Equal(t, storage.DefaultShards, cfg.Cache.Shards)
	assert.Equal(t, storage.DefaultScaleThreshold, cfg.Cache.ScaleThreshold)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "opcrdt", cfg.Metrics.Namespace)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
node:
  id: n1
transport:
  codec: none
  replicas: 5
cache:
  shards: 8
metrics:
  enabled: true
log:
  level: DEBUG
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "n1", cfg.Node.ID)
	assert.Equal(t, CodecNone, cfg.Transport.Codec)
	assert.Equal(t, 5, cfg.Transport.Replicas)
	assert.Equal(t, 1, cfg.Transport.Copies, "unset fields take defaults")
	assert.Equal(t, 8, cfg.Cache.Shards)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "opcrdt", cfg.Metrics.Namespace)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "codec", body: "transport:\n  codec: gob\n", want: ErrUnknownCodec},
		{name: "replicas", body: "transport:\n  replicas: -1\n", want: ErrInvalidReplicas},
		{name: "copies", body: "transport:\n  copies: -2\n", want: ErrInvalidCopies},
		{name: "shards", body: "cache:\n  shards: -4\n", want: ErrInvalidShards},
		{name: "log level", body: "log:\n  level: loud\n", want: ErrUnknownLogLevel},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoad_BadInput(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "transport: [unclosed"))
	assert.Error(t, err)
}

func TestValidate_Nil(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Validate(), ErrConfigIsNil)
}

func TestRead_ExampleConfig(t *testing.T) {
	cfg, err := Read(filepath.Join("..", "..", "cmd", "config.yaml"))
	require.NoError(t, err)
	cfg.PopulateDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "demo-node", cfg.Node.ID)
	assert.Equal(t, 2, cfg.Transport.Copies)
}
