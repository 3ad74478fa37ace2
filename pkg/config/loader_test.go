package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, Load(""))

	assert.Equal(t, int64(1024*1024), viper.GetInt64("chunk.size"))
	assert.Equal(t, "aes-256-gcm", viper.GetString("cipher.algorithm"))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, "sqlite", viper.GetString("database.type"))
	assert.Equal(t, 24*time.Hour, viper.GetDuration("cache.ttl"))
	assert.Equal(t, ".hb", filepath.Base(RepoDir()))
}

func TestLoad_FileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	content := `
chunk:
  size: 4096
storage:
  type: s3
  s3:
    bucket: hb-test
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))
	t.Setenv("HB_CIPHER_ALGORITHM", "chacha20-poly1305")

	require.NoError(t, Load(cfgFile))

	assert.Equal(t, int64(4096), viper.GetInt64("chunk.size"))
	assert.Equal(t, "s3", viper.GetString("storage.type"))
	assert.Equal(t, "hb-test", viper.GetString("storage.s3.bucket"))
	assert.Equal(t, "chacha20-poly1305", viper.GetString("cipher.algorithm"))
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("chunk:\n  size: -1\n"), 0o644))

	assert.ErrorContains(t, Load(cfgFile), "chunk.size must be positive")

	viper.Reset()
	require.NoError(t, os.WriteFile(cfgFile, []byte("storage:\n  type: ftp\n"), 0o644))
	assert.ErrorContains(t, Load(cfgFile), "unsupported storage type")

	viper.Reset()
	require.NoError(t, os.WriteFile(cfgFile, []byte("chunk: [unterminated\n"), 0o644))
	assert.ErrorContains(t, Load(cfgFile), "fatal error config file")
}
