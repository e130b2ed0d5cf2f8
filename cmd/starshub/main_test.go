package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kidlearn/stars-hub/config"
)

func TestHashKeyCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hash-key", "s3cret"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestLoadConfig_StoreFlagOverridesEnv(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_STORE", "postgres")
	t.Setenv("DATABASE_URL", "")

	require.NoError(t, rootCmd.ParseFlags([]string{"--store", "memory", "--env-file", "", "--config", t.TempDir()}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, cfg.App.Store)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GAME_MONTHLY_TARGET=12\nLOG_FORMAT=text\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("GAME_MONTHLY_TARGET")
		_ = os.Unsetenv("LOG_FORMAT")
	})

	require.NoError(t, rootCmd.ParseFlags([]string{"--store", "memory", "--env-file", envFile, "--config", dir}))

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Gamification.MonthlyTarget)
	assert.NotNil(t, setupLogger(cfg))
}

func TestLoadConfig_MissingEnvFileIsFine(t *testing.T) {
	require.NoError(t, rootCmd.ParseFlags([]string{"--store", "memory", "--env-file", filepath.Join(t.TempDir(), "absent.env")}))

	_, err := loadConfig(rootCmd)
	assert.NoError(t, err)
}
