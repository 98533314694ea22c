package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	path := writeConfig(t, "mail:\n  label: Bancos/Pending\nllm:\n  model: gemini-2.0-flash\n")

	cfg, err := loadConfig(&flags{configFile: path, label: "Bancos/Otro", model: "gemini-2.5-pro"})

	require.NoError(t, err)
	assert.Equal(t, "Bancos/Otro", cfg.Mail.Label)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM.Model)
}

func TestLoadConfigKeepsFileValues(t *testing.T) {
	path := writeConfig(t, "mail:\n  label: Bancos/Pending\n")

	cfg, err := loadConfig(&flags{configFile: path})

	require.NoError(t, err)
	assert.Equal(t, "Bancos/Pending", cfg.Mail.Label)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestRunReportsConfigErrors(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: sqlite\n")

	err := run(t.Context(), &flags{configFile: path})

	var cfgErr configError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "sqlite")
}

func TestRunMissingConfigFile(t *testing.T) {
	err := run(t.Context(), &flags{configFile: filepath.Join(t.TempDir(), "missing.yaml")})

	var cfgErr configError
	assert.True(t, errors.As(err, &cfgErr))
}
