package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rflorenc/jenkins-mcp-server/internal/config"
	"github.com/rflorenc/jenkins-mcp-server/internal/models"
)

func clearJenkinsEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		config.EnvURL, config.EnvUsername, config.EnvPassword,
		config.EnvTimeout, config.EnvVerifySSL, config.EnvSessionSingleton,
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	clearJenkinsEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jenkins:
  url: https://file.example.com
  username: file-user
  password: file-pass
read_only: true
`), 0o600))
	t.Setenv(config.EnvUsername, "env-user")
	t.Setenv(config.EnvPassword, "env-pass")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path, "--jenkins-password", "flag-pass"}))

	cfg, err := loadConfig(fs, f)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", cfg.Jenkins.URL)
	assert.Equal(t, "env-user", cfg.Jenkins.Username)
	assert.Equal(t, "flag-pass", cfg.Jenkins.Password)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, config.TransportStdio, cfg.Server.Transport)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearJenkinsEnv(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f := config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}))

	_, err := loadConfig(fs, f)
	assert.Error(t, err)
}

func TestNewEnumerator(t *testing.T) {
	cfg := config.Default()
	e, err := newEnumerator(cfg)
	require.NoError(t, err)

	items := e.Enumerate([]any{
		map[string]any{"_class": "com.cloudbees.hudson.plugins.folder.Folder", "name": "team", "url": "u/team/"},
	}, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.KindFolder, items[0].Kind())

	cfg.Classification = []config.ClassificationRule{{Suffix: "Folder", Kind: "Job"}}
	e, err = newEnumerator(cfg)
	require.NoError(t, err)
	items = e.Enumerate([]any{
		map[string]any{"_class": "com.cloudbees.hudson.plugins.folder.Folder", "name": "team", "url": "u/team/"},
	}, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.KindJob, items[0].Kind())

	cfg.Classification = []config.ClassificationRule{{Suffix: "Folder", Kind: "Pipeline"}}
	_, err = newEnumerator(cfg)
	assert.Error(t, err)
}
