package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := LoadConfig("missing.json", false)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), c)
	require.False(t, c.IsProd())
}

func TestLoadConfigRequiresFileInProd(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := LoadConfig("missing.json", true)
	require.Error(t, err)
}

func TestLoadConfigJSON(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, "config.json", `{
		"port": 9000,
		"csrf_key": "0123456789abcdef0123456789abcdef",
		"client_url": "https://minitweet.example",
		"database": {"host": "db", "name": "tweets"}
	}`)

	c, err := LoadConfig(path, true)
	require.NoError(t, err)
	require.True(t, c.IsProd())
	require.Equal(t, 9000, c.Port)
	require.Equal(t, "https://minitweet.example", c.ClientURL)
	require.Equal(t, "db", c.Database.Host)
	// Unset values keep their defaults.
	require.Equal(t, 5432, c.Database.Port)
	require.Equal(t, "host=db port=5432 user=postgres dbname=tweets sslmode=disable", c.Database.ConnectionInfo())
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeFile(t, "config.yaml", "port: 9001\ngithub:\n  id: gh-id\n  secret: gh-secret\n")
	t.Setenv("MINITWEET_PORT", "9002")
	t.Setenv("MINITWEET_DB_PASSWORD", "hunter2")

	c, err := LoadConfig(path, false)
	require.NoError(t, err)
	require.Equal(t, 9002, c.Port)
	require.Equal(t, "gh-id", c.Github.ID)
	require.Contains(t, c.Database.ConnectionInfo(), "password=hunter2")

	gh := githubOAuth(c.Github)
	require.NotNil(t, gh)
	require.Equal(t, "gh-secret", gh.ClientSecret)
	require.Nil(t, githubOAuth(GithubConfig{}))
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MINITWEET_CLIENT_URL=http://app.localhost:5173\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MINITWEET_CLIENT_URL") })

	c, err := LoadConfig("missing.json", false)
	require.NoError(t, err)
	require.Equal(t, "http://app.localhost:5173", c.ClientURL)
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "short csrf key", modify: func(c *Config) { c.CSRFKey = "short" }},
		{name: "no hmac key", modify: func(c *Config) { c.HMACKey = "" }},
		{name: "bad port", modify: func(c *Config) { c.Port = 0 }},
		{name: "relative client url", modify: func(c *Config) { c.ClientURL = "/app" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.modify(&c)
			require.Error(t, c.Validate())
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate", "delete-user"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, cmd.Name())
	}

	root.SetArgs([]string{"delete-user"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	require.ErrorContains(t, root.Execute(), `required flag(s) "id" not set`)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir on older toolchains).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
