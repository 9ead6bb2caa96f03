package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 4316, cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "", cfg.Server.ClientProxyURL)
	assert.Equal(t, "./client/dist/", cfg.Server.StaticFileRoot)
	assert.Equal(t, "index.html", cfg.Server.StaticFileIndex)
	assert.Equal(t, 3600, cfg.Server.HTTPCachingMaxAge)
	assert.True(t, cfg.Server.OpenBrowser)
	assert.Equal(t, "./content", cfg.Files.ContentDirectory)
	assert.Equal(t, "./text", cfg.Files.EditDirectory)
	assert.Equal(t, "data/companion.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Empty(t, cfg.ClientOptions)
	assert.Equal(t, "127.0.0.1:4316", cfg.Server.Address())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4316, cfg.Server.Port)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
  cors_allowed_origins:
    - http://localhost:5173
  open_browser: false
files:
  content_directory: /srv/songs
client_options:
  theme: dark
  columns: 2
  nested:
    enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.CORSAllowedOrigins)
	assert.False(t, cfg.Server.OpenBrowser)
	assert.Equal(t, "/srv/songs", cfg.Files.ContentDirectory)
	// Unset keys keep their defaults.
	assert.Equal(t, "./text", cfg.Files.EditDirectory)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Server.BaseURL())

	data, err := cfg.ClientOptionsJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","columns":2,"nested":{"enabled":true}}`, string(data))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("COMPANION_SERVER_PORT", "9100")
	t.Setenv("COMPANION_SERVER_CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("COMPANION_FILES_EDIT_DIRECTORY", "/tmp/edit")
	t.Setenv("COMPANION_DATABASE_DB_PATH", "/tmp/audit.db")
	t.Setenv("COMPANION_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "/tmp/edit", cfg.Files.EditDirectory)
	assert.Equal(t, "/tmp/audit.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 65536 }},
		{"negative max age", func(c *Config) { c.Server.HTTPCachingMaxAge = -1 }},
		{"zero message size", func(c *Config) { c.Server.MaxMessageBytes = 0 }},
		{"bad proxy scheme", func(c *Config) { c.Server.ClientProxyURL = "ftp://localhost" }},
		{"unparsable proxy", func(c *Config) { c.Server.ClientProxyURL = "http://[::1" }},
		{"missing index", func(c *Config) { c.Server.StaticFileIndex = "" }},
		{"missing content dir", func(c *Config) { c.Files.ContentDirectory = "" }},
		{"missing edit dir", func(c *Config) { c.Files.EditDirectory = "" }},
		{"missing database", func(c *Config) { c.Database.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("proxy mode does not need an index", func(t *testing.T) {
		cfg := Default()
		cfg.Server.ClientProxyURL = "http://localhost:5173"
		cfg.Server.StaticFileIndex = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestClientOptions_Holder(t *testing.T) {
	cfg := Default()
	cfg.ClientOptions = map[string]interface{}{"a": 1}

	holder, err := NewClientOptions(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(holder.Load()))

	next := Default()
	next.ClientOptions = map[string]interface{}{"b": []interface{}{"x"}}
	require.NoError(t, holder.Update(next))
	assert.JSONEq(t, `{"b":["x"]}`, string(holder.Load()))

	// A value JSON cannot encode leaves the previous options in place.
	bad := Default()
	bad.ClientOptions = map[string]interface{}{"ch": make(chan int)}
	assert.Error(t, holder.Update(bad))
	assert.JSONEq(t, `{"b":["x"]}`, string(holder.Load()))

	var empty ClientOptions
	assert.JSONEq(t, `{}`, string(empty.Load()))
}
