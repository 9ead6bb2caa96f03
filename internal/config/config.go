package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/lyric-companion/backend/internal/logging"
)

// EnvPrefix is the prefix of every environment override, e.g. COMPANION_SERVER_PORT.
const EnvPrefix = "COMPANION"

// DefaultPath is the config file read when no -config flag is given.
const DefaultPath = "config.yaml"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Files    FilesConfig    `yaml:"files" envconfig:"FILES"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Logging  logging.Config `yaml:"logging" envconfig:"LOGGING"`

	// ClientOptions is passed through to the browser client untouched. It is
	// the only section applied on reload without a restart.
	ClientOptions map[string]interface{} `yaml:"client_options" ignored:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host               string   `yaml:"host" envconfig:"HOST"`
	Port               int      `yaml:"port" envconfig:"PORT"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`
	// ClientProxyURL switches static hosting to a reverse proxy, for a client dev server.
	ClientProxyURL    string `yaml:"client_proxy_url" envconfig:"CLIENT_PROXY_URL"`
	StaticFileRoot    string `yaml:"static_file_root" envconfig:"STATIC_FILE_ROOT"`
	StaticFileIndex   string `yaml:"static_file_index" envconfig:"STATIC_FILE_INDEX"`
	HTTPCachingMaxAge int    `yaml:"http_caching_max_age" envconfig:"HTTP_CACHING_MAX_AGE"` // seconds
	OpenBrowser       bool   `yaml:"open_browser" envconfig:"OPEN_BROWSER"`
	MaxMessageBytes   int64  `yaml:"max_message_bytes" envconfig:"MAX_MESSAGE_BYTES"`
	ShutdownTimeout   int    `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"` // seconds
}

// FilesConfig contains the directories served to the client
type FilesConfig struct {
	ContentDirectory string `yaml:"content_directory" envconfig:"CONTENT_DIRECTORY"`
	EditDirectory    string `yaml:"edit_directory" envconfig:"EDIT_DIRECTORY"`
}

// DatabaseConfig contains the connection audit database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// Load loads configuration from file and environment variables. A missing
// file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.ClientOptions == nil {
		cfg.ClientOptions = map[string]interface{}{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               4316,
			CORSAllowedOrigins: []string{},
			StaticFileRoot:     "./client/dist/",
			StaticFileIndex:    "index.html",
			HTTPCachingMaxAge:  3600,
			OpenBrowser:        true,
			MaxMessageBytes:    1 << 20,
			ShutdownTimeout:    10,
		},
		Files: FilesConfig{
			ContentDirectory: "./content",
			EditDirectory:    "./text",
		},
		Database: DatabaseConfig{
			Path: "data/companion.db",
		},
		Logging:       logging.DefaultConfig(),
		ClientOptions: map[string]interface{}{},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.HTTPCachingMaxAge < 0 {
		return fmt.Errorf("http_caching_max_age must not be negative")
	}

	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}

	if c.Server.ClientProxyURL != "" {
		u, err := url.Parse(c.Server.ClientProxyURL)
		if err != nil {
			return fmt.Errorf("invalid client_proxy_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("client_proxy_url must be http or https: %s", c.Server.ClientProxyURL)
		}
	} else if c.Server.StaticFileIndex == "" {
		return fmt.Errorf("static_file_index is required")
	}

	if c.Files.ContentDirectory == "" {
		return fmt.Errorf("content_directory is required")
	}

	if c.Files.EditDirectory == "" {
		return fmt.Errorf("edit_directory is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if _, err := c.ClientOptionsJSON(); err != nil {
		return err
	}

	return nil
}

// ClientOptionsJSON encodes ClientOptions for the browser client.
func (c *Config) ClientOptionsJSON() (json.RawMessage, error) {
	if c.ClientOptions == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(c.ClientOptions)
	if err != nil {
		return nil, fmt.Errorf("client_options is not representable as JSON: %w", err)
	}
	return data, nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BaseURL returns the URL a browser on this machine uses to reach the server.
func (c *ServerConfig) BaseURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}
