package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the app's configuration. It's read from a json or yaml file, and
// MINITWEET_* environment variables (also read from a .env file) override the file.
type Config struct {
	Port      int            `json:"port" yaml:"port" env:"MINITWEET_PORT"`
	Env       string         `json:"env" yaml:"env" env:"MINITWEET_ENV"`
	Pepper    string         `json:"pepper" yaml:"pepper" env:"MINITWEET_PEPPER"`
	HMACKey   string         `json:"hmac_key" yaml:"hmac_key" env:"MINITWEET_HMAC_KEY"`
	CSRFKey   string         `json:"csrf_key" yaml:"csrf_key" env:"MINITWEET_CSRF_KEY"`
	ClientURL string         `json:"client_url" yaml:"client_url" env:"MINITWEET_CLIENT_URL"`
	Database  PostgresConfig `json:"database" yaml:"database"`
	Github    GithubConfig   `json:"github" yaml:"github"`
}

// IsProd tells whether the app runs in production.
func (c Config) IsProd() bool {
	return c.Env == "prod"
}

// Validate checks the settings the app can't start without.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if len(c.CSRFKey) != 32 {
		return errors.New("config: csrf_key must be 32 bytes long")
	}
	if c.HMACKey == "" {
		return errors.New("config: hmac_key is required")
	}
	u, err := url.Parse(c.ClientURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid client_url %q", c.ClientURL)
	}
	return nil
}

type PostgresConfig struct {
	Host     string `json:"host" yaml:"host" env:"MINITWEET_DB_HOST"`
	Port     int    `json:"port" yaml:"port" env:"MINITWEET_DB_PORT"`
	User     string `json:"user" yaml:"user" env:"MINITWEET_DB_USER"`
	Password string `json:"password" yaml:"password" env:"MINITWEET_DB_PASSWORD"`
	Name     string `json:"name" yaml:"name" env:"MINITWEET_DB_NAME"`
}

func (pc PostgresConfig) ConnectionInfo() string {
	if pc.Password == "" {
		return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable", pc.Host, pc.Port, pc.User, pc.Name)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable", pc.Host, pc.Port, pc.User, pc.Password, pc.Name)
}

// GithubConfig holds the credentials of the Github oauth app. An empty ID disables
// signing in with Github.
type GithubConfig struct {
	ID          string `json:"id" yaml:"id" env:"MINITWEET_GITHUB_ID"`
	Secret      string `json:"secret" yaml:"secret" env:"MINITWEET_GITHUB_SECRET"`
	RedirectURL string `json:"redirect_url" yaml:"redirect_url" env:"MINITWEET_GITHUB_REDIRECT_URL"`
}

func DefaultConfig() Config {
	return Config{
		Port:      8080,
		Env:       "dev",
		Pepper:    "secret-random-string",
		HMACKey:   "secret-hmac-key",
		CSRFKey:   "dev-csrf-key-of-exactly-32-bytes",
		ClientURL: "http://localhost:3000",
		Database:  DefaultPostgresConfig(),
	}
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		Host: "localhost",
		Port: 5432,
		User: "postgres",
		Name: "minitweet",
	}
}

// LoadConfig reads the config file at path on top of the defaults. Outside production
// a missing file means the default dev setup. In production the file is required.
func LoadConfig(path string, isProd bool) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}

	c := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !isProd:
	case err != nil:
		return Config{}, fmt.Errorf("config: %w", err)
	default:
		if err := decodeConfig(path, data, &c); err != nil {
			return Config{}, err
		}
	}

	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("config: reading environment: %w", err)
	}
	if isProd {
		c.Env = "prod"
	}
	return c, c.Validate()
}

func decodeConfig(path string, data []byte, c *Config) error {
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}
