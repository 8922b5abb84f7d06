package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/ignore"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Tree    TreeConfig        `yaml:"tree"`
	Hash    HashConfig        `yaml:"hash"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Archive ArchiveConfig     `yaml:"archive"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Tree.Validate(); err != nil {
		return err
	}
	if err := c.Hash.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// TreeConfig selects the directory tree served by the application.
type TreeConfig struct {
	Root        string `yaml:"root"`
	ExcludeFile string `yaml:"exclude_file"`
}

// Validate validates the tree configuration.
func (c *TreeConfig) Validate() error {
	if c.ExcludeFile == "" {
		c.ExcludeFile = ignore.DefaultFile
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.ExcludeFile, validation.Required),
	)
}

// HashConfig selects the content hash algorithm.
type HashConfig struct {
	Algorithm string `yaml:"algorithm"`
}

// Validate validates the hash configuration.
func (c *HashConfig) Validate() error {
	names := checksum.Names()
	allowed := make([]interface{}, len(names))
	for i, n := range names {
		allowed[i] = n
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Algorithm, validation.In(allowed...)),
	)
}

// Resolve returns the configured algorithm. An empty name selects the default.
func (c *HashConfig) Resolve() (checksum.Algorithm, error) {
	return checksum.Lookup(c.Algorithm)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ArchiveConfig holds archive output configuration. An empty Dir means the
// system temporary directory.
type ArchiveConfig struct {
	Dir string `yaml:"dir"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Tree: TreeConfig{
			Root:        ".",
			ExcludeFile: ignore.DefaultFile,
		},
		Hash: HashConfig{
			Algorithm: checksum.Default.Name,
		},
		SQLite: SQLiteConfig{
			Path: "./dirtools.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
