package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/extract"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/inbox"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Import ImportConfig      `yaml:"import"`
	Inbox  InboxConfig       `yaml:"inbox"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Import.Validate(); err != nil {
		return err
	}
	if err := c.Inbox.Validate(); err != nil {
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

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	// DefaultMode applies when a request does not name a mode.
	DefaultMode     string `yaml:"default_mode"`
	MaxPayloadBytes int    `yaml:"max_payload_bytes"`
	ExcerptMaxChars int    `yaml:"excerpt_max_chars"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultMode, validation.In(
			string(importer.ModeAuto), string(importer.ModeJSON), string(importer.ModeMarkup))),
		validation.Field(&c.MaxPayloadBytes, validation.Required, validation.Min(1)),
		validation.Field(&c.ExcerptMaxChars, validation.Required, validation.Min(1)),
	)
}

// Mode returns the parsed default mode.
func (c *ImportConfig) Mode() importer.Mode {
	m, err := importer.ParseMode(c.DefaultMode)
	if err != nil {
		return importer.ModeAuto
	}
	return m
}

// InboxConfig holds the watched drop directory configuration.
type InboxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Path         string `yaml:"path"`
	ProcessedDir string `yaml:"processed_dir"`
	FailedDir    string `yaml:"failed_dir"`
}

// Validate validates the inbox configuration. Paths are only required when
// the inbox is enabled.
func (c *InboxConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.ProcessedDir, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.FailedDir, validation.When(c.Enabled, validation.Required)),
	); err != nil {
		return err
	}
	if c.Enabled && c.FailedDir == c.ProcessedDir {
		return fmt.Errorf("inbox: failed_dir and processed_dir are both %q", c.FailedDir)
	}
	return nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
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
		SQLite: SQLiteConfig{
			Path: "./scribe.db",
		},
		Import: ImportConfig{
			DefaultMode:     string(importer.ModeAuto),
			MaxPayloadBytes: entryservice.DefaultMaxPayloadBytes,
			ExcerptMaxChars: extract.DefaultExcerptMaxChars,
		},
		Inbox: InboxConfig{
			Path:         "./inbox",
			ProcessedDir: inbox.DefaultProcessedDir,
			FailedDir:    inbox.DefaultFailedDir,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
