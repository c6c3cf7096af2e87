package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/prepcost/internal/recipe"
)

// Permissions.
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Costing CostingConfig     `yaml:"costing"`
	Access  AccessConfig      `yaml:"access"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Costing.Validate(); err != nil {
		return err
	}
	return c.Access.Validate()
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

// CostingConfig holds the recipe costing rules.
//
// ValidationMode is the yield enforcement used when SettingsFile is unset,
// missing, or broken. SettingsFile, when set, is watched and overrides it
// at runtime.
type CostingConfig struct {
	ValidationMode recipe.Mode         `yaml:"validation_mode"`
	PricingBasis   recipe.PricingBasis `yaml:"pricing_basis"`
	SettingsFile   string              `yaml:"settings_file"`
}

// Validate validates the costing configuration.
func (c *CostingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ValidationMode, validation.Required,
			validation.In(recipe.ModeBlock, recipe.ModeNotify, recipe.ModePermit)),
		validation.Field(&c.PricingBasis, validation.Required,
			validation.In(recipe.BasisKilogram, recipe.BasisEach)),
	)
}

// AccessConfig holds the caller's permission.
//
// Permission controls which operations are available:
//   - "edit" (default): everything, including opening edit sessions and saving.
//   - "view": reads and computations only.
type AccessConfig struct {
	Permission string `yaml:"permission"`
}

// Validate validates the access configuration.
func (c *AccessConfig) Validate() error {
	if c.Permission == "" {
		c.Permission = PermissionEdit
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Permission, validation.Required, validation.In(PermissionView, PermissionEdit)),
	)
}

// CanEdit reports whether reconciliation operations are allowed.
func (c *AccessConfig) CanEdit() bool {
	return c.Permission == PermissionEdit
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
			Path: "./prepcost.db",
		},
		Costing: CostingConfig{
			ValidationMode: recipe.ModeNotify,
			PricingBasis:   recipe.BasisKilogram,
		},
		Access: AccessConfig{
			Permission: PermissionEdit,
		},
	}
}
