// Package settings serves the runtime costing settings from a YAML file that
// may be edited while the server runs.
package settings

import (
	"context"
	"fmt"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/prepcost/internal/recipe"
	"github.com/starford/prepcost/internal/session"
	"github.com/starford/prepcost/pkg/config"
)

// Values are the settings read from the file.
type Values struct {
	ValidationMode recipe.Mode `yaml:"validation_mode" json:"validation_mode"`
}

// Validate validates the settings.
func (v *Values) Validate() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.ValidationMode, validation.Required,
			validation.In(recipe.ModeBlock, recipe.ModeNotify, recipe.ModePermit)),
	)
}

// File holds the most recently loaded settings. A missing file means the
// defaults apply. While the file fails to parse or validate, ValidationMode
// reports the error, so the session uses its configured default mode; Values
// still returns the last good values for display.
type File struct {
	path     string
	defaults Values

	current atomic.Pointer[Values]
	lastErr atomic.Pointer[error]
}

var _ session.SettingsService = (*File)(nil)

// New returns a File reading path. Call Reload to read it.
func New(path string, defaults Values) *File {
	f := &File{path: path, defaults: defaults}
	d := defaults
	f.current.Store(&d)
	return f
}

// Path returns the watched file path.
func (f *File) Path() string {
	return f.path
}

// Reload reads the file again.
func (f *File) Reload() error {
	if f.path == "" {
		return nil
	}
	v := f.defaults
	if _, err := config.LoadOptional(f.path, &v); err != nil {
		err = fmt.Errorf("settings: %w", err)
		f.lastErr.Store(&err)
		return err
	}
	f.current.Store(&v)
	f.lastErr.Store(nil)
	return nil
}

// Values returns the current settings.
func (f *File) Values() Values {
	return *f.current.Load()
}

// ValidationMode returns the configured enforcement mode, or the error that
// made the file unreadable.
func (f *File) ValidationMode(context.Context) (recipe.Mode, error) {
	if err := f.lastErr.Load(); err != nil {
		return "", *err
	}
	return f.current.Load().ValidationMode, nil
}
