package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/adrkb/internal/apperr"
	"github.com/starford/adrkb/internal/models"
	"github.com/starford/adrkb/internal/repository"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// ConfigFiles are the file names looked up by Locate, in order.
var ConfigFiles = []string{".adrkb.yml", ".adrkb.yaml", ".adrkb.toml"}

// Folders commonly used for ADRs, tried by GuessADRFolder.
var usualADRFolders = []string{
	"docs/adr",
	"docs/adrs",
	"docs/architecture-decisions",
	"doc/adr",
	"doc/adrs",
	"doc/architecture-decisions",
	"adr",
	"adrs",
	"architecture-decisions",
}

var packageNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Project ProjectConfig     `yaml:"project" toml:"project"`
	SQLite  SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// ProjectConfig describes the knowledge base: its name, time zone, the global
// ADR folder and the per-package folders. Paths are relative to the directory
// holding the configuration file.
type ProjectConfig struct {
	Name      string          `yaml:"name" toml:"name"`
	TZ        string          `yaml:"tz" toml:"tz"`
	ADRFolder string          `yaml:"adrFolder" toml:"adrFolder"`
	Packages  []PackageConfig `yaml:"packages,omitempty" toml:"packages,omitempty"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.TZ, validation.Required, validation.By(func(v any) error {
			tz, _ := v.(string)
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("unknown time zone %q", tz)
			}
			return nil
		})),
		validation.Field(&c.ADRFolder, validation.Required),
		validation.Field(&c.Packages),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Packages))
	for _, p := range c.Packages {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("project: package %q declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Location returns the configured time zone.
func (c *ProjectConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("project: time zone: %w", err)
	}
	return loc, nil
}

// Folders resolves the ADR folders against baseDir, the global folder first
// and packages in declaration order.
func (c *ProjectConfig) Folders(baseDir string) ([]repository.Folder, error) {
	abs := func(p string) (string, error) {
		if filepath.IsAbs(p) {
			return filepath.Clean(p), nil
		}
		return filepath.Abs(filepath.Join(baseDir, p))
	}
	global, err := abs(c.ADRFolder)
	if err != nil {
		return nil, fmt.Errorf("project: resolve adr folder: %w", err)
	}
	out := []repository.Folder{{Path: global, Package: models.Global}}
	for _, p := range c.Packages {
		dir, err := abs(p.ADRFolder)
		if err != nil {
			return nil, fmt.Errorf("project: resolve %s adr folder: %w", p.Name, err)
		}
		out = append(out, repository.Folder{Path: dir, Package: models.PackageRef(p.Name)})
	}
	return out, nil
}

// PackageConfig is one package owning its own ADR folder.
type PackageConfig struct {
	Name      string `yaml:"name" toml:"name"`
	Path      string `yaml:"path" toml:"path"`
	ADRFolder string `yaml:"adrFolder" toml:"adrFolder"`
}

// Validate implements validation.Validatable.
func (c PackageConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Match(packageNameRe)),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ADRFolder, validation.Required),
	)
}

// SQLiteConfig holds SQLite search index configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token,omitempty" toml:"token,omitempty"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
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
		Project: ProjectConfig{
			TZ:        "UTC",
			ADRFolder: "docs/adr",
		},
		SQLite: SQLiteConfig{
			Path: ".adrkb/index.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

// Locate finds the configuration file in dir or its closest parent.
func Locate(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("config: locate: %w", err)
	}
	for {
		for _, name := range ConfigFiles {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("config: locate: %w", err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("config: no %s found: %w", ConfigFiles[0], apperr.ErrNotFound)
		}
		dir = parent
	}
}

// GuessADRFolder returns the first usual ADR folder existing below baseDir,
// or "docs/adr" when none does.
func GuessADRFolder(baseDir string) string {
	for _, p := range usualADRFolders {
		if info, err := os.Stat(filepath.Join(baseDir, p)); err == nil && info.IsDir() {
			return p
		}
	}
	return "docs/adr"
}
