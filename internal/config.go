package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/pipeline"
	"github.com/starford/codex/internal/schema"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig  `yaml:"app"`
	Root        string             `yaml:"root"`
	Output      OutputConfig       `yaml:"output"`
	Build       BuildConfig        `yaml:"build"`
	SQLite      SQLiteConfig       `yaml:"sqlite"`
	Auth        AuthConfig         `yaml:"auth"`
	Collections []CollectionConfig `yaml:"collections"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Collections, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if err := c.Build.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Collections))
	for i := range c.Collections {
		col := &c.Collections[i]
		if err := col.Validate(); err != nil {
			return fmt.Errorf("collections[%d]: %w", i, err)
		}
		name := col.ResolvedName()
		if seen[name] {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, name)
		}
		seen[name] = true
	}
	return nil
}

// CollectionConfigs resolves every configured collection.
func (c *Config) CollectionConfigs() ([]collection.Config, error) {
	out := make([]collection.Config, 0, len(c.Collections))
	for _, col := range c.Collections {
		cfg, err := col.Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
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

// OutputConfig controls where generated artifacts are written, relative to Root.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Declarations string `yaml:"declarations"` // relative to Dir
	JSONSchema   bool   `yaml:"json_schema"`
}

// DeclarationsPath returns the declaration file path relative to Root.
func (c *OutputConfig) DeclarationsPath() string {
	return path.Join(c.Dir, c.Declarations)
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required, validation.By(relativePath)),
		validation.Field(&c.Declarations, validation.Required, validation.By(relativePath)),
	)
}

// BuildConfig tunes the builder.
type BuildConfig struct {
	Workers int `yaml:"workers"` // 0 means NumCPU
}

// Validate validates the build configuration.
func (c *BuildConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0)),
	)
}

// CollectionConfig is the YAML form of one collection.
type CollectionConfig struct {
	Name       string         `yaml:"name"`
	Base       string         `yaml:"base"`
	Pattern    string         `yaml:"pattern"`
	Extensions []string       `yaml:"extensions"`
	Fields     *schema.Schema `yaml:"fields"`
	Remark     []string       `yaml:"remark"`
	Rehype     []string       `yaml:"rehype"`
	Sort       *SortConfig    `yaml:"sort"`
}

// SortConfig is the YAML form of a collection sort.
type SortConfig struct {
	Field string `yaml:"field"`
	Order string `yaml:"order"`
}

// Validate validates the collection configuration. Sort fields are checked
// against the schema when the collection is constructed.
func (c *CollectionConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Base, validation.Required),
		validation.Field(&c.Remark, validation.Each(validation.By(func(v any) error {
			_, err := pipeline.LookupMarkdownStage(v.(string))
			return err
		}))),
		validation.Field(&c.Rehype, validation.Each(validation.By(func(v any) error {
			_, err := pipeline.LookupHTMLStage(v.(string))
			return err
		}))),
	); err != nil {
		return err
	}
	if c.Sort != nil {
		return validation.ValidateStruct(c.Sort,
			validation.Field(&c.Sort.Field, validation.Required),
			validation.Field(&c.Sort.Order, validation.In(string(collection.Ascending), string(collection.Descending))),
		)
	}
	return nil
}

// ResolvedName is the collection name after defaults: the explicit name, or
// the last segment of the base.
func (c *CollectionConfig) ResolvedName() string {
	return collection.Config{Name: c.Name, Base: c.Base}.WithDefaults().Name
}

// Resolve converts the YAML form into a collection.Config, looking up the
// named pipeline stages.
func (c *CollectionConfig) Resolve() (collection.Config, error) {
	cfg := collection.Config{
		Name:       c.Name,
		Base:       c.Base,
		Pattern:    c.Pattern,
		Extensions: c.Extensions,
		Schema:     c.Fields,
	}
	for _, name := range c.Remark {
		st, err := pipeline.LookupMarkdownStage(name)
		if err != nil {
			return collection.Config{}, err
		}
		cfg.Pre = append(cfg.Pre, st)
	}
	for _, name := range c.Rehype {
		st, err := pipeline.LookupHTMLStage(name)
		if err != nil {
			return collection.Config{}, err
		}
		cfg.Post = append(cfg.Post, st)
	}
	if c.Sort != nil {
		cfg.Sort = &collection.Sort{Field: c.Sort.Field, Order: collection.Order(c.Sort.Order)}
	}
	return cfg.WithDefaults(), nil
}

func relativePath(v any) error {
	p, _ := v.(string)
	if path.IsAbs(p) || strings.HasPrefix(path.Clean(p), "..") {
		return errors.New("must be a relative path inside the project root")
	}
	return nil
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
		Root: ".",
		Output: OutputConfig{
			Dir:          ".codex",
			Declarations: "collections.d.ts",
			JSONSchema:   true,
		},
		SQLite: SQLiteConfig{
			Path: ".codex/index.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
