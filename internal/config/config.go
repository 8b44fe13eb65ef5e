// Package config loads ggar settings from a YAML file and the environment.
//
// Values are applied in order: built-in defaults, the YAML file (if any),
// then GGAR_* environment variables. The result is validated before use.
//
//	server:
//	  addr: ":8080"
//	  base_url: "https://shop.example"
//	store:
//	  driver: sqlite
//	  path: /var/lib/ggar/designs.db
//	  max_age: 24h
//
// The same settings as environment variables:
//
//	GGAR_SERVER_BASE_URL=https://shop.example
//	GGAR_STORE_DRIVER=sqlite
//	GGAR_STORE_MAX_AGE=24h
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/handoff"
	"github.com/gogpu/ggar/store"
	"github.com/gogpu/ggar/texture"
)

// EnvPrefix starts every environment variable read by Load.
const EnvPrefix = "GGAR_"

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete ggar configuration.
type Config struct {
	Log     Log             `yaml:"log" envPrefix:"LOG_"`
	Server  Server          `yaml:"server" envPrefix:"SERVER_"`
	Store   Store           `yaml:"store" envPrefix:"STORE_"`
	Compose Compose         `yaml:"compose" envPrefix:"COMPOSE_"`
	QR      handoff.Options `yaml:"qr" envPrefix:"QR_"`
	Marker  texture.Marker  `yaml:"marker" envPrefix:"MARKER_"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Server configures the HTTP surface.
type Server struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// BaseURL is the public origin written into handoff URLs.
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Store configures the ephemeral design store.
type Store struct {
	Driver        string        `yaml:"driver" env:"DRIVER"`
	Path          string        `yaml:"path" env:"PATH"`
	MaxAge        time.Duration `yaml:"max_age" env:"MAX_AGE"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// Compose configures the compositor.
type Compose struct {
	ResourceTimeout time.Duration `yaml:"resource_timeout" env:"RESOURCE_TIMEOUT"`
	// FontDir holds extra .ttf/.otf families. Empty means embedded fonts only.
	FontDir   string `yaml:"font_dir" env:"FONT_DIR"`
	CacheSize int    `yaml:"cache_size" env:"CACHE_SIZE"`
	// Shaping enables HarfBuzz-style shaping for complex scripts.
	Shaping bool `yaml:"shaping" env:"SHAPING"`
	// MaxDimension bounds canvas and frame edges in pixels.
	MaxDimension int `yaml:"max_dimension" env:"MAX_DIMENSION"`
	// FileRoots lists directories image sources may be read from. Empty
	// disables file sources.
	FileRoots []string `yaml:"file_roots" env:"FILE_ROOTS" envSeparator:","`
	// Hosts lists hosts image sources may be fetched from; "*" allows
	// any. Empty disables http(s) sources.
	Hosts []string `yaml:"hosts" env:"HOSTS" envSeparator:","`
	// MaxImageBytes caps one encoded image source.
	MaxImageBytes int64 `yaml:"max_image_bytes" env:"MAX_IMAGE_BYTES"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: Log{Level: "info", Format: FormatText},
		Server: Server{
			Addr:              ":8080",
			BaseURL:           "http://localhost:8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Store: Store{
			Driver:        DriverMemory,
			Path:          "ggar.db",
			MaxAge:        store.DefaultMaxAge,
			SweepInterval: store.DefaultSweepInterval,
		},
		Compose: Compose{
			ResourceTimeout: compose.DefaultResourceTimeout,
			CacheSize:       64,
			MaxDimension:    design.DefaultMaxDimension,
			MaxImageBytes:   compose.DefaultMaxImageBytes,
		},
		QR:     handoff.DefaultOptions(),
		Marker: texture.Marker{Name: "DesignSurface"},
	}
}

// Load returns the configuration from path and the process environment.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix})
}

// LoadEnv is Load with an explicit environment instead of os.Environ.
func LoadEnv(path string, environ map[string]string) (*Config, error) {
	return load(path, env.Options{Prefix: EnvPrefix, Environment: environ})
}

func load(path string, opts env.Options) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be %q or %q", c.Log.Format, FormatText, FormatJSON))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if _, err := handoff.BuildURL(c.Server.BaseURL, "design_0", "0"); err != nil {
		errs = append(errs, fmt.Errorf("server.base_url: %w", err))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q must be %q or %q", c.Store.Driver, DriverMemory, DriverSQLite))
	}
	if c.Store.MaxAge <= 0 {
		errs = append(errs, fmt.Errorf("store.max_age %v must be positive", c.Store.MaxAge))
	}
	if c.Store.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("store.sweep_interval %v must be positive", c.Store.SweepInterval))
	}
	if c.Compose.ResourceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("compose.resource_timeout %v must be positive", c.Compose.ResourceTimeout))
	}
	if c.Compose.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("compose.cache_size %d must be positive", c.Compose.CacheSize))
	}
	if c.Compose.MaxDimension <= 0 || c.Compose.MaxDimension > design.DefaultMaxDimension {
		errs = append(errs, fmt.Errorf("compose.max_dimension %d must be in [1,%d]", c.Compose.MaxDimension, design.DefaultMaxDimension))
	}
	if c.Compose.MaxImageBytes <= 0 {
		errs = append(errs, fmt.Errorf("compose.max_image_bytes %d must be positive", c.Compose.MaxImageBytes))
	}
	if err := c.QR.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("qr: %w", err))
	}
	if c.Marker.IsZero() {
		errs = append(errs, errors.New("marker needs a name or source_contains"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel parses Level as a slog level name.
func (l Log) SlogLevel() (slog.Level, error) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return lv, nil
}

// Open opens the configured store backend.
func (s Store) Open() (store.Store, error) {
	opts := []store.Option{store.WithMaxAge(s.MaxAge)}
	switch s.Driver {
	case DriverSQLite:
		return store.OpenSQLite(s.Path, opts...)
	case DriverMemory:
		return store.NewMemory(opts...), nil
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", s.Driver)
	}
}

// Compositor builds a compositor with the configured fonts and cache.
func (c Compose) Compositor() (*compose.Compositor, error) {
	fonts := compose.NewFontBook()
	if c.FontDir != "" {
		n, err := fonts.LoadDir(c.FontDir)
		if err != nil {
			return nil, err
		}
		ggar.Logger().Info("config: fonts loaded", "dir", c.FontDir, "count", n)
	}
	return compose.New(
		compose.WithResourceTimeout(c.ResourceTimeout),
		compose.WithResolver(compose.NewResolver(c.Loader(), compose.WithCacheSize(c.CacheSize))),
		compose.WithFonts(fonts),
		compose.WithLimits(design.Limits{
			MaxCanvas: c.MaxDimension,
			MaxFrame:  float64(c.MaxDimension),
		}),
	), nil
}

// Loader returns the image loader for the configured source policy.
func (c Compose) Loader() *compose.DefaultLoader {
	return &compose.DefaultLoader{
		MaxBytes:  c.MaxImageBytes,
		FileRoots: c.FileRoots,
		Hosts:     c.Hosts,
	}
}
