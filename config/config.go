package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"battery-log-api/db"

	"gopkg.in/yaml.v3"
)

const configFileEnv = "CONFIG_FILE"

// Config is built once at startup and handed to every component constructor.
type Config struct {
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Auth      AuthConfig       `yaml:"auth"`
	Log       LogConfig        `yaml:"log"`
	Render    RenderConfig     `yaml:"render"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Influx    InfluxConfig     `yaml:"influx"`
	Endpoints []EndpointConfig `yaml:"endpoints" env:"-"`
}

type HTTPConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

// DatabaseConfig mirrors the DB_* variables. URL wins over the individual
// host/user fields; Path is only read for the sqlite driver.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER"`
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Path     string `yaml:"path" env:"DB_PATH"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     string `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key" env:"API_KEY_SECRET"`
	Header string `yaml:"header" env:"API_KEY_HEADER"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type RenderConfig struct {
	Stream   string `yaml:"stream" env:"RENDER_STREAM"`
	Limit    int    `yaml:"limit" env:"RENDER_LIMIT"`
	Timezone string `yaml:"timezone" env:"RENDER_TIMEZONE"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path" env:"METRICS_PATH"`
}

type InfluxConfig struct {
	URL    string `yaml:"url" env:"INFLUX_URL"`
	Token  string `yaml:"token" env:"INFLUX_TOKEN"`
	Org    string `yaml:"org" env:"INFLUX_ORG"`
	Bucket string `yaml:"bucket" env:"INFLUX_BUCKET"`
}

// Enabled reports whether committed records should be mirrored to InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// EndpointConfig binds a stream to one or more ingestion paths.
type EndpointConfig struct {
	Stream        string   `yaml:"stream"`
	Paths         []string `yaml:"paths"`
	RequireAPIKey bool     `yaml:"require_api_key"`
}

// Default returns the configuration used when neither a file nor env
// variables override a value.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: "8080"},
		Database: DatabaseConfig{
			Driver:  db.DriverPostgres,
			SSLMode: "disable",
		},
		Auth:    AuthConfig{Header: "X-API-Key"},
		Log:     LogConfig{Level: "info"},
		Render:  RenderConfig{Stream: db.LogTeste.Name, Limit: db.MaxListLimit, Timezone: "UTC"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Endpoints: []EndpointConfig{
			{Stream: db.LogBateria.Name, Paths: []string{"/log_bateria"}, RequireAPIKey: true},
			{Stream: db.LogTeste.Name, Paths: []string{"/log_teste", "/api/log_teste"}, RequireAPIKey: true},
		},
	}
}

// Load applies the optional CONFIG_FILE and then env overrides on top of
// Default. A missing database location is not an error here.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(configFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}

	return nil
}

// Validate checks stream references and normalises the driver name.
func (c *Config) Validate() error {
	driver, err := db.NormalizeDriver(c.Database.Driver)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Database.Driver = driver

	if len(c.Endpoints) == 0 {
		return errors.New("config: at least one ingestion endpoint is required")
	}

	for _, ep := range c.Endpoints {
		if _, ok := db.LookupStream(ep.Stream); !ok {
			return fmt.Errorf("config: unknown stream %q", ep.Stream)
		}
		if len(ep.Paths) == 0 {
			return fmt.Errorf("config: stream %q has no paths", ep.Stream)
		}
		for _, p := range ep.Paths {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("config: path %q must start with /", p)
			}
		}
	}

	if _, ok := db.LookupStream(c.Render.Stream); !ok {
		return fmt.Errorf("config: unknown render stream %q", c.Render.Stream)
	}

	if c.Render.Limit < 1 || c.Render.Limit > db.MaxListLimit {
		c.Render.Limit = db.MaxListLimit
	}

	if strings.TrimSpace(c.Auth.Header) == "" {
		c.Auth.Header = "X-API-Key"
	}

	return nil
}

// Streams returns the streams named by the endpoints and the render stream,
// each once, in configuration order. Call it after Validate.
func (c *Config) Streams() []*db.Stream {
	var streams []*db.Stream
	seen := map[string]bool{}

	add := func(name string) {
		stream, ok := db.LookupStream(name)
		if !ok || seen[name] {
			return
		}
		seen[name] = true
		streams = append(streams, stream)
	}

	for _, ep := range c.Endpoints {
		add(ep.Stream)
	}
	add(c.Render.Stream)

	return streams
}

// ListenAddress returns the :port form fiber expects.
func (c *Config) ListenAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// Store returns the driver and data source name for db.NewProvider. The
// DSN is empty when nothing usable was configured.
func (c *Config) Store() db.Config {
	d := c.Database
	return db.Config{Driver: d.Driver, DSN: d.dsn()}
}

func (d DatabaseConfig) dsn() string {
	if d.Driver == db.DriverSQLite {
		if d.Path != "" {
			return d.Path
		}
		return d.URL
	}

	if d.URL != "" {
		return d.URL
	}

	if d.Host == "" {
		return ""
	}

	parts := []string{"host=" + d.Host}
	if d.Port != "" {
		parts = append(parts, "port="+d.Port)
	}
	if d.User != "" {
		parts = append(parts, "user="+d.User)
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSNValue(d.Password))
	}
	if d.Name != "" {
		parts = append(parts, "dbname="+d.Name)
	}
	if d.SSLMode != "" {
		parts = append(parts, "sslmode="+d.SSLMode)
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Redacted returns a loggable form of the DSN with any password removed.
func (c *Config) Redacted() string {
	dsn := c.Store().DSN
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	if c.Database.Password != "" {
		return strings.ReplaceAll(dsn, quoteDSNValue(c.Database.Password), "xxxxx")
	}
	return dsn
}
