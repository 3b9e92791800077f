package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sitesetup configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`

	// HTTP surface (admin-ajax style endpoints)
	Server ServerConfig `yaml:"server"`

	// Bearer tokens mapped to host platform users
	Auth AuthConfig `yaml:"auth"`

	// SQLite storage for submissions and the local host platform
	Database DatabaseConfig `yaml:"database"`

	// Host platform settings
	Platform PlatformConfig `yaml:"platform"`

	// Outbound mail for contact notifications
	Mail MailConfig `yaml:"mail"`

	// Bulk plugin installation
	Bulk BulkConfig `yaml:"bulk"`

	// Demo content import
	Demo DemoConfig `yaml:"demo"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr         string `yaml:"addr"`
	ReadTimeout  string `yaml:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout"`
	NonceSecret  string `yaml:"nonce_secret"`
	NonceTTL     string `yaml:"nonce_ttl"`
	Metrics      bool   `yaml:"metrics"`
	MaxConns     int    `yaml:"max_conns"` // 0 means unlimited
}

// AuthConfig maps API tokens to host users.
type AuthConfig struct {
	Users []UserToken `yaml:"users"`
}

// UserToken binds a bearer token to a host platform user name.
type UserToken struct {
	Name  string `yaml:"name"`
	Token string `yaml:"token"`
	Role  string `yaml:"role"` // administrator, editor, subscriber
}

// DatabaseConfig configures the SQLite database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite3 (cgo) or sqlite (pure Go)
	Path   string `yaml:"path"`
}

// PlatformConfig configures the local host platform.
type PlatformConfig struct {
	PluginsDir    string `yaml:"plugins_dir"`
	DirectoryURL  string `yaml:"directory_url"`
	DownloadLimit int64  `yaml:"download_limit"` // bytes
	HTTPTimeout   string `yaml:"http_timeout"`
	AdminEmail    string `yaml:"admin_email"`
}

// MailConfig configures SMTP delivery. An empty Host disables mail.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`  // fallback when the host has no admin_email
	TLS      string `yaml:"tls"` // mandatory, opportunistic, none
}

// BulkConfig bounds "install all" style operations.
type BulkConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"` // per plugin
}

// DemoConfig configures the demo content importer.
type DemoConfig struct {
	ManifestPath  string `yaml:"manifest_path"` // empty uses the built-in content
	Transactional bool   `yaml:"transactional"` // undo applied steps when a later one fails
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sitesetup",
		DataDir: "data",

		Server: ServerConfig{
			Addr:         "127.0.0.1:8088",
			ReadTimeout:  "15s",
			WriteTimeout: "5m",
			NonceTTL:     "12h",
			Metrics:      true,
			MaxConns:     256,
		},

		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "data/sitesetup.db",
		},

		Platform: PlatformConfig{
			PluginsDir:    "data/plugins",
			DirectoryURL:  "https://api.wordpress.org",
			DownloadLimit: 64 << 20,
			HTTPTimeout:   "60s",
			AdminEmail:    "admin@example.com",
		},

		Mail: MailConfig{
			Port: 587,
			From: "no-reply@example.com",
			TLS:  "opportunistic",
		},

		Bulk: BulkConfig{
			Concurrency: 3,
			Timeout:     "2m",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SITESETUP_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if secret := os.Getenv("SITESETUP_NONCE_SECRET"); secret != "" {
		c.Server.NonceSecret = secret
	}
	if path := os.Getenv("SITESETUP_DB"); path != "" {
		c.Database.Path = path
	}
	if driver := os.Getenv("SITESETUP_DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if url := os.Getenv("SITESETUP_DIRECTORY_URL"); url != "" {
		c.Platform.DirectoryURL = url
	}

	// SMTP
	if host := os.Getenv("SITESETUP_SMTP_HOST"); host != "" {
		c.Mail.Host = host
	}
	if port := os.Getenv("SITESETUP_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Mail.Port = p
		}
	}
	if user := os.Getenv("SITESETUP_SMTP_USER"); user != "" {
		c.Mail.Username = user
	}
	if pass := os.Getenv("SITESETUP_SMTP_PASSWORD"); pass != "" {
		c.Mail.Password = pass
	}

	// A single admin token can be provided without a config file.
	if token := os.Getenv("SITESETUP_ADMIN_TOKEN"); token != "" {
		c.Auth.Users = append(c.Auth.Users, UserToken{Name: "admin", Token: token, Role: "administrator"})
	}
}

// GetNonceTTL returns the nonce lifetime as a duration.
func (c *Config) GetNonceTTL() time.Duration {
	return parseDuration(c.Server.NonceTTL, 12*time.Hour)
}

// GetReadTimeout returns the HTTP read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout. Bulk installs run inside a
// single request, so this is generous.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 5*time.Minute)
}

// GetHTTPTimeout returns the plugin directory client timeout.
func (c *Config) GetHTTPTimeout() time.Duration {
	return parseDuration(c.Platform.HTTPTimeout, 60*time.Second)
}

// GetBulkTimeout returns the per-plugin timeout for bulk installs.
func (c *Config) GetBulkTimeout() time.Duration {
	return parseDuration(c.Bulk.Timeout, 2*time.Minute)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidDrivers lists the registered SQLite drivers.
var ValidDrivers = []string{"sqlite3", "sqlite"}

// ValidRoles lists the host roles a token may map to.
var ValidRoles = []string{"administrator", "editor", "subscriber"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidDrivers, c.Database.Driver) {
		return fmt.Errorf("invalid database driver: %s (valid: %v)", c.Database.Driver, ValidDrivers)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path not configured")
	}
	if c.Server.MaxConns < 0 {
		return fmt.Errorf("server max_conns must not be negative, got %d", c.Server.MaxConns)
	}
	if c.Bulk.Concurrency < 1 {
		return fmt.Errorf("bulk concurrency must be at least 1, got %d", c.Bulk.Concurrency)
	}
	seen := make(map[string]bool)
	for _, u := range c.Auth.Users {
		if u.Name == "" || u.Token == "" {
			return fmt.Errorf("auth user entries need both name and token")
		}
		if seen[u.Token] {
			return fmt.Errorf("duplicate auth token for user %s", u.Name)
		}
		seen[u.Token] = true
		if u.Role != "" && !contains(ValidRoles, u.Role) {
			return fmt.Errorf("invalid role %q for user %s (valid: %v)", u.Role, u.Name, ValidRoles)
		}
	}
	switch strings.ToLower(c.Mail.TLS) {
	case "", "mandatory", "opportunistic", "none":
	default:
		return fmt.Errorf("invalid mail tls policy: %s", c.Mail.TLS)
	}
	return nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.Mail.Host != ""
}

// LogsDir returns the directory category log files are written to.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
