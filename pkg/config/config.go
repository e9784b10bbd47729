package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protolink/pkg/linter"
	"github.com/platinummonkey/protolink/pkg/loader"
	"github.com/platinummonkey/protolink/pkg/observability"
	"github.com/platinummonkey/protolink/pkg/storage"
)

// FileName is the configuration file Load looks for.
const FileName = "protolink.yaml"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Link          LinkConfig          `yaml:"link"`
	Storage       storage.Config      `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Lint          LintConfig          `yaml:"lint"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// SnapshotSchedule is a cron expression for the periodic snapshot job; empty
	// disables it.
	SnapshotSchedule string `yaml:"snapshot_schedule"`
	SnapshotName     string `yaml:"snapshot_name"`
}

// LinkConfig holds source loading settings
type LinkConfig struct {
	Roots       []string      `yaml:"roots"`
	Parallelism int           `yaml:"parallelism"`
	CacheSize   int           `yaml:"cache_size"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
	Strict      bool          `yaml:"strict"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsTextfile, when set, makes CLI runs write their metrics there.
	MetricsTextfile string `yaml:"metrics_textfile"`

	OTel observability.OTelConfig `yaml:"otel"`
}

// LintConfig points at the lint rule configuration.
type LintConfig struct {
	// ConfigFile is a protolink.lint.yaml path. When empty the directory of
	// the main configuration file is searched.
	ConfigFile string `yaml:"config"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    8 << 20,
			SnapshotName:    "default",
		},
		Link: LinkConfig{
			Roots:     []string{"."},
			CacheSize: 4096,
			CacheTTL:  10 * time.Minute,
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      observability.FormatText,
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:    "localhost:4317",
				ServiceName: "protolink",
				Insecure:    true,
				SampleRatio: 1,
			},
		},
	}
}

// Load finds protolink.yaml in dir or its parents, applies PROTOLINK_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(dir string) (*Config, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile loads the configuration at path, or only the defaults and the
// environment when path is empty.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
		cfg.Path = path
		cfg.resolvePaths(filepath.Dir(path))
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Find returns the path of the nearest protolink.yaml at or above dir, or
// "" when there is none.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(abs, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// resolvePaths makes relative paths from the file relative to its directory.
func (c *Config) resolvePaths(base string) {
	for i, root := range c.Link.Roots {
		c.Link.Roots[i] = resolve(base, root)
	}
	c.Storage.FilesystemRoot = resolve(base, c.Storage.FilesystemRoot)
	if c.Storage.SQLitePath != ":memory:" {
		c.Storage.SQLitePath = resolve(base, c.Storage.SQLitePath)
	}
	c.Lint.ConfigFile = resolve(base, c.Lint.ConfigFile)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func applyEnv(c *Config) {
	s := &c.Server
	s.Host = getEnv("PROTOLINK_HOST", s.Host)
	s.Port = getEnv("PROTOLINK_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("PROTOLINK_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PROTOLINK_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PROTOLINK_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PROTOLINK_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = int64(getEnvInt("PROTOLINK_MAX_BODY_BYTES", int(s.MaxBodyBytes)))
	s.SnapshotSchedule = getEnv("PROTOLINK_SNAPSHOT_SCHEDULE", s.SnapshotSchedule)
	s.SnapshotName = getEnv("PROTOLINK_SNAPSHOT_NAME", s.SnapshotName)

	l := &c.Link
	if roots := getEnv("PROTOLINK_ROOTS", ""); roots != "" {
		l.Roots = splitList(roots)
	}
	l.Parallelism = getEnvInt("PROTOLINK_PARALLELISM", l.Parallelism)
	l.CacheSize = getEnvInt("PROTOLINK_CACHE_SIZE", l.CacheSize)
	l.CacheTTL = getEnvDuration("PROTOLINK_CACHE_TTL", l.CacheTTL)
	l.Strict = getEnvBool("PROTOLINK_STRICT", l.Strict)

	st := &c.Storage
	st.Type = getEnv("PROTOLINK_STORAGE_TYPE", st.Type)
	st.FilesystemRoot = getEnv("PROTOLINK_FILESYSTEM_ROOT", st.FilesystemRoot)
	st.PostgresURL = getEnv("PROTOLINK_POSTGRES_URL", st.PostgresURL)
	st.PostgresMaxConns = getEnvInt("PROTOLINK_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("PROTOLINK_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("PROTOLINK_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.SQLitePath = getEnv("PROTOLINK_SQLITE_PATH", st.SQLitePath)
	st.S3Endpoint = getEnv("PROTOLINK_S3_ENDPOINT", st.S3Endpoint)
	st.S3Region = getEnv("PROTOLINK_S3_REGION", st.S3Region)
	st.S3Bucket = getEnv("PROTOLINK_S3_BUCKET", st.S3Bucket)
	st.S3Prefix = getEnv("PROTOLINK_S3_PREFIX", st.S3Prefix)
	st.S3AccessKey = getEnv("PROTOLINK_S3_ACCESS_KEY", st.S3AccessKey)
	st.S3SecretKey = getEnv("PROTOLINK_S3_SECRET_KEY", st.S3SecretKey)
	st.S3UsePathStyle = getEnvBool("PROTOLINK_S3_USE_PATH_STYLE", st.S3UsePathStyle)
	st.RedisURL = getEnv("PROTOLINK_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("PROTOLINK_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("PROTOLINK_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("PROTOLINK_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("PROTOLINK_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.RedisKeyPrefix = getEnv("PROTOLINK_REDIS_KEY_PREFIX", st.RedisKeyPrefix)

	o := &c.Observability
	o.LogLevel = getEnv("PROTOLINK_LOG_LEVEL", o.LogLevel)
	o.LogFormat = getEnv("PROTOLINK_LOG_FORMAT", o.LogFormat)
	o.MetricsEnabled = getEnvBool("PROTOLINK_METRICS_ENABLED", o.MetricsEnabled)
	o.MetricsTextfile = getEnv("PROTOLINK_METRICS_TEXTFILE", o.MetricsTextfile)
	o.OTel.Enabled = getEnvBool("PROTOLINK_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("PROTOLINK_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("PROTOLINK_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.Insecure = getEnvBool("PROTOLINK_OTEL_INSECURE", o.OTel.Insecure)
	o.OTel.SampleRatio = getEnvFloat("PROTOLINK_OTEL_SAMPLE_RATIO", o.OTel.SampleRatio)

	c.Lint.ConfigFile = getEnv("PROTOLINK_LINT_CONFIG", c.Lint.ConfigFile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server max_body_bytes must be positive")
	}
	if c.Server.SnapshotSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.SnapshotSchedule); err != nil {
			return fmt.Errorf("invalid snapshot schedule %q: %w", c.Server.SnapshotSchedule, err)
		}
		if c.Server.SnapshotName == "" {
			return errors.New("snapshot name is required with a snapshot schedule")
		}
	}

	if c.Link.Parallelism < 0 {
		return errors.New("link parallelism must not be negative")
	}
	if c.Link.CacheSize < 0 {
		return errors.New("link cache_size must not be negative")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.Observability.LogLevel)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q", c.Observability.LogFormat)
	}

	if c.Observability.OTel.Enabled {
		if c.Observability.OTel.Endpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTel.ServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTel.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample_ratio %v must be between 0 and 1", r)
	}

	return nil
}

// LoaderConfig returns the loader settings with log attached.
func (c *Config) LoaderConfig(log logrus.FieldLogger) loader.Config {
	return loader.Config{
		CacheSize:   c.Link.CacheSize,
		CacheTTL:    c.Link.CacheTTL,
		Parallelism: c.Link.Parallelism,
		Strict:      c.Link.Strict,
		Logger:      log,
	}
}

// NewLogger builds the logger described by the observability section.
func (c *Config) NewLogger(out io.Writer) (*logrus.Logger, error) {
	return observability.NewLogger(c.Observability.LogLevel, c.Observability.LogFormat, out)
}

// LoadLintConfig loads the lint configuration file, or searches the
// directory of the main configuration file (the working directory when there
// is none).
func (c *Config) LoadLintConfig() (*linter.Config, error) {
	if c.Lint.ConfigFile != "" {
		lc, err := linter.LoadConfig(c.Lint.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load lint config: %w", err)
		}
		return lc, nil
	}
	dir := "."
	if c.Path != "" {
		dir = filepath.Dir(c.Path)
	}
	return linter.LoadConfigFromDir(dir)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
