// Package config loads cpp.yaml, applies environment overrides and fills defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alishhde/Couriers-Planning-Problem/internal/webhooks"
)

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = "cpp.yaml"

type Config struct {
	Paths     PathsConfig     `yaml:"paths"`
	Solver    SolverConfig    `yaml:"solver"`
	Store     StoreConfig     `yaml:"store"`
	Transcode TranscodeConfig `yaml:"transcode"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PathsConfig struct {
	DatDir     string `yaml:"dat_dir"`
	DznDir     string `yaml:"dzn_dir"`
	ModelsDir  string `yaml:"models_dir"`
	ResultsDir string `yaml:"results_dir"`
}

type SolverConfig struct {
	Binary    string   `yaml:"binary"`
	Default   string   `yaml:"default"`
	TimeLimit string   `yaml:"time_limit"`
	Grace     string   `yaml:"grace"`
	ExtraArgs []string `yaml:"extra_args"`
}

// StoreConfig selects the result backend: file, memory or sql.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
}

type TranscodeConfig struct {
	Workers int    `yaml:"workers"`
	Settle  string `yaml:"settle"`
}

type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	RunsPerMinute float64 `yaml:"runs_per_minute"`
	RunsBurst     int     `yaml:"runs_burst"`
	// AuthSecret enables bearer-token checks on run submission.
	AuthSecret string `yaml:"auth_secret"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type WebhooksConfig struct {
	Subscriptions []webhooks.Subscription `yaml:"subscriptions"`
	MaxAttempts   int                     `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig mirrors the project layout the models and instances ship with.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DatDir:     filepath.Join("Instances", "Instances dat Format"),
			DznDir:     filepath.Join("Instances", "Instances dzn Format"),
			ModelsDir:  filepath.Join("Solvers", "projectmodels"),
			ResultsDir: filepath.Join("Results", "mzn"),
		},
		Solver: SolverConfig{
			Binary:    "minizinc",
			Default:   "gecode",
			TimeLimit: "300s",
			Grace:     "30s",
		},
		Store:     StoreConfig{Backend: "file"},
		Transcode: TranscodeConfig{Workers: 4, Settle: "500ms"},
		Server:    ServerConfig{Addr: ":8080", RunsPerMinute: 6, RunsBurst: 2},
		Webhooks:  WebhooksConfig{MaxAttempts: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Paths.DatDir, "CPP_DAT_DIR")
	setString(&c.Paths.DznDir, "CPP_DZN_DIR")
	setString(&c.Paths.ModelsDir, "CPP_MODELS_DIR")
	setString(&c.Paths.ResultsDir, "CPP_RESULTS_DIR")
	setString(&c.Solver.Binary, "CPP_MINIZINC")
	setString(&c.Solver.Default, "CPP_SOLVER")
	setString(&c.Solver.TimeLimit, "CPP_TIME_LIMIT")
	setString(&c.Store.Backend, "CPP_STORE")
	setString(&c.Logging.Level, "CPP_LOG_LEVEL")
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Server.AuthSecret, "CPP_AUTH_SECRET")

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Store.DSN = dsn
		c.Store.Backend = "sql"
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := os.Getenv("CPP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Transcode.Workers = n
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.TimeLimit(); err != nil {
		return err
	}
	if _, err := parsePositive("solver.grace", c.Solver.Grace); err != nil {
		return err
	}
	switch strings.ToLower(c.Store.Backend) {
	case "file", "memory":
	case "sql":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the sql backend")
		}
	default:
		return fmt.Errorf("store.backend %q: want file, memory or sql", c.Store.Backend)
	}
	if c.Paths.ResultsDir == "" && c.Store.Backend == "file" {
		return fmt.Errorf("paths.results_dir is required for the file backend")
	}
	for i, s := range c.Webhooks.Subscriptions {
		if !strings.HasPrefix(s.URL, "http://") && !strings.HasPrefix(s.URL, "https://") {
			return fmt.Errorf("webhooks.subscriptions[%d].url %q is not an http(s) url", i, s.URL)
		}
	}
	return nil
}

// TimeLimit is the per-solve budget.
func (c *Config) TimeLimit() (time.Duration, error) {
	return parsePositive("solver.time_limit", c.Solver.TimeLimit)
}

// GraceOrDefault is the extra time the solver process gets past its budget.
func (c *Config) GraceOrDefault() time.Duration {
	d, err := parsePositive("solver.grace", c.Solver.Grace)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (c *Config) SettleOrDefault() time.Duration {
	d, err := parsePositive("transcode.settle", c.Transcode.Settle)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// parsePositive accepts Go durations ("300s", "5m") or bare seconds ("300").
func parsePositive(name, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, aerr := strconv.Atoi(v)
		if aerr != nil {
			return 0, fmt.Errorf("%s %q: %w", name, v, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return d, nil
}
