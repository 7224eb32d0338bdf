package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/combo"
	"strategy-databank/internal/search"
)

// Config is the on-disk configuration shape (YAML).
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Analysis AnalysisConfig `yaml:"analysis"`
	// Optional: load search defaults from a separate YAML (e.g. examples/searches/*.yaml).
	// If both SearchFile and Search are provided, Search overrides SearchFile.
	SearchFile string       `yaml:"search_file"`
	Search     SearchConfig `yaml:"search"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type AnalysisConfig struct {
	InitialCapital float64       `yaml:"initial_capital"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// SearchConfig holds search defaults. Requests overlay their own values with MergeSearch.
type SearchConfig struct {
	Metric string `yaml:"metric"`
	// Goal overrides the metric's own direction ("maximize" or "minimize").
	Goal                 string        `yaml:"goal"`
	CorrelationThreshold *float64      `yaml:"correlation_threshold"`
	DatabankSize         int           `yaml:"databank_size"`
	SearchSizeThreshold  uint64        `yaml:"search_size_threshold"`
	MaxComboSize         int           `yaml:"max_combo_size"`
	ProgressEvery        int           `yaml:"progress_every"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	Workers              int           `yaml:"workers"`
	YieldEvery           int           `yaml:"yield_every"`
}

// Default returns the built-in configuration.
func Default() *Config {
	threshold := 0.7
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Env:         "development",
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Analysis: AnalysisConfig{
			InitialCapital: analysis.InitialCapital,
			CacheTTL:       time.Hour,
		},
		Search: SearchConfig{
			Metric:               "sortinoRatio",
			CorrelationThreshold: &threshold,
			DatabankSize:         50,
			SearchSizeThreshold:  100000,
			MaxComboSize:         combo.MaxSize,
			ProgressEvery:        20,
			PollInterval:         500 * time.Millisecond,
			Workers:              1,
			YieldEvery:           1,
		},
	}
}

// Load reads path (if non-empty), fills unset fields from Default, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		var err error
		c, err = LoadUnchecked(path)
		if err != nil {
			return nil, err
		}
	}
	c.fillDefaults()
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads and merges config, but does not validate it.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.SearchFile != "" {
		searchPath := c.SearchFile
		if !filepath.IsAbs(searchPath) {
			// Prefer interpreting relative paths as relative to the config file directory,
			// but fall back to the provided path (relative to cwd) if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), searchPath)
			if _, err := os.Stat(cand); err == nil {
				searchPath = cand
			}
		}
		loaded, err := loadSearchFile(searchPath)
		if err != nil {
			return nil, err
		}
		c.Search = MergeSearch(loaded, c.Search)
	}
	return &c, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Env == "" {
		c.Server.Env = def.Server.Env
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = def.Server.CORSOrigins
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Analysis.InitialCapital == 0 {
		c.Analysis.InitialCapital = def.Analysis.InitialCapital
	}
	if c.Analysis.CacheTTL == 0 {
		c.Analysis.CacheTTL = def.Analysis.CacheTTL
	}
	c.Search = MergeSearch(def.Search, c.Search)
}

// ApplyEnv lets deployment environment variables override the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("API_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("API_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.Server.StaticDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level invalid: %w", err)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if c.Analysis.InitialCapital <= 0 {
		return errors.New("analysis.initial_capital must be > 0")
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search config invalid: %w", err)
	}
	return nil
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool { return c.Server.Env == "production" }

func (s SearchConfig) Validate() error {
	if _, ok := analysis.LookupMetric(s.Metric); !ok {
		return fmt.Errorf("unknown metric %q", s.Metric)
	}
	if s.Goal != "" {
		if _, err := analysis.ParseGoal(s.Goal); err != nil {
			return err
		}
	}
	if s.CorrelationThreshold == nil {
		return errors.New("correlation_threshold is required")
	}
	if t := *s.CorrelationThreshold; t < -1 || t > 1 {
		return fmt.Errorf("correlation_threshold must be in [-1, 1], got %v", t)
	}
	if s.DatabankSize <= 0 {
		return errors.New("databank_size must be > 0")
	}
	if s.MaxComboSize < 2 || s.MaxComboSize > combo.MaxSize {
		return fmt.Errorf("max_combo_size must be in [2, %d]", combo.MaxSize)
	}
	if s.ProgressEvery <= 0 {
		return errors.New("progress_every must be > 0")
	}
	if s.PollInterval <= 0 {
		return errors.New("poll_interval must be > 0")
	}
	if s.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	return nil
}

// ToParams converts the metric-facing fields into search parameters.
func (s SearchConfig) ToParams() search.Params {
	p := search.Params{
		MetricKey:           s.Metric,
		DatabankSize:        s.DatabankSize,
		SearchSizeThreshold: s.SearchSizeThreshold,
		MaxSize:             s.MaxComboSize,
	}
	if g, err := analysis.ParseGoal(s.Goal); err == nil {
		p.Goal = g
	}
	if s.CorrelationThreshold != nil {
		p.CorrelationThreshold = *s.CorrelationThreshold
	}
	return p
}

// ToOptions converts the process-wide fields into driver options.
func (c *Config) ToOptions() search.Options {
	return search.Options{
		InitialCapital: c.Analysis.InitialCapital,
		ProgressEvery:  c.Search.ProgressEvery,
		PollInterval:   c.Search.PollInterval,
		Workers:        c.Search.Workers,
		YieldEvery:     c.Search.YieldEvery,
	}
}

type searchFileWrapper struct {
	Search SearchConfig `yaml:"search"`
}

func loadSearchFile(path string) (SearchConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SearchConfig{}, err
	}
	var w searchFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return SearchConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Search, nil
}

// MergeSearch overlays non-zero fields from override onto base.
// This is used when loading a search file and then applying overrides from the request.
func MergeSearch(base, override SearchConfig) SearchConfig {
	out := base
	if override.Metric != "" {
		out.Metric = override.Metric
	}
	if override.Goal != "" {
		out.Goal = override.Goal
	}
	if override.CorrelationThreshold != nil {
		t := *override.CorrelationThreshold
		out.CorrelationThreshold = &t
	}
	if override.DatabankSize != 0 {
		out.DatabankSize = override.DatabankSize
	}
	if override.SearchSizeThreshold != 0 {
		out.SearchSizeThreshold = override.SearchSizeThreshold
	}
	if override.MaxComboSize != 0 {
		out.MaxComboSize = override.MaxComboSize
	}
	if override.ProgressEvery != 0 {
		out.ProgressEvery = override.ProgressEvery
	}
	if override.PollInterval != 0 {
		out.PollInterval = override.PollInterval
	}
	if override.Workers != 0 {
		out.Workers = override.Workers
	}
	if override.YieldEvery != 0 {
		out.YieldEvery = override.YieldEvery
	}
	return out
}
