// Package config loads the clprof YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/clprof/internal/prof"
)

// Config is the on-disk configuration. Fields missing from the file keep
// their defaults.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	DataDir   string `yaml:"data_dir"`

	Server  ServerConfig       `yaml:"server"`
	Export  prof.ExportOptions `yaml:"export"`
	Summary SummaryConfig      `yaml:"summary"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SummaryConfig holds the default table sorts, e.g. "time-desc".
type SummaryConfig struct {
	AggSort     string `yaml:"agg_sort"`
	OverlapSort string `yaml:"overlap_sort"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		DataDir:   "./data",
		Server:    ServerConfig{Addr: ":8080"},
		Export:    prof.DefaultExportOptions(),
		Summary: SummaryConfig{
			AggSort:     prof.DefaultAggSort.String(),
			OverlapSort: prof.DefaultOverlapSort.String(),
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// LoadOrDefault loads path, or returns the defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"json", "text"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if !oneOf(c.LogLevel, logLevels) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if !oneOf(c.LogFormat, logFormats) {
		errs = append(errs, fmt.Errorf("log_format must be one of %s", strings.Join(logFormats, ", ")))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr cannot be empty"))
	}
	if c.Export.Separator == "" {
		errs = append(errs, errors.New("export.separator cannot be empty"))
	}
	if c.Export.Newline == "" {
		errs = append(errs, errors.New("export.newline cannot be empty"))
	}
	if _, err := prof.ParseAggSort(c.Summary.AggSort); err != nil {
		errs = append(errs, fmt.Errorf("summary.agg_sort: %w", err))
	}
	if _, err := prof.ParseOverlapSort(c.Summary.OverlapSort); err != nil {
		errs = append(errs, fmt.Errorf("summary.overlap_sort: %w", err))
	}
	return errors.Join(errs...)
}

// ExportOptions returns the export section.
func (c *Config) ExportOptions() prof.ExportOptions {
	return c.Export
}

// AggSort returns the configured aggregate sort, falling back to the
// default when it does not parse.
func (c *Config) AggSort() prof.AggSort {
	s, err := prof.ParseAggSort(c.Summary.AggSort)
	if err != nil {
		return prof.DefaultAggSort
	}
	return s
}

// OverlapSort returns the configured overlap sort, falling back to the
// default when it does not parse.
func (c *Config) OverlapSort() prof.OverlapSort {
	s, err := prof.ParseOverlapSort(c.Summary.OverlapSort)
	if err != nil {
		return prof.DefaultOverlapSort
	}
	return s
}
