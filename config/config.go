// Package config loads imagespider settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/viant/imagespider/extractor"
	"github.com/viant/imagespider/index"
	"github.com/viant/imagespider/vector"
)

// Environment variables that override file settings.
const (
	EnvFolder = "IMAGE_FOLDER"
	EnvModel  = "IMAGESPIDER_MODEL"
	EnvDevice = "IMAGESPIDER_DEVICE"
)

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "imagespider.yaml"

type IndexConfig struct {
	Strategy      string  `yaml:"strategy"`
	AutoThreshold int     `yaml:"auto_threshold"`
	CoverBase     float64 `yaml:"cover_base"`
}

type ONNXConfig struct {
	Library   string `yaml:"library,omitempty"`
	Input     string `yaml:"input,omitempty"`
	Output    string `yaml:"output,omitempty"`
	InputSize int    `yaml:"input_size,omitempty"`
	Dimension int    `yaml:"dimension,omitempty"`
	Threads   int    `yaml:"threads,omitempty"`
}

type ThumbnailConfig struct {
	Grid int `yaml:"grid"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the full set of settings.
type Config struct {
	// Folder is the collection root; identifiers are relative to it.
	Folder       string          `yaml:"folder,omitempty"`
	Model        string          `yaml:"model"`
	Weights      string          `yaml:"weights,omitempty"`
	Device       string          `yaml:"device"`
	Metric       string          `yaml:"metric"`
	KDefault     int             `yaml:"k_default"`
	Index        IndexConfig     `yaml:"index"`
	StalePolicy  string          `yaml:"stale_policy"`
	Workers      int             `yaml:"workers"`
	EmbedTimeout time.Duration   `yaml:"embed_timeout"`
	Catalog      string          `yaml:"catalog,omitempty"`
	ONNX         ONNXConfig      `yaml:"onnx"`
	Thumbnail    ThumbnailConfig `yaml:"thumbnail"`
	Log          LogConfig       `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:       extractor.ModelThumbnail,
		Device:      string(extractor.DeviceAuto),
		Metric:      string(vector.Cosine),
		KDefault:    5,
		StalePolicy: string(index.StaleRebuild),
		Workers:     runtime.NumCPU(),
		Index: IndexConfig{
			Strategy:      string(index.StrategyAuto),
			AutoThreshold: index.DefaultAutoThreshold,
			CoverBase:     1.3,
		},
		Thumbnail: ThumbnailConfig{Grid: extractor.DefaultGrid},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent folder.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvFolder); ok && v != "" {
		c.Folder = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Model = v
	}
	if v, ok := lookup(EnvDevice); ok && v != "" {
		c.Device = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := vector.ParseMetric(c.Metric); err != nil {
		return fmt.Errorf("config: metric: %w", err)
	}
	if _, err := index.ParseStrategy(c.Index.Strategy); err != nil {
		return fmt.Errorf("config: index.strategy: %w", err)
	}
	if _, err := index.ParseStalePolicy(c.StalePolicy); err != nil {
		return fmt.Errorf("config: stale_policy: %w", err)
	}
	if _, err := extractor.ParseDevice(c.Device); err != nil {
		return fmt.Errorf("config: device: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch {
	case c.KDefault <= 0:
		return fmt.Errorf("config: k_default must be positive, got %d", c.KDefault)
	case c.Workers <= 0:
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	case c.EmbedTimeout < 0:
		return fmt.Errorf("config: embed_timeout must not be negative, got %s", c.EmbedTimeout)
	case c.Index.AutoThreshold < 0:
		return fmt.Errorf("config: index.auto_threshold must not be negative, got %d", c.Index.AutoThreshold)
	case c.Index.CoverBase != 0 && c.Index.CoverBase <= 1:
		return fmt.Errorf("config: index.cover_base must be > 1, got %g", c.Index.CoverBase)
	case c.Thumbnail.Grid < 0:
		return fmt.Errorf("config: thumbnail.grid must not be negative, got %d", c.Thumbnail.Grid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	if !isThumbnail(c.Model) && c.Weights == "" {
		return fmt.Errorf("config: model %q requires weights", c.Model)
	}
	return nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	name := c.Log.Level
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}

// ExtractorConfig returns the feature extractor settings.
func (c *Config) ExtractorConfig() extractor.Config {
	device, _ := extractor.ParseDevice(c.Device)
	return extractor.Config{
		Model:   c.Model,
		Weights: c.Weights,
		Device:  device,
		Grid:    c.Thumbnail.Grid,
		ONNX: extractor.ONNXOptions{
			LibraryPath: c.ONNX.Library,
			InputName:   c.ONNX.Input,
			OutputName:  c.ONNX.Output,
			InputSize:   c.ONNX.InputSize,
			Dimension:   c.ONNX.Dimension,
			Threads:     c.ONNX.Threads,
		},
	}
}

// IndexOptions returns the similarity index settings.
func (c *Config) IndexOptions() (index.Options, error) {
	metric, err := vector.ParseMetric(c.Metric)
	if err != nil {
		return index.Options{}, err
	}
	strategy, err := index.ParseStrategy(c.Index.Strategy)
	if err != nil {
		return index.Options{}, err
	}
	policy, err := index.ParseStalePolicy(c.StalePolicy)
	if err != nil {
		return index.Options{}, err
	}
	return index.Options{
		Metric:        metric,
		Strategy:      strategy,
		AutoThreshold: c.Index.AutoThreshold,
		CoverBase:     c.Index.CoverBase,
		StalePolicy:   policy,
	}, nil
}

func isThumbnail(model string) bool {
	model = strings.TrimSpace(model)
	return model == "" || strings.EqualFold(model, extractor.ModelThumbnail)
}
