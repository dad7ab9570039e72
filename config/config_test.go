package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/imagespider/extractor"
	"github.com/viant/imagespider/index"
	"github.com/viant/imagespider/vector"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "thumbnail", cfg.Model)
	assert.Equal(t, "cosine", cfg.Metric)
	assert.Equal(t, 5, cfg.KDefault)
	assert.Equal(t, index.DefaultAutoThreshold, cfg.Index.AutoThreshold)
	assert.Equal(t, "rebuild", cfg.StalePolicy)
	assert.Positive(t, cfg.Workers)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv(EnvFolder, "")
	t.Setenv(EnvModel, "")
	t.Setenv(EnvDevice, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvFolder, "")
	t.Setenv(EnvModel, "")
	t.Setenv(EnvDevice, "")
	path := filepath.Join(t.TempDir(), "imagespider.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
metric: euclidean
k_default: 3
workers: 2
embed_timeout: 1500ms
index:
  strategy: cover
  cover_base: 2
thumbnail:
  grid: 4
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "euclidean", cfg.Metric)
	assert.Equal(t, 3, cfg.KDefault)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 1500*time.Millisecond, cfg.EmbedTimeout)
	assert.Equal(t, 4, cfg.Thumbnail.Grid)
	// unset nested fields keep their defaults
	assert.Equal(t, index.DefaultAutoThreshold, cfg.Index.AutoThreshold)

	opts, err := cfg.IndexOptions()
	require.NoError(t, err)
	assert.Equal(t, vector.Euclidean, opts.Metric)
	assert.Equal(t, index.StrategyCover, opts.Strategy)
	assert.Equal(t, 2.0, opts.CoverBase)
	assert.Equal(t, index.StaleRebuild, opts.StalePolicy)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metric: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvFolder: "/photos", EnvModel: "vgg19", EnvDevice: "cpu"}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	assert.Equal(t, "/photos", cfg.Folder)
	assert.Equal(t, "vgg19", cfg.Model)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Error(t, cfg.Validate(), "onnx model without weights")

	cfg.Weights = "vgg19.onnx"
	require.NoError(t, cfg.Validate())
	ec := cfg.ExtractorConfig()
	assert.Equal(t, extractor.DeviceCPU, ec.Device)
	assert.Equal(t, "vgg19.onnx", ec.Weights)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "metric", mutate: func(c *Config) { c.Metric = "manhattan" }},
		{name: "strategy", mutate: func(c *Config) { c.Index.Strategy = "annoy" }},
		{name: "stale policy", mutate: func(c *Config) { c.StalePolicy = "ignore" }},
		{name: "device", mutate: func(c *Config) { c.Device = "tpu" }},
		{name: "k", mutate: func(c *Config) { c.KDefault = 0 }},
		{name: "workers", mutate: func(c *Config) { c.Workers = -1 }},
		{name: "timeout", mutate: func(c *Config) { c.EmbedTimeout = -time.Second }},
		{name: "cover base", mutate: func(c *Config) { c.Index.CoverBase = 0.5 }},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvFolder, "")
	t.Setenv(EnvModel, "")
	t.Setenv(EnvDevice, "")
	cfg := Default()
	cfg.Catalog = "catalog.db"
	cfg.EmbedTimeout = 2 * time.Second
	path := filepath.Join(t.TempDir(), "nested", "imagespider.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
