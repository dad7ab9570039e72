package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/viant/imagespider/catalog"
	"github.com/viant/imagespider/config"
	"github.com/viant/imagespider/engine"
	"github.com/viant/imagespider/extractor"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	log    *engine.Logger
	engine *engine.Engine
	render *renderer
	closer io.Closer
}

func (a *app) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// loadConfig resolves --config, falling back to ./imagespider.yaml, then
// applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat(config.DefaultFileName); err == nil {
			path = config.DefaultFileName
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		cfg.Catalog = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
		if _, err := cfg.LogLevel(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*engine.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Log.Format, "json") {
		return engine.NewJSONLogger(cmd.ErrOrStderr(), level), nil
	}
	return engine.NewTextLogger(cmd.ErrOrStderr(), level), nil
}

// newApp builds the extractor and engine for root, the collection folder.
func newApp(cmd *cobra.Command, root string) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.Folder = root
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	ext, err := extractor.New(cfg.ExtractorConfig())
	if err != nil {
		return nil, err
	}
	indexOpts, err := cfg.IndexOptions()
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(ext, engine.Options{
		Root:         cfg.Folder,
		Workers:      cfg.Workers,
		EmbedTimeout: cfg.EmbedTimeout,
		KDefault:     cfg.KDefault,
		Index:        indexOpts,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	a := &app{cfg: cfg, log: log, engine: eng, render: newRenderer(cmd.OutOrStdout(), asJSON)}
	if c, ok := ext.(io.Closer); ok {
		a.closer = c
	}
	log.Info("extractor ready", "model", ext.Model(), "dimension", ext.Dimension(), "device", extractor.DeviceOf(ext))
	return a, nil
}

// openCatalog opens the configured catalog, or returns nil when none is
// configured.
func (a *app) openCatalog() (*catalog.Catalog, error) {
	if a.cfg.Catalog == "" {
		return nil, nil
	}
	return catalog.Open(a.cfg.Catalog)
}

// catalogExists reports whether the configured catalog file is present.
func (a *app) catalogExists() bool {
	if a.cfg.Catalog == "" {
		return false
	}
	_, err := os.Stat(a.cfg.Catalog)
	return err == nil
}

// folderArg picks the collection folder from args or configuration.
func folderArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (a *app) requireFolder() (string, error) {
	if a.cfg.Folder == "" {
		return "", errors.New("no folder given: pass one or set " + config.EnvFolder)
	}
	info, err := os.Stat(a.cfg.Folder)
	if err != nil {
		return "", fmt.Errorf("folder: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("folder: %s is not a directory", a.cfg.Folder)
	}
	return a.cfg.Folder, nil
}
