package config

import (
	"bytes"
	"io"
	"path/filepath"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bestman-robotics/bestman/logging"
)

// Read reads a config from the given YAML file. Environment variables in the file are expanded
// and relative model paths are resolved against the directory of the file.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	attributes := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrap(err, "cannot parse config")
	}

	cfg := &Config{ConfigFilePath: originalPath}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     cfg,
		Metadata:   &md,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "cannot decode config")
	}
	if len(md.Unused) > 0 {
		logger.Warnw("config has unused fields", "fields", md.Unused)
	}

	cfg.applyDefaults()
	if originalPath != "" {
		cfg.resolvePaths(filepath.Dir(originalPath))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) resolvePaths(dir string) {
	for _, p := range []*string{
		&cfg.Robot.BaseURDFPath,
		&cfg.Robot.ArmURDFPath,
		&cfg.Kitchen.ModelDir,
		&cfg.Visualizer.OutputDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
