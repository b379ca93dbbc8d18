// Package config provides configuration loading and management for the pair
// sampling tools. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/snehashis1997/DeepReg/datasets"
	"github.com/snehashis1997/DeepReg/loader"
	"github.com/snehashis1997/DeepReg/sampling"
)

// Dataset layouts understood by FileLoader.
const (
	FormatDir = "dir"
	FormatCSV = "csv"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Dataset location and layout
	Dataset struct {
		// DataDirPath holds the images (and labels) roles
		DataDirPath string `yaml:"dataDirPath"`

		// Format is "dir" for <dir>/<role>/<group>/<image> or "csv" for
		// <dir>/<role>.csv manifests
		Format string `yaml:"format"`

		// ImageShape is the expected shape of every image, empty to skip the check
		ImageShape []int `yaml:"imageShape"`

		// Extensions recognised by the "dir" layout
		Extensions []string `yaml:"extensions"`
	} `yaml:"dataset"`

	// Sampling of moving/fixed pairs
	Sampling sampling.Config `yaml:"sampling"`

	// Batching parameters
	Batch struct {
		Size           int  `yaml:"size"`
		DropIncomplete bool `yaml:"dropIncomplete"`
	} `yaml:"batch"`

	// Audit parameters for the Monte Carlo sampler audit
	Audit struct {
		// Seeds is the number of independent generators
		Seeds int `yaml:"seeds"`

		// Epochs drawn from every generator
		Epochs int `yaml:"epochs"`

		// Workers bounds the generators run concurrently
		Workers int `yaml:"workers"`
	} `yaml:"audit"`

	// Output parameters
	Output struct {
		// JSONPath receives the sample index export, empty to skip
		JSONPath string `yaml:"jsonPath"`

		// PlotPath receives the group coverage chart, empty to skip
		PlotPath string `yaml:"plotPath"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Dataset.DataDirPath = "data/train"
	cfg.Dataset.Format = FormatDir
	cfg.Dataset.Extensions = append([]string(nil), loader.DefaultExtensions...)

	cfg.Sampling.Labeled = false
	cfg.Sampling.IntraGroupProb = 0
	cfg.Sampling.IntraGroupOption = string(sampling.Forward)
	cfg.Sampling.SampleImageInGroup = false

	cfg.Batch.Size = 8

	cfg.Audit.Seeds = 16
	cfg.Audit.Epochs = 4
	cfg.Audit.Workers = runtime.NumCPU()

	cfg.Output.Verbose = false
	return cfg
}

// LoadConfig loads configuration from a YAML file on fs.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(fs afero.Fs, configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file on fs
func SaveConfig(fs afero.Fs, cfg *Config, configPath string) error {
	if err := fs.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}
	if err := afero.WriteFile(fs, configPath, data, 0o644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return nil
}

// Validate checks the values that do not depend on the dataset. Group-size
// dependent checks happen when the loader is built.
func (c *Config) Validate() error {
	switch c.Dataset.Format {
	case FormatDir, FormatCSV:
	default:
		return errors.Errorf("unknown dataset format %q, expected %s or %s", c.Dataset.Format, FormatDir, FormatCSV)
	}
	for _, d := range c.Dataset.ImageShape {
		if d < 1 {
			return errors.Errorf("image shape %v has a non-positive dimension", c.Dataset.ImageShape)
		}
	}
	p := c.Sampling.IntraGroupProb
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errors.Wrapf(sampling.ErrInvalidProbability, "got %v", p)
	}
	if p > 0 {
		if _, err := sampling.ParseIntraGroupOption(c.Sampling.IntraGroupOption); err != nil {
			return err
		}
	}
	if c.Sampling.Labeled {
		switch c.Sampling.SampleLabel {
		case sampling.SampleLabelAll, sampling.SampleLabelSample:
		default:
			return errors.Wrapf(sampling.ErrUnknownSampleLabel, "got %q", c.Sampling.SampleLabel)
		}
	}
	if c.Batch.Size < 1 {
		return errors.Errorf("batch size must be positive, got %d", c.Batch.Size)
	}
	if c.Audit.Seeds < 1 || c.Audit.Epochs < 1 || c.Audit.Workers < 1 {
		return errors.Errorf("audit seeds, epochs and workers must be positive, got %d, %d and %d",
			c.Audit.Seeds, c.Audit.Epochs, c.Audit.Workers)
	}
	return nil
}

// FileLoader returns the loader factory of the configured layout on fs.
// Volumes are decoded with loader.RawDecoder.
func (c *Config) FileLoader(fs afero.Fs) (loader.Factory, error) {
	switch c.Dataset.Format {
	case FormatDir:
		opts := []loader.DirOption{loader.WithDecoder(loader.RawDecoder)}
		if len(c.Dataset.Extensions) > 0 {
			opts = append(opts, loader.WithExtensions(c.Dataset.Extensions...))
		}
		return loader.DirFactory(fs, opts...), nil
	case FormatCSV:
		return loader.CSVFactory(fs, loader.RawDecoder), nil
	}
	return nil, errors.Errorf("unknown dataset format %q", c.Dataset.Format)
}

// GroupedConfig assembles the configuration of a datasets.GroupedDataLoader.
func (c *Config) GroupedConfig(fs afero.Fs) (datasets.GroupedConfig, error) {
	factory, err := c.FileLoader(fs)
	if err != nil {
		return datasets.GroupedConfig{}, err
	}
	return datasets.GroupedConfig{
		DataDirPath: c.Dataset.DataDirPath,
		ImageShape:  append([]int(nil), c.Dataset.ImageShape...),
		FileLoader:  factory,
		Sampling:    c.Sampling,
	}, nil
}
