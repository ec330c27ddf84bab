package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"framecull/internal/logger"
	"framecull/internal/models"
	"framecull/internal/video"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by every command
type Config struct {
	Algorithm    models.AlgorithmKind `yaml:"algorithm" env:"FRAMECULL_ALGORITHM"`
	Reverse      bool                 `yaml:"reverse" env:"FRAMECULL_REVERSE"`
	PreviewFrame int                  `yaml:"preview_frame" env:"FRAMECULL_PREVIEW_FRAME"`
	OutputDir    string               `yaml:"output_dir" env:"FRAMECULL_OUTPUT_DIR"`
	LogLevel     string               `yaml:"log_level" env:"LOG_LEVEL"`
	MetricsAddr  string               `yaml:"metrics_addr" env:"FRAMECULL_METRICS_ADDR"`
	FourCC       string               `yaml:"fourcc" env:"FRAMECULL_FOURCC"`

	Params models.ProcessingParameters `yaml:"params" envPrefix:"FRAMECULL_"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the shipped settings. LogLevel is left empty so that
// the command line and DEBUG can still decide.
func Default() *Config {
	return &Config{
		Algorithm:    models.FrameDifference,
		PreviewFrame: 100,
		OutputDir:    "output",
		FourCC:       video.DefaultFourCC,
		Params:       models.DefaultParameters(),
	}
}

// Load layers defaults, the YAML file and the environment, in that order.
// With an empty path the first existing candidate file is used and a
// missing file is not an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			cfg.Path = path
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Params = cfg.Params.Normalized()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the algorithm, its parameters and the log level.
func (c *Config) Validate() error {
	if err := c.Params.Validate(c.Algorithm); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, ok := logger.ParseLevel(c.LogLevel); !ok {
			return models.NewValidationError("log_level", c.LogLevel, "must be one of debug, info, warn, error")
		}
	}
	if c.PreviewFrame < 0 {
		return models.NewValidationError("preview_frame", c.PreviewFrame, "must be >= 0")
	}
	return ValidateFourCC(c.FourCC)
}

// ValidateFourCC accepts exactly four printable ASCII characters.
func ValidateFourCC(code string) error {
	if len(code) != 4 {
		return models.NewValidationError("fourcc", code, "must be four characters")
	}
	for _, r := range code {
		if r < 0x20 || r > 0x7e {
			return models.NewValidationError("fourcc", code, "must be printable ASCII")
		}
	}
	return nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

func findConfigFile() string {
	candidates := []string{
		"./framecull.yaml",
		"./framecull.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".framecull", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
