package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by kcc and kvm. Values come from Default, then an optional YAML
// file, then command line flags.
type Config struct {
	OutputDir   string `yaml:"output_dir"`
	EmitText    bool   `yaml:"emit_text"`
	EmitListing bool   `yaml:"emit_listing"`
	EmitSymbols bool   `yaml:"emit_symbols"`
	LogLevel    string `yaml:"log_level"`
	MaxSteps    int    `yaml:"max_steps"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		MaxSteps: 10000000,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	defer f.Close()
	err = cfg.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Decode overlays the YAML document of rd on cfg. Unknown keys are rejected.
func (cfg *Config) Decode(rd io.Reader) error {
	decoder := yaml.NewDecoder(rd)
	decoder.KnownFields(true)
	err := decoder.Decode(cfg)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func (cfg *Config) Validate() error {
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.MaxSteps < 0 {
		return errors.Errorf("max_steps must not be negative, got %d", cfg.MaxSteps)
	}
	return nil
}

func (cfg *Config) Level() slog.Level {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Errorf("unknown log_level %q", name)
}

// InstallLogger makes a text handler writing to w the default slog logger.
func (cfg *Config) InstallLogger(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()})
	slog.SetDefault(slog.New(handler))
}
