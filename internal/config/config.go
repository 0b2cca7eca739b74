// Package config provides configuration management for avatarcore
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/logging"
	"github.com/normanking/avatarcore/internal/turnfeed"
)

const envPrefix = "AVATARCORE"

// Config holds all application configuration
type Config struct {
	Animation avatar3d.Tuning `mapstructure:"animation"`
	Model     ModelConfig     `mapstructure:"model"`
	Feed      turnfeed.Config `mapstructure:"feed"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Log       logging.Config  `mapstructure:"log"`
}

// ModelConfig selects the avatar. An empty path runs against the
// in-memory rig.
type ModelConfig struct {
	Path        string `mapstructure:"path"`
	SpringBones bool   `mapstructure:"spring_bones"`
	// Head hit sphere in model space, for pointer rays.
	HeadCenter [3]float32 `mapstructure:"head_center"`
	HeadRadius float32    `mapstructure:"head_radius"`
}

type StreamConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

type LoopConfig struct {
	FPS int `mapstructure:"fps"`
	// Seed fixes the random sources; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Animation: avatar3d.DefaultTuning(),
		Model: ModelConfig{
			SpringBones: true,
			HeadCenter:  [3]float32{0, 1.45, 0},
			HeadRadius:  0.12,
		},
		Feed: turnfeed.DefaultConfig(),
		Stream: StreamConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8765",
			Path:    "/pose",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
			Path:    "/metrics",
		},
		Loop: LoopConfig{FPS: 60},
		Log:  logging.DefaultConfig(),
	}
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".avatarcore"), nil
}

// newViper builds a viper instance seeded with every default so that
// environment variables can override keys absent from the file.
func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	defaults, err := toMap(DefaultConfig())
	if err != nil {
		return nil, err
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Load reads configuration from path (or the default search paths when
// empty) and the environment. A missing file is not an error.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	return read(v)
}

func read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Animation = cfg.Animation.Validate()
	if cfg.Loop.FPS <= 0 {
		cfg.Loop.FPS = DefaultConfig().Loop.FPS
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	m, err := toMap(cfg)
	if err != nil {
		return err
	}
	v := viper.New()
	for k, val := range m {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Watch re-reads path whenever it changes and hands the result to
// onChange. Decode failures go to onError and leave the previous
// configuration in place.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		return fmt.Errorf("watch: no config file")
	}
	v, err := newViper(path)
	if err != nil {
		return err
	}
	if _, err := read(v); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// toMap flattens cfg into nested maps keyed by the mapstructure tags.
func toMap(cfg *Config) (map[string]any, error) {
	var m map[string]any
	if err := mapstructure.Decode(cfg, &m); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return m, nil
}
