package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/config"
	"github.com/normanking/avatarcore/internal/logging"
	"github.com/normanking/avatarcore/internal/model/gltfmodel"
	"github.com/normanking/avatarcore/internal/model/memmodel"
)

// configPath resolves --config, falling back to the per-user file when it
// exists.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	p := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// openModel loads the configured document, or an in-memory rig when no
// path is set. The returned save function is nil for the in-memory rig.
func openModel(mc config.ModelConfig, logger zerolog.Logger) (avatar3d.Model, func(string) error, error) {
	if mc.Path == "" {
		logger.Info().Msg("No model path configured, using in-memory rig")
		return memmodel.New(memmodel.Options{NoSpringBones: !mc.SpringBones}), nil, nil
	}

	m, err := gltfmodel.Open(mc.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}
	bones, channels := m.Missing()
	logger.Info().
		Str("path", mc.Path).
		Str("mapping", m.Source()).
		Int("missing_bones", len(bones)).
		Int("missing_channels", len(channels)).
		Msg("Model loaded")
	return m, m.Save, nil
}

func headCollider(mc config.ModelConfig) *avatar3d.HeadCollider {
	if mc.HeadRadius <= 0 {
		return nil
	}
	return &avatar3d.HeadCollider{Center: mc.HeadCenter, Radius: mc.HeadRadius}
}

// newQuietLogger logs to the configured file only, keeping stdout clean
// for command output.
func newQuietLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := cfg.Log
	lc.Console = false
	if lc.Dir == "" {
		return logging.NewWithWriter(os.Stderr, lc)
	}
	return logging.New(lc)
}
