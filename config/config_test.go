package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100.0, cfg.Conversion.UnitScale)
	assert.True(t, cfg.Conversion.FlipV)
	assert.True(t, cfg.Conversion.ExportMaterials)
	assert.Positive(t, cfg.Conversion.Parallelism)
	assert.True(t, cfg.Textures.Export)
	assert.Equal(t, "textures", cfg.Textures.Dir)
	assert.True(t, cfg.Textures.SplitMetallicRoughness)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
conversion:
  unit_scale: 1
  flip_v: false
textures:
  export: false
  resolution_limit: 1024
logging:
  level: "debug"
  log_file: "gltf2usd.log"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Conversion.UnitScale)
	assert.False(t, cfg.Conversion.FlipV)
	// untouched values keep their defaults
	assert.True(t, cfg.Conversion.ExportMaterials)
	assert.Equal(t, "textures", cfg.Textures.Dir)
	assert.False(t, cfg.Textures.Export)
	assert.Equal(t, 1024, cfg.Textures.ResolutionLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "gltf2usd.log", cfg.Logging.LogFile)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[conversion]
unit_scale = 2.5
parallelism = 3

[textures]
dir = "tex"
split_metallic_roughness = false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Conversion.UnitScale)
	assert.Equal(t, 3, cfg.Conversion.Parallelism)
	assert.Equal(t, "tex", cfg.Textures.Dir)
	assert.False(t, cfg.Textures.SplitMetallicRoughness)
	assert.True(t, cfg.Conversion.FlipV)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "conversion: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "unknown.yaml", "conversion:\n  unit_scael: 1\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "invalid.yaml", "conversion:\n  unit_scale: 0\n"))
	assert.ErrorContains(t, err, "unit_scale")
}

func TestLoadHomeDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	defer func() { homedir.DisableCache = false }()
	require.NoError(t, os.WriteFile(filepath.Join(home, "gltf2usd.yaml"), []byte("logging:\n  level: warn\n"), 0644))

	cfg, err := Load("~/gltf2usd.yaml")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestConverterOptions(t *testing.T) {
	cfg := Default()
	cfg.Textures.ResolutionLimit = 512
	log := zap.NewNop()

	opts := cfg.ConverterOptions("/out", log)
	assert.Equal(t, 100.0, opts.UnitScale)
	assert.Equal(t, "/out", opts.OutputDir)
	assert.Equal(t, "textures", opts.TextureDir)
	assert.True(t, opts.ExportTextures)
	assert.Equal(t, 512, opts.TextureResolutionLimit)
	assert.Same(t, log, opts.Logger)
}
