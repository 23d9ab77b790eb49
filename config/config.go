// Package config holds the conversion and logging settings of gltf2usd.
package config

import (
	"runtime"

	"github.com/binzume/gltf2usd/converter"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config holds all settings. Priority: defaults < file < flags.
type Config struct {
	Conversion ConversionConfig `yaml:"conversion" toml:"conversion"`
	Textures   TextureConfig    `yaml:"textures" toml:"textures"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

type ConversionConfig struct {
	UnitScale       float64 `yaml:"unit_scale" toml:"unit_scale"`
	FlipV           bool    `yaml:"flip_v" toml:"flip_v"`
	Parallelism     int     `yaml:"parallelism" toml:"parallelism"`
	ExportMaterials bool    `yaml:"export_materials" toml:"export_materials"`
}

type TextureConfig struct {
	Export                 bool   `yaml:"export" toml:"export"`
	Dir                    string `yaml:"dir" toml:"dir"`
	ReCompress             bool   `yaml:"recompress" toml:"recompress"`
	ResolutionLimit        int    `yaml:"resolution_limit" toml:"resolution_limit"`
	SplitMetallicRoughness bool   `yaml:"split_metallic_roughness" toml:"split_metallic_roughness"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Conversion: ConversionConfig{
			UnitScale:       100,
			FlipV:           true,
			Parallelism:     runtime.NumCPU(),
			ExportMaterials: true,
		},
		Textures: TextureConfig{
			Export:                 true,
			Dir:                    "textures",
			SplitMetallicRoughness: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if c.Conversion.UnitScale <= 0 {
		return errors.Errorf("conversion.unit_scale must be positive: %v", c.Conversion.UnitScale)
	}
	if c.Conversion.Parallelism < 0 {
		return errors.Errorf("conversion.parallelism must not be negative: %d", c.Conversion.Parallelism)
	}
	if c.Textures.ResolutionLimit < 0 {
		return errors.Errorf("textures.resolution_limit must not be negative: %d", c.Textures.ResolutionLimit)
	}
	return nil
}

// ConverterOptions maps the settings onto converter options for output written to outputDir.
func (c *Config) ConverterOptions(outputDir string, log *zap.Logger) *converter.GLTFToUSDOption {
	return &converter.GLTFToUSDOption{
		UnitScale:              c.Conversion.UnitScale,
		FlipV:                  c.Conversion.FlipV,
		Parallelism:            c.Conversion.Parallelism,
		ExportMaterials:        c.Conversion.ExportMaterials,
		OutputDir:              outputDir,
		TextureDir:             c.Textures.Dir,
		ExportTextures:         c.Textures.Export,
		TextureReCompress:      c.Textures.ReCompress,
		TextureResolutionLimit: c.Textures.ResolutionLimit,
		SplitMetallicRoughness: c.Textures.SplitMetallicRoughness,
		Logger:                 log,
	}
}
