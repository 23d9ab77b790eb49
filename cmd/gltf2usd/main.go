package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/gltf2usd/config"
	"github.com/binzume/gltf2usd/converter"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/binzume/gltf2usd/logger"
	"github.com/binzume/gltf2usd/usd"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func defaultOutputFile(input string) string {
	ext := filepath.Ext(input)
	return input[0:len(input)-len(ext)] + ".usda"
}

// convertFile converts one glTF file to a .usda file next to its textures.
func convertFile(ctx context.Context, cfg *config.Config, log *zap.Logger, input, output string) error {
	doc, err := gltfutil.Load(input)
	if err != nil {
		return err
	}
	conv := converter.NewGLTFToUSDConverter(cfg.ConverterOptions(filepath.Dir(output), log))
	stage := usd.NewStage()
	report, err := conv.Convert(ctx, doc, stage)
	if err != nil {
		return errors.Wrap(err, input)
	}
	if err := usd.Save(stage, output); err != nil {
		return err
	}
	log.Info("converted", zap.String("in", input), zap.String("out", output),
		zap.Int("skipped", len(report.Errors())), zap.Int("warnings", len(report.Warnings())))
	return nil
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] input.gltf|input.glb [output.usda]\n", os.Args[0])
		flag.PrintDefaults()
	}
	confFile := flag.String("config", "", "config file (.yaml or .toml)")
	output := flag.String("o", "", "output file (default: input with .usda extension)")
	verbose := flag.Bool("v", false, "debug logging")
	logFile := flag.String("log", "", "log file")
	scale := flag.Float64("scale", 0, "unit scale (default 100)")
	exportTextures := flag.Bool("textures", true, "export textures next to the output; -textures=false references the source files")
	watch := flag.Bool("watch", false, "convert again when the input changes")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)
	if *output == "" {
		*output = flag.Arg(1)
	}
	if *output == "" {
		*output = defaultOutputFile(input)
	}
	if strings.ToLower(filepath.Ext(*output)) != ".usda" {
		fmt.Fprintf(os.Stderr, "unsupported output type: %v\n", filepath.Ext(*output))
		os.Exit(2)
	}

	cfg, err := config.Load(*confFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "v":
			if *verbose {
				cfg.Logging.Level = "debug"
			}
		case "log":
			cfg.Logging.LogFile = *logFile
		case "scale":
			cfg.Conversion.UnitScale = *scale
		case "textures":
			cfg.Textures.Export = *exportTextures
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var fileCfg logger.FileConfig
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	log := logger.New(cfg.Logging.Level, os.Stderr, fileCfg)
	defer log.Sync()

	ctx := context.Background()
	if err := convertFile(ctx, cfg, log, input, *output); err != nil {
		log.Error("conversion failed", zap.Error(err))
		if !*watch {
			log.Sync()
			os.Exit(1)
		}
	}
	if *watch {
		if err := watchFile(ctx, log, input, func() error {
			return convertFile(ctx, cfg, log, input, *output)
		}); err != nil {
			log.Error("watch", zap.Error(err))
			log.Sync()
			os.Exit(1)
		}
	}
}
