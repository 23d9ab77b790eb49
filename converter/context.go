package converter

import (
	"runtime"

	"github.com/binzume/gltf2usd/gltfutil"
	"go.uber.org/zap"
)

type GLTFToUSDOption struct {
	UnitScale       float64 // Default: 100 (meters to centimeters)
	FlipV           bool
	Parallelism     int // 0: runtime.NumCPU()
	ExportMaterials bool

	// Textures are written to OutputDir/TextureDir and referenced relative to OutputDir.
	OutputDir              string
	TextureDir             string
	ExportTextures         bool
	TextureReCompress      bool
	TextureResolutionLimit int // 0: unlimited
	SplitMetallicRoughness bool

	Logger *zap.Logger
}

func DefaultGLTFToUSDOption() *GLTFToUSDOption {
	return &GLTFToUSDOption{
		UnitScale:              100,
		FlipV:                  true,
		Parallelism:            runtime.NumCPU(),
		ExportMaterials:        true,
		SplitMetallicRoughness: true,
	}
}

// ConversionContext carries the state of one conversion from stage to stage.
type ConversionContext struct {
	Doc     *gltfutil.Document
	Options *GLTFToUSDOption
	Logger  *zap.Logger
	Report  *Report

	Graph *SceneGraph

	// material index -> prim path
	Materials map[uint32]string
	// node -> primitive -> mesh prim path
	MeshPaths map[uint32]map[int]string

	textures *textureCache
	decoded  map[uint32]*gltfutil.Elements
}

func NewConversionContext(doc *gltfutil.Document, options *GLTFToUSDOption) *ConversionContext {
	if options == nil {
		options = DefaultGLTFToUSDOption()
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversionContext{
		Doc:       doc,
		Options:   options,
		Logger:    logger,
		Report:    &Report{},
		Materials: map[uint32]string{},
		MeshPaths: map[uint32]map[int]string{},
		textures:  newTextureCache(options),
		decoded:   map[uint32]*gltfutil.Elements{},
	}
}

// floats returns a predecoded accessor, decoding it on demand otherwise.
func (c *ConversionContext) floats(i uint32) (*gltfutil.Elements, error) {
	if e, ok := c.decoded[i]; ok {
		return e, nil
	}
	return c.Doc.ReadFloats(i)
}

func (c *ConversionContext) warn(msg string, fields ...zap.Field) {
	c.Logger.Debug(msg, fields...)
	c.Report.Warn(msg)
}

func (c *ConversionContext) recoverable(err error) {
	c.Logger.Debug("recoverable error", zap.Error(err))
	c.Report.Add(err)
}
