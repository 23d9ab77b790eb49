package converter

import (
	"context"
	"sort"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

type gltfToUsd struct {
	options *GLTFToUSDOption
}

func NewGLTFToUSDConverter(options *GLTFToUSDOption) *gltfToUsd {
	if options == nil {
		options = DefaultGLTFToUSDOption()
	}
	return &gltfToUsd{
		options: options,
	}
}

// converted holds everything handed to the emitter, so that nothing is emitted
// when the conversion fails.
type converted struct {
	xforms    []*Xform
	materials []*Material
	meshes    []*Mesh
	skeletons []*Skeleton
	tracks    []*KeyframeTrack
	timeRange TimeRange
}

// Convert resolves doc and emits the result to out. Recoverable problems are
// returned in the report; any returned error means nothing was emitted.
func (c *gltfToUsd) Convert(ctx context.Context, doc *gltfutil.Document, out Emitter) (*Report, error) {
	cc := NewConversionContext(doc, c.options)
	res, err := cc.convert(ctx)
	if err != nil {
		return cc.Report, err
	}
	if err := res.emit(out); err != nil {
		return cc.Report, errors.Wrap(err, "emit")
	}
	cc.Report.Log(cc.Logger)
	return cc.Report, nil
}

func (c *ConversionContext) convert(ctx context.Context) (*converted, error) {
	log := c.Logger
	graph, err := BuildSceneGraph(c.Doc, RootPath)
	if err != nil {
		return nil, err
	}
	c.Graph = graph
	for _, w := range graph.Warnings {
		c.warn(w)
	}
	for mesh, names := range c.Doc.UnknownAttributes {
		log.Debug("ignored attributes", zap.Uint32("mesh", mesh), zap.Strings("names", names))
	}
	log.Debug("scene graph", zap.Int("roots", len(graph.Roots)), zap.Int("nodes", graph.Nodes.Len()))

	if err := c.predecode(ctx); err != nil {
		return nil, err
	}

	res := &converted{}
	scale := c.Options.UnitScale
	if scale == 0 {
		scale = 100
	}
	res.xforms = append(res.xforms, &Xform{Path: RootPath, Name: "root", Node: -1, Transform: *geom.NewScaleMatrix4(scale, scale, scale)})
	for _, n := range graph.Nodes.Nodes() {
		res.xforms = append(res.xforms, &Xform{Path: n.Path, Name: n.Name, Node: int(n.Index), Transform: n.Local})
	}

	if c.Options.ExportMaterials {
		res.materials = c.ConvertMaterials()
		log.Debug("materials", zap.Int("count", len(res.materials)))
	}
	if res.meshes, err = c.ConvertMeshes(); err != nil {
		return nil, err
	}
	log.Debug("meshes", zap.Int("count", len(res.meshes)))

	for _, n := range graph.Nodes.Nodes() {
		src, _ := c.Doc.Node(n.Index)
		if src.Skin == nil {
			continue
		}
		skel, err := c.ResolveSkin(n)
		if err != nil {
			return nil, err
		}
		res.skeletons = append(res.skeletons, skel)
	}
	log.Debug("skeletons", zap.Int("count", len(res.skeletons)))

	if res.tracks, res.timeRange, err = c.SampleAnimations(); err != nil {
		return nil, err
	}
	log.Debug("animation", zap.Int("tracks", len(res.tracks)),
		zap.Float64("start", res.timeRange.Start), zap.Float64("end", res.timeRange.End))
	return res, nil
}

// predecode decodes the float accessors used by the active scene in parallel.
func (c *ConversionContext) predecode(ctx context.Context) error {
	set := map[uint32]bool{}
	for _, n := range c.Graph.Nodes.Nodes() {
		src, _ := c.Doc.Node(n.Index)
		if src.Mesh != nil {
			if m, err := c.Doc.Mesh(*src.Mesh); err == nil {
				for pi, p := range m.Primitives {
					if p == nil || p.Mode != gltf.PrimitiveTriangles {
						continue
					}
					for a, acc := range c.Doc.PrimitiveAttributes(*src.Mesh, pi) {
						if a != gltfutil.AttributeJoints0 {
							set[acc] = true
						}
					}
				}
			}
		}
		if src.Skin != nil {
			if s, err := c.Doc.Skin(*src.Skin); err == nil && s.InverseBindMatrices != nil {
				set[*s.InverseBindMatrices] = true
			}
		}
	}
	for ai, a := range c.Doc.Animations {
		if a == nil {
			continue
		}
		for ci, ch := range a.Channels {
			if ch == nil || ch.Target.Node == nil || ch.Sampler == nil || int(*ch.Sampler) >= len(a.Samplers) {
				continue
			}
			if _, ok := c.Graph.Nodes.Get(*ch.Target.Node); !ok {
				continue
			}
			if _, ok := channelProperty(c.Doc.ChannelPath(ai, ci)); !ok {
				continue
			}
			if s := a.Samplers[*ch.Sampler]; s != nil && s.Input != nil && s.Output != nil {
				set[*s.Input] = true
				set[*s.Output] = true
			}
		}
	}

	indices := make([]uint32, 0, len(set))
	for i := range set {
		indices = append(indices, i)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	decoded, err := c.Doc.DecodeAll(ctx, indices, c.Options.Parallelism)
	if err != nil {
		return err
	}
	c.decoded = decoded
	return nil
}

func (r *converted) emit(out Emitter) error {
	for _, x := range r.xforms {
		if err := out.AddXform(x); err != nil {
			return err
		}
	}
	for _, m := range r.materials {
		if err := out.AddMaterial(m); err != nil {
			return err
		}
	}
	for _, m := range r.meshes {
		if err := out.AddMesh(m); err != nil {
			return err
		}
	}
	for _, s := range r.skeletons {
		if err := out.AddSkeleton(s); err != nil {
			return err
		}
	}
	for _, t := range r.tracks {
		if err := out.AddTrack(t); err != nil {
			return err
		}
	}
	return out.SetTimeRange(r.timeRange)
}
