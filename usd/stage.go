package usd

import (
	"fmt"
	"math"
	"strings"

	"github.com/binzume/gltf2usd/converter"
	"github.com/binzume/gltf2usd/geom"
	"github.com/pkg/errors"
)

const (
	opTransform = "xformOp:transform"
	opTranslate = "xformOp:translate"
	opOrient    = "xformOp:orient"
	opScale     = "xformOp:scale"
	opOrder     = "xformOpOrder"

	surfaceShader = "pbrMat1"
)

// Stage is an in-memory USD layer built from converter output.
type Stage struct {
	DefaultPrim        string
	UpAxis             string
	StartTimeCode      float64
	EndTimeCode        float64
	TimeCodesPerSecond float64

	root  *Prim
	prims map[string]*Prim
	// local transforms of xforms that may switch to TRS ops
	transforms map[string]geom.Matrix4
}

var _ converter.Emitter = (*Stage)(nil)

func NewStage() *Stage {
	root := newPrim(nil, "", "")
	return &Stage{
		UpAxis:             "Y",
		TimeCodesPerSecond: converter.TimeCodesPerSecond,
		root:               root,
		prims:              map[string]*Prim{"/": root},
		transforms:         map[string]geom.Matrix4{},
	}
}

// Root returns the pseudo-root; its children are the top-level prims.
func (s *Stage) Root() *Prim {
	return s.root
}

func (s *Stage) Prim(path string) *Prim {
	return s.prims[path]
}

// DefinePrim returns the prim at path, creating it when needed. The parent must
// already exist. An existing prim keeps its type unless it has none.
func (s *Stage) DefinePrim(path, typeName string) (*Prim, error) {
	if p, ok := s.prims[path]; ok {
		if p.TypeName == "" {
			p.TypeName = typeName
		}
		return p, nil
	}
	if !strings.HasPrefix(path, "/") || path == "/" || strings.HasSuffix(path, "/") {
		return nil, errors.Errorf("invalid prim path %q", path)
	}
	parent, ok := s.prims[ParentPath(path)]
	if !ok {
		return nil, errors.Errorf("parent of %s is not defined", path)
	}
	p := newPrim(parent, path[strings.LastIndexByte(path, '/')+1:], typeName)
	parent.addChild(p)
	s.prims[path] = p
	return p, nil
}

func (s *Stage) AddXform(x *converter.Xform) error {
	p, err := s.DefinePrim(x.Path, "Xform")
	if err != nil {
		return err
	}
	if x.Node < 0 && p.parent == s.root && s.DefaultPrim == "" {
		s.DefaultPrim = p.Name
	}
	p.SetAttribute(opTransform, "matrix4d", Matrix4d(x.Transform))
	p.SetUniform(opOrder, "token[]", []Token{opTransform})
	s.transforms[x.Path] = x.Transform
	return nil
}

var surfaceInputTypes = map[string]string{
	"diffuseColor":  "color3f",
	"emissiveColor": "color3f",
	"normal":        "normal3f",
}

func surfaceInputType(name string) string {
	if t, ok := surfaceInputTypes[name]; ok {
		return t
	}
	return "float"
}

func (s *Stage) AddMaterial(m *converter.Material) error {
	if _, err := s.DefinePrim(ParentPath(m.Path), "Scope"); err != nil {
		return err
	}
	mat, err := s.DefinePrim(m.Path, "Material")
	if err != nil {
		return err
	}
	pbr, err := s.DefinePrim(m.Path+"/"+surfaceShader, "Shader")
	if err != nil {
		return err
	}
	pbr.SetUniform("info:id", "token", Token("UsdPreviewSurface"))
	pbr.SetAttribute("inputs:useSpecularWorkflow", "int", 0)
	pbr.SetAttribute("inputs:diffuseColor", "color3f", Float3(m.DiffuseColor))
	pbr.SetAttribute("inputs:opacity", "float", Float(m.Opacity))
	if m.OpacityCutoff > 0 {
		pbr.SetAttribute("inputs:opacityThreshold", "float", Float(m.OpacityCutoff))
	}
	pbr.SetAttribute("inputs:metallic", "float", Float(m.Metallic))
	pbr.SetAttribute("inputs:roughness", "float", Float(m.Roughness))
	pbr.SetAttribute("inputs:emissiveColor", "color3f", Float3(m.EmissiveColor))
	pbr.SetAttribute("outputs:surface", "token", nil)
	pbr.SetAttribute("outputs:displacement", "token", nil)
	mat.Connect("outputs:surface", "token", pbr.Path+".outputs:surface")
	mat.Connect("outputs:displacement", "token", pbr.Path+".outputs:displacement")

	for _, t := range m.Textures {
		if err := s.addTexture(m.Path, pbr, t); err != nil {
			return errors.Wrapf(err, "%s %s", m.Path, t.Name)
		}
	}
	return nil
}

func (s *Stage) primvarReader(materialPath string, texCoord uint32) (*Prim, error) {
	varname := fmt.Sprintf("st%d", texCoord)
	path := materialPath + "/primvar_" + varname
	if p, ok := s.prims[path]; ok {
		return p, nil
	}
	p, err := s.DefinePrim(path, "Shader")
	if err != nil {
		return nil, err
	}
	p.SetUniform("info:id", "token", Token("UsdPrimvarReader_float2"))
	p.SetAttribute("inputs:fallback", "float2", Float2{0, 0})
	p.SetAttribute("inputs:varname", "token", Token(varname))
	p.SetAttribute("outputs:result", "float2", nil)
	return p, nil
}

func (s *Stage) addTexture(materialPath string, pbr *Prim, t *converter.TextureInput) error {
	reader, err := s.primvarReader(materialPath, t.TexCoord)
	if err != nil {
		return err
	}
	tex, err := s.DefinePrim(materialPath+"/"+t.Name, "Shader")
	if err != nil {
		return err
	}
	tex.SetUniform("info:id", "token", Token("UsdUVTexture"))
	tex.SetAttribute("inputs:file", "asset", Asset(t.File))
	tex.SetAttribute("inputs:wrapS", "token", Token(t.WrapS))
	tex.SetAttribute("inputs:wrapT", "token", Token(t.WrapT))
	tex.Connect("inputs:st", "float2", reader.Path+".outputs:result")
	tex.SetAttribute("inputs:fallback", "float4", fallback4(t.Fallback))
	tex.SetAttribute("inputs:scale", "float4", Float4(t.Scale))
	for _, o := range t.Outputs {
		typ := "float"
		if o.Channel == "rgb" {
			typ = "float3"
		}
		out := "outputs:" + o.Channel
		if tex.Property(out) == nil {
			tex.SetAttribute(out, typ, nil)
		}
		pbr.Connect("inputs:"+o.Input, surfaceInputType(o.Input), tex.Path+"."+out)
	}
	return nil
}

// fallback4 pads a 1 or 3 component fallback to the float4 UsdUVTexture expects.
func fallback4(v []float64) Float4 {
	switch len(v) {
	case 0:
		return Float4{0, 0, 0, 1}
	case 1:
		return Float4{v[0], v[0], v[0], 1}
	case 2, 3:
		f := Float4{0, 0, 0, 1}
		copy(f[:], v)
		return f
	}
	return Float4{v[0], v[1], v[2], v[3]}
}

func (s *Stage) AddMesh(m *converter.Mesh) error {
	p, err := s.DefinePrim(m.Path, "Mesh")
	if err != nil {
		return err
	}
	points := make([]Float3, len(m.Points))
	for i, v := range m.Points {
		points[i] = Float3{v.X, v.Y, v.Z}
	}
	p.SetAttribute("points", "point3f[]", points)
	if ext, ok := extent(points); ok {
		p.SetAttribute("extent", "float3[]", ext)
	}
	if len(m.Normals) > 0 {
		normals := make([]Float3, len(m.Normals))
		for i, v := range m.Normals {
			normals[i] = Float3{v.X, v.Y, v.Z}
		}
		p.SetAttribute("normals", "normal3f[]", normals).Interpolation = "vertex"
	}
	if len(m.Colors) > 0 {
		colors := make([]Float3, len(m.Colors))
		for i, c := range m.Colors {
			colors[i] = Float3(c)
		}
		p.SetAttribute("primvars:displayColor", "color3f[]", colors).Interpolation = "vertex"
	}
	for i, uvs := range m.UVs {
		if uvs == nil {
			continue
		}
		st := make([]Float2, len(uvs))
		for j, uv := range uvs {
			st[j] = Float2(uv)
		}
		p.SetAttribute(fmt.Sprintf("primvars:st%d", i), "texCoord2f[]", st).Interpolation = "vertex"
	}
	p.SetAttribute("faceVertexCounts", "int[]", m.FaceVertexCounts)
	p.SetAttribute("faceVertexIndices", "int[]", m.FaceVertexIndices)
	p.SetUniform("subdivisionScheme", "token", Token("none"))
	if m.DoubleSided {
		p.SetUniform("doubleSided", "bool", true)
	}
	if m.Material != "" {
		p.AddAPISchema("MaterialBindingAPI")
		p.SetRelationship("material:binding", m.Material)
	}
	return nil
}

func extent(points []Float3) ([]Float3, bool) {
	if len(points) == 0 {
		return nil, false
	}
	lo := Float3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := Float3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range points {
		for i := range p {
			lo[i] = math.Min(lo[i], p[i])
			hi[i] = math.Max(hi[i], p[i])
		}
	}
	return []Float3{lo, hi}, true
}

func matrices(src []*geom.Matrix4) []Matrix4d {
	m := make([]Matrix4d, len(src))
	for i, v := range src {
		m[i] = Matrix4d(*v)
	}
	return m
}

// AddSkeleton defines the Skeleton prim and binds the meshes to it. The parent
// of the skeleton becomes a SkelRoot, and bound meshes must sit below it.
func (s *Stage) AddSkeleton(sk *converter.Skeleton) error {
	rootPath := ParentPath(sk.Path)
	root, err := s.DefinePrim(rootPath, "SkelRoot")
	if err != nil {
		return err
	}
	if root.TypeName == "Xform" {
		root.TypeName = "SkelRoot"
	}
	p, err := s.DefinePrim(sk.Path, "Skeleton")
	if err != nil {
		return err
	}
	joints := make([]Token, len(sk.JointPaths))
	for i, j := range sk.JointPaths {
		joints[i] = Token(j)
	}
	p.SetUniform("joints", "token[]", joints)
	p.SetUniform("bindTransforms", "matrix4d[]", matrices(sk.BindMatrices))
	p.SetUniform("restTransforms", "matrix4d[]", matrices(sk.RestMatrices))

	for _, b := range sk.Bindings {
		mesh := s.prims[b.MeshPath]
		if mesh == nil {
			return errors.Errorf("skeleton %s: mesh %s is not defined", sk.Path, b.MeshPath)
		}
		if !strings.HasPrefix(b.MeshPath, rootPath+"/") {
			return errors.Errorf("skeleton %s: mesh %s is outside SkelRoot %s", sk.Path, b.MeshPath, rootPath)
		}
		mesh.AddAPISchema("SkelBindingAPI")
		weights := make([]Float, len(b.JointWeights))
		for i, w := range b.JointWeights {
			weights[i] = Float(w)
		}
		a := mesh.SetAttribute("primvars:skel:jointIndices", "int[]", b.JointIndices)
		a.Interpolation, a.ElementSize = "vertex", b.ElementSize
		a = mesh.SetAttribute("primvars:skel:jointWeights", "float[]", weights)
		a.Interpolation, a.ElementSize = "vertex", b.ElementSize
		mesh.SetRelationship("skel:skeleton", sk.Path)
	}
	return nil
}

// useTRSOps replaces the transform op of an xform with translate, orient and
// scale ops holding the decomposed transform as their default values.
func (s *Stage) useTRSOps(p *Prim) {
	if p.Property(opTransform) == nil {
		return
	}
	m := s.transforms[p.Path]
	t, r, sc := m.Decompose()
	p.RemoveProperty(opTransform)
	p.RemoveProperty(opOrder)
	p.SetAttribute(opTranslate, "double3", Double3{t.X, t.Y, t.Z})
	p.SetAttribute(opOrient, "quatf", Quatf{r.W, r.X, r.Y, r.Z})
	p.SetAttribute(opScale, "float3", Float3{sc.X, sc.Y, sc.Z})
	p.SetUniform(opOrder, "token[]", []Token{opTranslate, opOrient, opScale})
}

func (s *Stage) AddTrack(t *converter.KeyframeTrack) error {
	p := s.prims[t.Path]
	if p == nil || p.TypeName != "Xform" {
		return errors.Errorf("animated prim %s is not an xform", t.Path)
	}
	s.useTRSOps(p)

	var op string
	switch t.Property {
	case converter.PropertyTranslation:
		op = opTranslate
	case converter.PropertyRotation:
		op = opOrient
	case converter.PropertyScale:
		op = opScale
	default:
		return errors.Errorf("%s: unknown property %v", t.Path, t.Property)
	}
	a := p.Property(op)
	a.TimeSamples = a.TimeSamples[:0]
	for _, k := range t.Keyframes {
		var v any
		switch t.Property {
		case converter.PropertyTranslation:
			v = Double3{k.Vector.X, k.Vector.Y, k.Vector.Z}
		case converter.PropertyRotation:
			v = Quatf{k.Rotation.W, k.Rotation.X, k.Rotation.Y, k.Rotation.Z}
		default:
			v = Float3{k.Vector.X, k.Vector.Y, k.Vector.Z}
		}
		a.TimeSamples = append(a.TimeSamples, TimeSample{Time: k.Time, Value: v})
	}
	return nil
}

func (s *Stage) SetTimeRange(r converter.TimeRange) error {
	s.StartTimeCode = r.Start
	s.EndTimeCode = r.End
	return nil
}
