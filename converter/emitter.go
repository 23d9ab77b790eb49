package converter

import (
	"github.com/binzume/gltf2usd/geom"
)

// Emitter receives the converted scene. Calls arrive in this order:
// AddXform for every node, AddMaterial, AddMesh, AddSkeleton, AddTrack, SetTimeRange.
type Emitter interface {
	AddXform(x *Xform) error
	AddMaterial(m *Material) error
	AddMesh(m *Mesh) error
	AddSkeleton(s *Skeleton) error
	AddTrack(t *KeyframeTrack) error
	SetTimeRange(r TimeRange) error
}

type Xform struct {
	Path      string
	Name      string
	Node      int // -1 for the synthetic root
	Transform geom.Matrix4
}

type Mesh struct {
	Path      string
	Node      uint32
	Mesh      uint32
	Primitive int

	Points  []*geom.Vector3
	Normals []*geom.Vector3
	Colors  [][3]float64
	// UVs[0] is st0, UVs[1] is st1.
	UVs [2][][2]float64

	FaceVertexCounts  []int
	FaceVertexIndices []int

	Material    string
	DoubleSided bool
}

type WrapMode string

const (
	WrapRepeat WrapMode = "repeat"
	WrapClamp  WrapMode = "clamp"
	WrapMirror WrapMode = "mirror"
)

// TextureOutput connects one channel group of a texture to a surface input.
type TextureOutput struct {
	Channel string // "rgb", "r", "g", "b", "a"
	Input   string // diffuseColor, opacity, metallic, roughness, emissiveColor
}

type TextureInput struct {
	Name     string
	File     string
	TexCoord uint32
	WrapS    WrapMode
	WrapT    WrapMode
	Outputs  []TextureOutput
	Fallback []float64
	Scale    [4]float64
}

// Material is a UsdPreviewSurface description.
type Material struct {
	Path          string
	Name          string
	DiffuseColor  [3]float64
	Opacity       float64
	OpacityCutoff float64 // > 0 for alpha mask
	Metallic      float64
	Roughness     float64
	EmissiveColor [3]float64
	Textures      []*TextureInput
}

// SkinBinding is the per-vertex joint influence of one mesh.
type SkinBinding struct {
	MeshPath     string
	ElementSize  int
	JointIndices []int
	JointWeights []float64
}

type Skeleton struct {
	Path         string
	Node         uint32
	Skin         uint32
	JointPaths   []string
	RestMatrices []*geom.Matrix4
	BindMatrices []*geom.Matrix4
	Bindings     []*SkinBinding
}

type Property int

const (
	PropertyTranslation Property = iota
	PropertyRotation
	PropertyScale
)

func (p Property) String() string {
	switch p {
	case PropertyTranslation:
		return "translation"
	case PropertyRotation:
		return "rotation"
	case PropertyScale:
		return "scale"
	}
	return "unknown"
}

// Keyframe holds Vector for translation and scale, Rotation for rotation.
// Time is in time codes.
type Keyframe struct {
	Time     float64
	Vector   geom.Vector3
	Rotation geom.Quaternion
}

type KeyframeTrack struct {
	Node      uint32
	Path      string
	Property  Property
	Keyframes []Keyframe
}

type TimeRange struct {
	Start float64
	End   float64
}
