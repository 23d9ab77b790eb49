package converter

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/require"
)

// recordingEmitter keeps every call in order.
type recordingEmitter struct {
	calls     []string
	xforms    []*Xform
	materials []*Material
	meshes    []*Mesh
	skeletons []*Skeleton
	tracks    []*KeyframeTrack
	timeRange *TimeRange
}

func (r *recordingEmitter) AddXform(x *Xform) error {
	r.calls = append(r.calls, "xform "+x.Path)
	r.xforms = append(r.xforms, x)
	return nil
}

func (r *recordingEmitter) AddMaterial(m *Material) error {
	r.calls = append(r.calls, "material "+m.Path)
	r.materials = append(r.materials, m)
	return nil
}

func (r *recordingEmitter) AddMesh(m *Mesh) error {
	r.calls = append(r.calls, "mesh "+m.Path)
	r.meshes = append(r.meshes, m)
	return nil
}

func (r *recordingEmitter) AddSkeleton(s *Skeleton) error {
	r.calls = append(r.calls, "skeleton "+s.Path)
	r.skeletons = append(r.skeletons, s)
	return nil
}

func (r *recordingEmitter) AddTrack(t *KeyframeTrack) error {
	r.calls = append(r.calls, fmt.Sprintf("track %s %s", t.Path, t.Property))
	r.tracks = append(r.tracks, t)
	return nil
}

func (r *recordingEmitter) SetTimeRange(tr TimeRange) error {
	r.calls = append(r.calls, "range")
	r.timeRange = &tr
	return nil
}

func newDocument(t *testing.T, doc *gltf.Document) *gltfutil.Document {
	t.Helper()
	d, err := gltfutil.NewDocument(doc)
	require.NoError(t, err)
	return d
}

// newContext builds the scene graph of doc, ready for the later stages.
func newContext(t *testing.T, doc *gltf.Document) *ConversionContext {
	t.Helper()
	return contextFor(t, newDocument(t, doc))
}

func contextFor(t *testing.T, d *gltfutil.Document) *ConversionContext {
	t.Helper()
	c := NewConversionContext(d, nil)
	g, err := BuildSceneGraph(c.Doc, RootPath)
	require.NoError(t, err)
	c.Graph = g
	return c
}

func writeMatrices(doc *gltf.Document, mats []*geom.Matrix4) uint32 {
	a := make([][4]float32, len(mats)*4)
	for i, m := range mats {
		for col := 0; col < 4; col++ {
			a[i*4+col] = [4]float32{float32(m[col*4]), float32(m[col*4+1]), float32(m[col*4+2]), float32(m[col*4+3])}
		}
	}
	acc := modeler.WriteTangent(doc, a)
	doc.Accessors[acc].Type = gltf.AccessorMat4
	doc.Accessors[acc].Count /= 4
	doc.BufferViews[*doc.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func writeTriangle(doc *gltf.Document) map[string]uint32 {
	return map[string]uint32{
		"POSITION":   modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}),
		"TEXCOORD_0": modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0.25}, {0, 1}}),
	}
}

// float32Buffer packs values little-endian into a base64 data URI.
func float32Buffer(values ...float32) string {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf)
}
