package converter

import (
	"testing"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skinnedDocument has a mesh node 0 skinned to joints 1 and 2.
// Node 3 sits between the two joints without being one.
func skinnedDocument(joints [][4]uint16, ibm bool) *gltf.Document {
	doc := gltf.NewDocument()
	attrs := writeTriangle(doc)
	if joints != nil {
		attrs["JOINTS_0"] = modeler.WriteJoints(doc, joints)
		attrs["WEIGHTS_0"] = modeler.WriteWeights(doc, [][4]float32{{0.5, 0.5, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}})
	}
	doc.Meshes = []*gltf.Mesh{{Primitives: []*gltf.Primitive{{Attributes: attrs}}}}

	skin := &gltf.Skin{Joints: []uint32{1, 2}}
	if ibm {
		skin.InverseBindMatrices = gltf.Index(writeMatrices(doc, []*geom.Matrix4{
			geom.NewTranslateMatrix4(0, -1, 0),
			geom.NewScaleMatrix4(2, 2, 2),
		}))
	}
	doc.Skins = []*gltf.Skin{skin}
	doc.Nodes = []*gltf.Node{
		{Name: "body", Mesh: gltf.Index(0), Skin: gltf.Index(0), Scale: gltf.DefaultScale},
		{Name: "hips", Translation: [3]float32{0, 1, 0}, Scale: gltf.DefaultScale, Children: []uint32{3}},
		{Translation: [3]float32{0, 0.5, 0}, Scale: gltf.DefaultScale},
		{Name: "spacer", Scale: gltf.DefaultScale, Children: []uint32{2}},
	}
	doc.Scenes[0].Nodes = []uint32{0, 1}
	return doc
}

func resolveSkinnedNode(t *testing.T, doc *gltf.Document) (*ConversionContext, *Skeleton, error) {
	t.Helper()
	c := newContext(t, doc)
	_, err := c.ConvertMeshes()
	require.NoError(t, err)
	node, ok := c.Graph.Nodes.Get(0)
	require.True(t, ok)
	skel, err := c.ResolveSkin(node)
	return c, skel, err
}

func TestResolveSkin(t *testing.T) {
	_, skel, err := resolveSkinnedNode(t, skinnedDocument([][4]uint16{{0, 1, 0, 0}, {1, 0, 0, 0}, {0, 0, 0, 0}}, true))
	require.NoError(t, err)

	assert.Equal(t, "/root/skel0", skel.Path)
	assert.Equal(t, []string{"hips", "hips/joint_1"}, skel.JointPaths)

	require.Len(t, skel.BindMatrices, 2)
	assert.True(t, skel.BindMatrices[0].ApproxEqual(geom.NewTranslateMatrix4(0, 1, 0), 1e-6))
	assert.True(t, skel.BindMatrices[1].ApproxEqual(geom.NewScaleMatrix4(0.5, 0.5, 0.5), 1e-6))

	require.Len(t, skel.RestMatrices, 2)
	assert.True(t, skel.RestMatrices[0].ApproxEqual(geom.NewTranslateMatrix4(0, 1, 0), 1e-6))
	assert.True(t, skel.RestMatrices[1].ApproxEqual(geom.NewTranslateMatrix4(0, 0.5, 0), 1e-6))

	require.Len(t, skel.Bindings, 1)
	b := skel.Bindings[0]
	assert.Equal(t, "/root/node0/mesh_primitive0", b.MeshPath)
	assert.Equal(t, 4, b.ElementSize)
	assert.Equal(t, []int{0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}, b.JointIndices)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, b.JointWeights)
}

func TestResolveSkin_NoInverseBindMatrices(t *testing.T) {
	_, skel, err := resolveSkinnedNode(t, skinnedDocument([][4]uint16{{0, 0, 0, 0}, {0, 0, 0, 0}, {1, 0, 0, 0}}, false))
	require.NoError(t, err)
	for _, m := range skel.BindMatrices {
		assert.True(t, m.IsIdentity())
	}
}

func TestResolveSkin_JointOutOfRange(t *testing.T) {
	_, _, err := resolveSkinnedNode(t, skinnedDocument([][4]uint16{{0, 0, 0, 0}, {0, 5, 0, 0}, {0, 0, 0, 0}}, true))
	var re *gltfutil.RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Element)
	assert.Equal(t, 2, re.Limit)
}

func TestResolveSkin_MissingWeights(t *testing.T) {
	c, skel, err := resolveSkinnedNode(t, skinnedDocument(nil, true))
	require.NoError(t, err)
	assert.Empty(t, skel.Bindings)
	require.Len(t, c.Report.Warnings(), 1)
	assert.Contains(t, c.Report.Warnings()[0], "JOINTS_0")
}

func TestBindMatrices_CountMismatch(t *testing.T) {
	doc := skinnedDocument(nil, true)
	doc.Skins[0].Joints = []uint32{1}
	c := newContext(t, doc)
	_, err := c.BindMatrices(0, 1, doc.Skins[0].InverseBindMatrices)
	assert.Error(t, err)

	singular := writeMatrices(doc, []*geom.Matrix4{geom.NewScaleMatrix4(0, 1, 1)})
	c = newContext(t, doc)
	_, err = c.BindMatrices(0, 1, &singular)
	assert.Error(t, err)
}

func TestJointPaths(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Nodes: []*gltf.Node{
			{Name: "Root", Children: []uint32{1, 2}},
			{Name: "Arm"},
			{Name: "Arm"},
			{Name: "Ünïcödé bone"},
		},
	})
	paths, err := JointPaths(doc, []uint32{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Root", "Root/Arm", "Root/Arm_2", "Unicode_bone"}, paths)

	// a child listed before its parent still gets the full path
	paths, err = JointPaths(doc, []uint32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"Root/Arm", "Root"}, paths)
}
