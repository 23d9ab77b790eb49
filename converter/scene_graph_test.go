package converter

import (
	"encoding/json"
	"testing"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeLocalMatrix_TRS(t *testing.T) {
	m := NodeLocalMatrix(&gltf.Node{
		Scale:       [3]float32{2, 2, 2},
		Rotation:    [4]float32{0, 0, 0, 1},
		Translation: [3]float32{1, 0, 0},
	})
	p := m.ApplyTo(geom.NewVector3(0, 1, 0))
	assert.InDelta(t, 1, p.X, 1e-9)
	assert.InDelta(t, 2, p.Y, 1e-9)
	assert.InDelta(t, 0, p.Z, 1e-9)
}

func TestNodeLocalMatrix_Defaults(t *testing.T) {
	assert.True(t, NodeLocalMatrix(&gltf.Node{Scale: gltf.DefaultScale}).IsIdentity())
	assert.True(t, NodeLocalMatrix(&gltf.Node{Matrix: identityMatrix, Scale: gltf.DefaultScale, Rotation: gltf.DefaultRotation}).IsIdentity())

	m := NodeLocalMatrix(&gltf.Node{Translation: [3]float32{0, 0, 3}, Scale: gltf.DefaultScale})
	assert.True(t, m.ApproxEqual(geom.NewTranslateMatrix4(0, 0, 3), 1e-9))
}

func TestNodeLocalMatrix_FromJSON(t *testing.T) {
	var nodes []*gltf.Node
	require.NoError(t, json.Unmarshal([]byte(`[
		{"translation": [1, 0, 0]},
		{"translation": [1, 0, 0], "scale": [0, 0, 0]}
	]`), &nodes))

	absent := NodeLocalMatrix(nodes[0]).ApplyTo(geom.NewVector3(0, 1, 0))
	assert.InDelta(t, 1, absent.X, 1e-9)
	assert.InDelta(t, 1, absent.Y, 1e-9)

	// an explicit zero scale hides the node
	hidden := NodeLocalMatrix(nodes[1]).ApplyTo(geom.NewVector3(0, 1, 0))
	assert.InDelta(t, 1, hidden.X, 1e-9)
	assert.InDelta(t, 0, hidden.Y, 1e-9)
	assert.InDelta(t, 0, hidden.Z, 1e-9)
}

func TestNodeLocalMatrix_ExplicitMatrix(t *testing.T) {
	src := [16]float32{2, 0, 0, 0, 0, 3, 0, 0, 0, 0, 4, 0, 5, 6, 7, 1}
	m := NodeLocalMatrix(&gltf.Node{Matrix: src, Translation: [3]float32{9, 9, 9}})
	assert.Equal(t, geom.NewMatrix4FromArray(src), m)
}

func TestBuildSceneGraph_ChildNotDuplicated(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0"},
		Nodes:  []*gltf.Node{{Name: "A", Children: []uint32{1}}, {Name: "B"}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0, 1}}},
	})
	g, err := BuildSceneGraph(doc, RootPath)
	require.NoError(t, err)

	require.Len(t, g.Roots, 1)
	assert.Equal(t, uint32(0), g.Roots[0].Index)
	assert.Equal(t, 2, g.Nodes.Len())

	b, ok := g.Nodes.Get(1)
	require.True(t, ok)
	assert.Equal(t, "/root/node0/node1", b.Path)
	assert.Equal(t, 0, b.Parent)
	assert.Equal(t, []uint32{1}, g.Roots[0].Children)
}

func TestBuildSceneGraph_FiltersByNodeIndex(t *testing.T) {
	// scene position 1 holds node 2; node 1 is a child of node 2.
	doc := newDocument(t, &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0"},
		Nodes:  []*gltf.Node{{}, {}, {Children: []uint32{1}}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0, 2}}},
	})
	g, err := BuildSceneGraph(doc, RootPath)
	require.NoError(t, err)

	var paths []string
	for _, n := range g.Nodes.Nodes() {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{"/root/node0", "/root/node2", "/root/node2/node1"}, paths)
}

func TestBuildSceneGraph_Cycle(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0"},
		Nodes:  []*gltf.Node{{Children: []uint32{1}}, {Children: []uint32{0}}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0, 1}}},
	})
	_, err := BuildSceneGraph(doc, RootPath)
	var ce *CyclicHierarchyError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint32(0), ce.Node)
	assert.Equal(t, []uint32{0, 1}, ce.Chain)

	self := newDocument(t, &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Nodes: []*gltf.Node{{}, {Children: []uint32{1}}},
	})
	_, err = BuildSceneGraph(self, RootPath)
	assert.ErrorAs(t, err, &ce)
}

func TestBuildSceneGraph_NoScene(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset: gltf.Asset{Version: "2.0"},
		Nodes: []*gltf.Node{{Children: []uint32{2}}, {}, {}},
	})
	g, err := BuildSceneGraph(doc, "/world")
	require.NoError(t, err)
	require.Len(t, g.Roots, 2)
	assert.Equal(t, "/world/node0", g.Roots[0].Path)
	assert.Equal(t, "/world/node1", g.Roots[1].Path)
	n, ok := g.Nodes.Get(2)
	require.True(t, ok)
	assert.Equal(t, "/world/node0/node2", n.Path)
}

func TestBuildSceneGraph_SharedChild(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0"},
		Nodes:  []*gltf.Node{{Children: []uint32{2}}, {Children: []uint32{2}}, {}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0, 1}}},
	})
	g, err := BuildSceneGraph(doc, RootPath)
	require.NoError(t, err)
	n, _ := g.Nodes.Get(2)
	assert.Equal(t, "/root/node0/node2", n.Path)
	assert.Len(t, g.Warnings, 1)
	assert.Equal(t, 3, g.Nodes.Len())
}

func TestBuildSceneGraph_BadIndex(t *testing.T) {
	doc := newDocument(t, &gltf.Document{
		Asset:  gltf.Asset{Version: "2.0"},
		Nodes:  []*gltf.Node{{Children: []uint32{7}}},
		Scenes: []*gltf.Scene{{Nodes: []uint32{0}}},
	})
	_, err := BuildSceneGraph(doc, RootPath)
	var ie *gltfutil.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 7, ie.Index)
	assert.Contains(t, err.Error(), "child of node 0")
}
