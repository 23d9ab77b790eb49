package converter

import (
	"fmt"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
)

const RootPath = "/root"

type SceneNode struct {
	Index    uint32
	Name     string
	Path     string
	Local    geom.Matrix4
	Parent   int // node index, -1 for scene roots
	Children []uint32
}

// NodeMap maps node table indices to their resolved scene nodes.
// Only BuildSceneGraph adds entries.
type NodeMap struct {
	nodes map[uint32]*SceneNode
	order []uint32
}

func newNodeMap() *NodeMap {
	return &NodeMap{nodes: map[uint32]*SceneNode{}}
}

func (m *NodeMap) add(n *SceneNode) {
	m.nodes[n.Index] = n
	m.order = append(m.order, n.Index)
}

func (m *NodeMap) Get(index uint32) (*SceneNode, bool) {
	n, ok := m.nodes[index]
	return n, ok
}

func (m *NodeMap) Len() int {
	return len(m.order)
}

// Nodes returns the nodes in depth-first emission order.
func (m *NodeMap) Nodes() []*SceneNode {
	nodes := make([]*SceneNode, len(m.order))
	for i, idx := range m.order {
		nodes[i] = m.nodes[idx]
	}
	return nodes
}

type SceneGraph struct {
	Roots    []*SceneNode
	Nodes    *NodeMap
	Warnings []string
}

type sceneGraphBuilder struct {
	doc      *gltfutil.Document
	nodes    *NodeMap
	chain    []uint32
	onChain  map[uint32]bool
	warnings []string
}

// ChildNodeSet returns every node index listed as a child of some node.
func ChildNodeSet(doc *gltfutil.Document) map[uint32]bool {
	children := map[uint32]bool{}
	for _, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			children[c] = true
		}
	}
	return children
}

// BuildSceneGraph resolves the node hierarchy of the default scene under rootPath.
// Scene roots that are also children of another node are emitted only below their parent.
// Without any scene, every node that is nobody's child is a root.
func BuildSceneGraph(doc *gltfutil.Document, rootPath string) (*SceneGraph, error) {
	if err := checkAcyclic(doc); err != nil {
		return nil, err
	}
	b := &sceneGraphBuilder{doc: doc, nodes: newNodeMap(), onChain: map[uint32]bool{}}
	children := ChildNodeSet(doc)

	var roots []uint32
	scene, err := doc.DefaultScene()
	if err != nil {
		return nil, errors.Wrap(err, "scene")
	}
	if scene != nil {
		roots = scene.Nodes
	} else {
		for i := range doc.Nodes {
			roots = append(roots, uint32(i))
		}
	}

	g := &SceneGraph{Nodes: b.nodes}
	for _, idx := range roots {
		if children[idx] {
			continue
		}
		if _, done := b.nodes.Get(idx); done {
			b.warnings = append(b.warnings, fmt.Sprintf("node %d listed twice in scene", idx))
			continue
		}
		n, err := b.visit(idx, rootPath, -1)
		if err != nil {
			return nil, err
		}
		g.Roots = append(g.Roots, n)
	}
	g.Warnings = b.warnings
	return g, nil
}

func (b *sceneGraphBuilder) visit(idx uint32, parentPath string, parent int) (*SceneNode, error) {
	if b.onChain[idx] {
		return nil, &CyclicHierarchyError{Node: idx, Chain: append([]uint32(nil), b.chain...)}
	}
	src, err := b.doc.Node(idx)
	if err != nil {
		if parent < 0 {
			return nil, errors.Wrap(err, "scene root")
		}
		return nil, errors.Wrapf(err, "child of node %d", parent)
	}

	n := &SceneNode{
		Index:  idx,
		Name:   src.Name,
		Path:   fmt.Sprintf("%s/node%d", parentPath, idx),
		Local:  *NodeLocalMatrix(src),
		Parent: parent,
	}
	b.nodes.add(n)

	b.chain = append(b.chain, idx)
	b.onChain[idx] = true
	defer func() {
		b.chain = b.chain[:len(b.chain)-1]
		delete(b.onChain, idx)
	}()

	for _, c := range src.Children {
		if b.onChain[c] {
			return nil, &CyclicHierarchyError{Node: c, Chain: append([]uint32(nil), b.chain...)}
		}
		if _, done := b.nodes.Get(c); done {
			b.warnings = append(b.warnings, fmt.Sprintf("node %d has more than one parent, kept under its first", c))
			continue
		}
		if _, err := b.visit(c, n.Path, int(idx)); err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}

// checkAcyclic walks the whole node table so that cycles unreachable from any
// scene root are reported too.
func checkAcyclic(doc *gltfutil.Document) error {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make([]int, len(doc.Nodes))
	var chain []uint32
	var walk func(idx uint32) error
	walk = func(idx uint32) error {
		if int(idx) >= len(state) {
			return nil // reported by the builder if reachable
		}
		switch state[idx] {
		case visiting:
			return &CyclicHierarchyError{Node: idx, Chain: append([]uint32(nil), chain...)}
		case visited:
			return nil
		}
		state[idx] = visiting
		chain = append(chain, idx)
		if n := doc.Nodes[idx]; n != nil {
			for _, c := range n.Children {
				if err := walk(c); err != nil {
					return err
				}
			}
		}
		chain = chain[:len(chain)-1]
		state[idx] = visited
		return nil
	}
	for i := range doc.Nodes {
		if err := walk(uint32(i)); err != nil {
			return err
		}
	}
	return nil
}
