package converter

import (
	"fmt"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const influencesPerVertex = 4

// nodeParents maps every node to its first parent.
func nodeParents(doc *gltfutil.Document) map[uint32]uint32 {
	parents := map[uint32]uint32{}
	for i, n := range doc.Nodes {
		if n == nil {
			continue
		}
		for _, c := range n.Children {
			if _, ok := parents[c]; !ok {
				parents[c] = uint32(i)
			}
		}
	}
	return parents
}

// JointPaths names each joint parentJointPath/name, where the parent joint is the
// nearest ancestor node that is also listed in joints.
func JointPaths(doc *gltfutil.Document, joints []uint32) ([]string, error) {
	parents := nodeParents(doc)
	position := make(map[uint32]int, len(joints))
	for i, j := range joints {
		if _, dup := position[j]; !dup {
			position[j] = i
		}
	}

	paths := make([]string, len(joints))
	used := map[string]bool{}
	resolving := map[int]bool{}
	var resolve func(i int, chain []uint32) (string, error)
	resolve = func(i int, chain []uint32) (string, error) {
		if paths[i] != "" {
			return paths[i], nil
		}
		if resolving[i] {
			return "", &CyclicHierarchyError{Node: joints[i], Chain: chain}
		}
		resolving[i] = true
		node, err := doc.Node(joints[i])
		if err != nil {
			return "", errors.Wrapf(err, "joint %d", i)
		}
		name := Identifier(node.Name)
		if name == "" {
			name = fmt.Sprintf("joint_%d", i)
		}

		prefix := ""
		visited := map[uint32]bool{joints[i]: true}
		for p, ok := parents[joints[i]]; ok; p, ok = parents[p] {
			if visited[p] {
				return "", &CyclicHierarchyError{Node: p, Chain: append(chain, joints[i])}
			}
			visited[p] = true
			if pi, isJoint := position[p]; isJoint && pi != i {
				if prefix, err = resolve(pi, append(chain, joints[i])); err != nil {
					return "", err
				}
				prefix += "/"
				break
			}
		}

		path := prefix + name
		if used[path] {
			path = fmt.Sprintf("%s_%d", path, i)
		}
		used[path] = true
		paths[i] = path
		return path, nil
	}

	for i := range joints {
		if _, err := resolve(i, nil); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// BindMatrices inverts the inverse bind matrices of a skin. Without an accessor
// every bind matrix is the identity.
func (c *ConversionContext) BindMatrices(skinIndex uint32, joints int, ibm *uint32) ([]*geom.Matrix4, error) {
	binds := make([]*geom.Matrix4, joints)
	if ibm == nil {
		for i := range binds {
			binds[i] = geom.NewMatrix4()
		}
		return binds, nil
	}
	e, err := c.floats(*ibm)
	if err != nil {
		return nil, errors.Wrapf(err, "skin %d inverseBindMatrices", skinIndex)
	}
	if e.Components != 16 {
		return nil, errors.Wrapf(&gltfutil.UnsupportedFormatError{Accessor: int(*ibm), Reason: "inverseBindMatrices must be MAT4"},
			"skin %d", skinIndex)
	}
	if e.Count != joints {
		return nil, errors.Errorf("skin %d: %d inverse bind matrices for %d joints", skinIndex, e.Count, joints)
	}
	for i := range binds {
		if binds[i], err = e.Matrix4(i).Inverse(); err != nil {
			return nil, errors.Wrapf(err, "skin %d joint %d", skinIndex, i)
		}
	}
	return binds, nil
}

// ResolveSkin builds the skeleton of a skinned node and binds every emitted
// primitive of its mesh that carries JOINTS_0 and WEIGHTS_0.
func (c *ConversionContext) ResolveSkin(node *SceneNode) (*Skeleton, error) {
	src, err := c.Doc.Node(node.Index)
	if err != nil {
		return nil, err
	}
	if src.Skin == nil {
		return nil, errors.Errorf("node %d has no skin", node.Index)
	}
	skin, err := c.Doc.Skin(*src.Skin)
	if err != nil {
		return nil, errors.Wrapf(err, "node %d", node.Index)
	}

	skel := &Skeleton{
		Path: fmt.Sprintf("%s/skel%d", RootPath, node.Index),
		Node: node.Index,
		Skin: *src.Skin,
	}
	if skel.BindMatrices, err = c.BindMatrices(*src.Skin, len(skin.Joints), skin.InverseBindMatrices); err != nil {
		return nil, err
	}
	if skel.JointPaths, err = JointPaths(c.Doc, skin.Joints); err != nil {
		return nil, errors.Wrapf(err, "skin %d", *src.Skin)
	}
	for i, j := range skin.Joints {
		jn, err := c.Doc.Node(j)
		if err != nil {
			return nil, errors.Wrapf(err, "skin %d joint %d", *src.Skin, i)
		}
		skel.RestMatrices = append(skel.RestMatrices, NodeLocalMatrix(jn))
	}

	if src.Mesh == nil {
		c.warn(fmt.Sprintf("skinned node %d has no mesh", node.Index))
		return skel, nil
	}
	mesh, err := c.Doc.Mesh(*src.Mesh)
	if err != nil {
		return nil, errors.Wrapf(err, "node %d", node.Index)
	}
	for pi := range mesh.Primitives {
		meshPath, ok := c.MeshPaths[node.Index][pi]
		if !ok {
			continue
		}
		attrs := c.Doc.PrimitiveAttributes(*src.Mesh, pi)
		jointsAcc, hasJoints := attrs.Get(gltfutil.AttributeJoints0)
		weightsAcc, hasWeights := attrs.Get(gltfutil.AttributeWeights0)
		if !hasJoints || !hasWeights {
			c.warn(fmt.Sprintf("mesh %d primitive %d: skinned without JOINTS_0/WEIGHTS_0", *src.Mesh, pi),
				zap.Uint32("node", node.Index))
			continue
		}
		binding, err := c.skinBinding(meshPath, jointsAcc, weightsAcc, len(skin.Joints))
		if err != nil {
			return nil, errors.Wrapf(err, "mesh %d primitive %d", *src.Mesh, pi)
		}
		skel.Bindings = append(skel.Bindings, binding)
	}
	return skel, nil
}

func (c *ConversionContext) skinBinding(meshPath string, jointsAcc, weightsAcc uint32, joints int) (*SkinBinding, error) {
	indices, n, err := c.Doc.ReadUints(jointsAcc)
	if err != nil {
		return nil, err
	}
	if n != influencesPerVertex {
		return nil, &gltfutil.UnsupportedFormatError{Accessor: int(jointsAcc), Reason: "JOINTS_0 must be VEC4"}
	}
	weights, err := c.floats(weightsAcc)
	if err != nil {
		return nil, err
	}
	if weights.Components != influencesPerVertex {
		return nil, &gltfutil.UnsupportedFormatError{Accessor: int(weightsAcc), Reason: "WEIGHTS_0 must be VEC4"}
	}
	if weights.Count*influencesPerVertex != len(indices) {
		return nil, errors.Errorf("JOINTS_0 has %d vertices, WEIGHTS_0 has %d", len(indices)/influencesPerVertex, weights.Count)
	}

	b := &SkinBinding{
		MeshPath:     meshPath,
		ElementSize:  influencesPerVertex,
		JointIndices: make([]int, len(indices)),
		JointWeights: append([]float64(nil), weights.Values...),
	}
	for i, j := range indices {
		if int(j) >= joints {
			return nil, &gltfutil.RangeError{Accessor: int(jointsAcc), Element: i / influencesPerVertex,
				Offset: int(j), Size: 1, Limit: joints}
		}
		b.JointIndices[i] = int(j)
	}
	return b, nil
}
