package converter

import (
	"fmt"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// ConvertMeshes converts the triangle primitives of every mesh node in the
// scene graph. Other topologies are reported and skipped.
func (c *ConversionContext) ConvertMeshes() ([]*Mesh, error) {
	var meshes []*Mesh
	for _, node := range c.Graph.Nodes.Nodes() {
		src, err := c.Doc.Node(node.Index)
		if err != nil {
			return nil, err
		}
		if src.Mesh == nil {
			continue
		}
		m, err := c.Doc.Mesh(*src.Mesh)
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", node.Index)
		}
		for pi, p := range m.Primitives {
			if p == nil {
				continue
			}
			if p.Mode != gltf.PrimitiveTriangles {
				c.recoverable(&UnsupportedPrimitiveModeError{Mesh: *src.Mesh, Primitive: pi, Mode: p.Mode})
				continue
			}
			mesh, err := c.convertPrimitive(node, *src.Mesh, pi, p)
			if err != nil {
				return nil, errors.Wrapf(err, "mesh %d primitive %d", *src.Mesh, pi)
			}
			if mesh == nil {
				continue
			}
			if c.MeshPaths[node.Index] == nil {
				c.MeshPaths[node.Index] = map[int]string{}
			}
			c.MeshPaths[node.Index][pi] = mesh.Path
			meshes = append(meshes, mesh)
		}
	}
	return meshes, nil
}

func (c *ConversionContext) convertPrimitive(node *SceneNode, meshIndex uint32, pi int, p *gltf.Primitive) (*Mesh, error) {
	attrs := c.Doc.PrimitiveAttributes(meshIndex, pi)
	if _, ok := attrs.Get(gltfutil.AttributePosition); !ok {
		c.warn(fmt.Sprintf("mesh %d primitive %d has no POSITION", meshIndex, pi), zap.Uint32("node", node.Index))
		return nil, nil
	}

	mesh := &Mesh{
		Path:      fmt.Sprintf("%s/mesh_primitive%d", node.Path, pi),
		Node:      node.Index,
		Mesh:      meshIndex,
		Primitive: pi,
	}
	var vertexCount int
	for _, a := range sortedAttributes(attrs) {
		acc := attrs[a]
		if err := c.checkComponents(a, acc); err != nil {
			return nil, err
		}
		switch a {
		case gltfutil.AttributePosition:
			e, err := c.floats(acc)
			if err != nil {
				return nil, err
			}
			mesh.Points = vectors(e)
			vertexCount = e.Count
		case gltfutil.AttributeNormal:
			e, err := c.floats(acc)
			if err != nil {
				return nil, err
			}
			mesh.Normals = vectors(e)
		case gltfutil.AttributeColor0:
			e, err := c.floats(acc)
			if err != nil {
				return nil, err
			}
			mesh.Colors = make([][3]float64, e.Count)
			for i := range mesh.Colors {
				v := e.At(i)
				mesh.Colors[i] = [3]float64{v[0], v[1], v[2]}
			}
		case gltfutil.AttributeTexCoord0, gltfutil.AttributeTexCoord1:
			e, err := c.floats(acc)
			if err != nil {
				return nil, err
			}
			uvs := make([][2]float64, e.Count)
			for i := range uvs {
				uvs[i] = e.Vec2(i)
				if c.Options.FlipV {
					uvs[i][1] = 1 - uvs[i][1]
				}
			}
			mesh.UVs[a-gltfutil.AttributeTexCoord0] = uvs
		case gltfutil.AttributeTangent, gltfutil.AttributeJoints0, gltfutil.AttributeWeights0:
			// tangents are not exported; skin attributes are read by ResolveSkin.
		}
	}

	var indices []uint32
	if p.Indices != nil {
		var err error
		if indices, err = c.Doc.ReadIndices(*p.Indices); err != nil {
			return nil, err
		}
	} else {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return nil, errors.Errorf("%d indices is not a multiple of 3", len(indices))
	}
	mesh.FaceVertexIndices = make([]int, len(indices))
	for i, v := range indices {
		if int(v) >= vertexCount {
			return nil, errors.Errorf("index %d refers to vertex %d of %d", i, v, vertexCount)
		}
		mesh.FaceVertexIndices[i] = int(v)
	}
	mesh.FaceVertexCounts = make([]int, len(indices)/3)
	for i := range mesh.FaceVertexCounts {
		mesh.FaceVertexCounts[i] = 3
	}

	if p.Material != nil {
		mesh.Material = c.Materials[*p.Material]
		if m, err := c.Doc.Material(*p.Material); err == nil {
			mesh.DoubleSided = m.DoubleSided
		} else {
			return nil, err
		}
	}
	return mesh, nil
}

var attributeComponents = map[gltfutil.VertexAttribute][]int{
	gltfutil.AttributePosition:  {3},
	gltfutil.AttributeNormal:    {3},
	gltfutil.AttributeColor0:    {3, 4},
	gltfutil.AttributeTexCoord0: {2},
	gltfutil.AttributeTexCoord1: {2},
}

func (c *ConversionContext) checkComponents(a gltfutil.VertexAttribute, acc uint32) error {
	want, ok := attributeComponents[a]
	if !ok {
		return nil
	}
	e, err := c.floats(acc)
	if err != nil {
		return err
	}
	for _, n := range want {
		if e.Components == n {
			return nil
		}
	}
	return &gltfutil.UnsupportedFormatError{Accessor: int(acc), Reason: fmt.Sprintf("%v with %d components", a, e.Components)}
}

// sortedAttributes lists the attributes of a primitive in enum order.
func sortedAttributes(attrs gltfutil.Attributes) []gltfutil.VertexAttribute {
	var list []gltfutil.VertexAttribute
	for a := gltfutil.AttributePosition; a <= gltfutil.AttributeWeights0; a++ {
		if _, ok := attrs[a]; ok {
			list = append(list, a)
		}
	}
	return list
}

func vectors(e *gltfutil.Elements) []*geom.Vector3 {
	v := make([]*geom.Vector3, e.Count)
	for i := range v {
		v[i] = e.Vec3(i)
	}
	return v
}
