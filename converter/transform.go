package converter

import (
	"github.com/binzume/gltf2usd/geom"
	"github.com/qmuntal/gltf"
)

var identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// NodeLocalMatrix returns the explicit matrix of n when it has one, T * R * S otherwise.
// Scale is used as given: the decoder fills (1,1,1) for an absent field, and an
// explicit zero scale collapses the node.
func NodeLocalMatrix(n *gltf.Node) *geom.Matrix4 {
	if n.Matrix != [16]float32{} && n.Matrix != identityMatrix {
		return geom.NewMatrix4FromArray(n.Matrix)
	}
	return geom.NewTRSMatrix4(
		geom.NewVector3FromArray(n.Translation),
		geom.NewQuaternionFromArray(n.Rotation),
		geom.NewVector3FromArray(n.Scale))
}
