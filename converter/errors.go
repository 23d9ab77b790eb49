package converter

import (
	"fmt"
	"strings"

	"github.com/qmuntal/gltf"
)

// CyclicHierarchyError is returned when a node is reached again through its own children.
type CyclicHierarchyError struct {
	Node  uint32
	Chain []uint32
}

func (e *CyclicHierarchyError) Error() string {
	s := make([]string, len(e.Chain))
	for i, n := range e.Chain {
		s[i] = fmt.Sprint(n)
	}
	return fmt.Sprintf("cyclic hierarchy: node %d is its own ancestor (%s -> %d)", e.Node, strings.Join(s, " -> "), e.Node)
}

// UnsupportedAnimationTargetError is recorded for channels animating a property
// other than translation, rotation or scale. The channel is skipped.
type UnsupportedAnimationTargetError struct {
	Animation int
	Channel   int
	Path      string
}

func (e *UnsupportedAnimationTargetError) Error() string {
	return fmt.Sprintf("animation %d channel %d: unsupported target path %q", e.Animation, e.Channel, e.Path)
}

// UnsupportedPrimitiveModeError is recorded for non-triangle primitives. The primitive is skipped.
type UnsupportedPrimitiveModeError struct {
	Mesh      uint32
	Primitive int
	Mode      gltf.PrimitiveMode
}

func (e *UnsupportedPrimitiveModeError) Error() string {
	return fmt.Sprintf("mesh %d primitive %d: unsupported primitive mode %d", e.Mesh, e.Primitive, e.Mode)
}
