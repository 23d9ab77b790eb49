package gltfutil

import "sort"

// VertexAttribute is the closed set of primitive attributes the converter reads.
type VertexAttribute int

const (
	AttributePosition VertexAttribute = iota
	AttributeNormal
	AttributeTangent
	AttributeTexCoord0
	AttributeTexCoord1
	AttributeColor0
	AttributeJoints0
	AttributeWeights0
)

var attributeNames = [...]string{
	AttributePosition:  "POSITION",
	AttributeNormal:    "NORMAL",
	AttributeTangent:   "TANGENT",
	AttributeTexCoord0: "TEXCOORD_0",
	AttributeTexCoord1: "TEXCOORD_1",
	AttributeColor0:    "COLOR_0",
	AttributeJoints0:   "JOINTS_0",
	AttributeWeights0:  "WEIGHTS_0",
}

func (a VertexAttribute) String() string {
	if a < 0 || int(a) >= len(attributeNames) {
		return "UNKNOWN"
	}
	return attributeNames[a]
}

// ParseVertexAttribute maps a glTF attribute semantic to a VertexAttribute.
func ParseVertexAttribute(name string) (VertexAttribute, bool) {
	for i, n := range attributeNames {
		if n == name {
			return VertexAttribute(i), true
		}
	}
	return 0, false
}

// Attributes maps the recognized attributes of one primitive to accessor indices.
type Attributes map[VertexAttribute]uint32

// ParseAttributes splits a glTF attribute map into known attributes and the
// sorted names of the ones it does not recognize.
func ParseAttributes(src map[string]uint32) (Attributes, []string) {
	attrs := Attributes{}
	var unknown []string
	for name, acc := range src {
		if a, ok := ParseVertexAttribute(name); ok {
			attrs[a] = acc
		} else {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return attrs, unknown
}

func (a Attributes) Get(attr VertexAttribute) (uint32, bool) {
	acc, ok := a[attr]
	return acc, ok
}
