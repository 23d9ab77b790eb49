package gltfutil

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/binzume/gltf2usd/geom"
	"github.com/qmuntal/gltf"
)

// ComponentCount returns the number of components of one element.
func ComponentCount(t gltf.AccessorType) (int, error) {
	switch t {
	case gltf.AccessorScalar:
		return 1, nil
	case gltf.AccessorVec2:
		return 2, nil
	case gltf.AccessorVec3:
		return 3, nil
	case gltf.AccessorVec4:
		return 4, nil
	case gltf.AccessorMat2:
		return 4, nil
	case gltf.AccessorMat3:
		return 9, nil
	case gltf.AccessorMat4:
		return 16, nil
	}
	return 0, fmt.Errorf("unknown accessor type %d", t)
}

// ComponentSize returns the byte width of one component.
func ComponentSize(t gltf.ComponentType) (int, error) {
	switch t {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1, nil
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2, nil
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4, nil
	}
	return 0, fmt.Errorf("unknown component type %d", t)
}

// Elements is a decoded accessor: Count tuples of Components values each,
// stored flat in Values.
type Elements struct {
	Count      int
	Components int
	Values     []float64
}

func (e *Elements) At(i int) []float64 {
	return e.Values[i*e.Components : (i+1)*e.Components]
}

func (e *Elements) Vec2(i int) [2]float64 {
	v := e.At(i)
	return [2]float64{v[0], v[1]}
}

func (e *Elements) Vec3(i int) *geom.Vector3 {
	return geom.NewVector3FromSlice(e.At(i))
}

func (e *Elements) Vec4(i int) [4]float64 {
	v := e.At(i)
	return [4]float64{v[0], v[1], v[2], v[3]}
}

// Quaternion reads a (x, y, z, w) element.
func (e *Elements) Quaternion(i int) *geom.Quaternion {
	v := e.At(i)
	return geom.NewQuaternion(v[0], v[1], v[2], v[3])
}

// Matrix4 reads a column-major MAT4 element.
func (e *Elements) Matrix4(i int) *geom.Matrix4 {
	return geom.NewMatrix4FromSlice(e.At(i))
}

type layout struct {
	components int
	size       int
	stride     int
	start      int
	viewEnd    int
}

func accessorLayout(index int, acc *gltf.Accessor, view *gltf.BufferView, buf []byte) (*layout, error) {
	if acc.Sparse != nil {
		return nil, &UnsupportedFormatError{Accessor: index, Reason: "sparse accessors are not supported"}
	}
	if view == nil {
		return nil, &UnsupportedFormatError{Accessor: index, Reason: "accessor without bufferView"}
	}
	components, err := ComponentCount(acc.Type)
	if err != nil {
		return nil, &UnsupportedFormatError{Accessor: index, Reason: err.Error()}
	}
	size, err := ComponentSize(acc.ComponentType)
	if err != nil {
		return nil, &UnsupportedFormatError{Accessor: index, Reason: err.Error()}
	}
	viewStart := int(view.ByteOffset)
	viewEnd := viewStart + int(view.ByteLength)
	if viewEnd > len(buf) {
		return nil, &RangeError{Accessor: -1, Offset: viewStart, Size: int(view.ByteLength), Limit: len(buf)}
	}
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = components * size
	} else if stride < components*size {
		return nil, &UnsupportedFormatError{Accessor: index,
			Reason: fmt.Sprintf("byteStride %d is smaller than element size %d", stride, components*size)}
	}
	return &layout{
		components: components,
		size:       size,
		stride:     stride,
		start:      viewStart + int(acc.ByteOffset),
		viewEnd:    viewEnd,
	}, nil
}

// element returns the bytes of element i after checking them against the view and buffer.
func (l *layout) element(index, i int, buf []byte) ([]byte, error) {
	offset := l.start + i*l.stride
	n := l.components * l.size
	if offset+n > l.viewEnd {
		return nil, &RangeError{Accessor: index, Element: i, Offset: offset, Size: n, Limit: l.viewEnd}
	}
	if offset+n > len(buf) {
		return nil, &RangeError{Accessor: index, Element: i, Offset: offset, Size: n, Limit: len(buf)}
	}
	return buf[offset : offset+n], nil
}

// DecodeAccessor reads every element of acc as float64 tuples. Normalized
// integer components are mapped to [0, 1] or [-1, 1]. index only labels errors.
func DecodeAccessor(index int, acc *gltf.Accessor, view *gltf.BufferView, buf []byte) (*Elements, error) {
	l, err := accessorLayout(index, acc, view, buf)
	if err != nil {
		return nil, err
	}
	count := int(acc.Count)
	values := make([]float64, count*l.components)
	for i := 0; i < count; i++ {
		data, err := l.element(index, i, buf)
		if err != nil {
			return nil, err
		}
		for c := 0; c < l.components; c++ {
			values[i*l.components+c] = readFloat(acc.ComponentType, acc.Normalized, data[c*l.size:])
		}
	}
	return &Elements{Count: count, Components: l.components, Values: values}, nil
}

// DecodeUints reads every element of acc as unsigned integers, flattened.
// Only unsigned integer component types are accepted.
func DecodeUints(index int, acc *gltf.Accessor, view *gltf.BufferView, buf []byte) ([]uint32, int, error) {
	switch acc.ComponentType {
	case gltf.ComponentUbyte, gltf.ComponentUshort, gltf.ComponentUint:
	default:
		return nil, 0, &UnsupportedFormatError{Accessor: index,
			Reason: fmt.Sprintf("component type %d is not an unsigned integer", acc.ComponentType)}
	}
	l, err := accessorLayout(index, acc, view, buf)
	if err != nil {
		return nil, 0, err
	}
	count := int(acc.Count)
	values := make([]uint32, count*l.components)
	for i := 0; i < count; i++ {
		data, err := l.element(index, i, buf)
		if err != nil {
			return nil, 0, err
		}
		for c := 0; c < l.components; c++ {
			values[i*l.components+c] = readUint(acc.ComponentType, data[c*l.size:])
		}
	}
	return values, l.components, nil
}

// DecodeIndices reads a SCALAR unsigned index accessor.
func DecodeIndices(index int, acc *gltf.Accessor, view *gltf.BufferView, buf []byte) ([]uint32, error) {
	if acc.Type != gltf.AccessorScalar {
		return nil, &UnsupportedFormatError{Accessor: index, Reason: "index accessor must be SCALAR"}
	}
	values, _, err := DecodeUints(index, acc, view, buf)
	return values, err
}

func readFloat(t gltf.ComponentType, normalized bool, data []byte) float64 {
	switch t {
	case gltf.ComponentByte:
		v := float64(int8(data[0]))
		if normalized {
			return math.Max(v/127.0, -1.0)
		}
		return v
	case gltf.ComponentUbyte:
		v := float64(data[0])
		if normalized {
			return v / 255.0
		}
		return v
	case gltf.ComponentShort:
		v := float64(int16(binary.LittleEndian.Uint16(data)))
		if normalized {
			return math.Max(v/32767.0, -1.0)
		}
		return v
	case gltf.ComponentUshort:
		v := float64(binary.LittleEndian.Uint16(data))
		if normalized {
			return v / 65535.0
		}
		return v
	case gltf.ComponentUint:
		v := float64(binary.LittleEndian.Uint32(data))
		if normalized {
			return v / 4294967295.0
		}
		return v
	default:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data)))
	}
}

func readUint(t gltf.ComponentType, data []byte) uint32 {
	switch t {
	case gltf.ComponentUbyte:
		return uint32(data[0])
	case gltf.ComponentUshort:
		return uint32(binary.LittleEndian.Uint16(data))
	default:
		return binary.LittleEndian.Uint32(data)
	}
}
