package gltfutil

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allAccessorTypes = []gltf.AccessorType{
	gltf.AccessorScalar, gltf.AccessorVec2, gltf.AccessorVec3, gltf.AccessorVec4,
	gltf.AccessorMat2, gltf.AccessorMat3, gltf.AccessorMat4,
}

var allComponentTypes = []gltf.ComponentType{
	gltf.ComponentByte, gltf.ComponentUbyte, gltf.ComponentShort,
	gltf.ComponentUshort, gltf.ComponentUint, gltf.ComponentFloat,
}

func writeComponent(buf []byte, t gltf.ComponentType, v float64) {
	switch t {
	case gltf.ComponentByte:
		buf[0] = byte(int8(v))
	case gltf.ComponentUbyte:
		buf[0] = byte(v)
	case gltf.ComponentShort:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case gltf.ComponentUshort:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case gltf.ComponentUint:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case gltf.ComponentFloat:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	}
}

func signed(t gltf.ComponentType) bool {
	return t == gltf.ComponentByte || t == gltf.ComponentShort || t == gltf.ComponentFloat
}

// buildAccessor writes count elements at the offsets the decoder will compute
// and returns the buffer, view, accessor and expected values.
func buildAccessor(at gltf.AccessorType, ct gltf.ComponentType, count, stride, viewOffset, accOffset int) ([]byte, *gltf.BufferView, *gltf.Accessor, []float64) {
	n, _ := ComponentCount(at)
	size, _ := ComponentSize(ct)
	effective := stride
	if effective == 0 {
		effective = n * size
	}
	length := accOffset + (count-1)*effective + n*size
	buf := make([]byte, viewOffset+length+3)
	var expected []float64
	for i := 0; i < count; i++ {
		for c := 0; c < n; c++ {
			v := float64((i*n + c) % 7)
			if signed(ct) {
				v -= 3
			}
			if ct == gltf.ComponentFloat {
				v += 0.25
			}
			writeComponent(buf[viewOffset+accOffset+i*effective+c*size:], ct, v)
			expected = append(expected, v)
		}
	}
	view := &gltf.BufferView{ByteOffset: uint32(viewOffset), ByteLength: uint32(length), ByteStride: uint32(stride)}
	acc := &gltf.Accessor{
		BufferView:    gltf.Index(0),
		ByteOffset:    uint32(accOffset),
		Count:         uint32(count),
		Type:          at,
		ComponentType: ct,
	}
	return buf, view, acc, expected
}

func TestDecodeAccessor_RoundTrip(t *testing.T) {
	for _, at := range allAccessorTypes {
		for _, ct := range allComponentTypes {
			t.Run(fmt.Sprintf("%d_%d", at, ct), func(t *testing.T) {
				buf, view, acc, expected := buildAccessor(at, ct, 5, 0, 8, 4)
				e, err := DecodeAccessor(0, acc, view, buf)
				require.NoError(t, err)
				assert.Equal(t, 5, e.Count)
				assert.Equal(t, expected, e.Values)
			})
		}
	}
}

func TestDecodeAccessor_StrideIndependent(t *testing.T) {
	for _, at := range allAccessorTypes {
		for _, ct := range allComponentTypes {
			n, _ := ComponentCount(at)
			size, _ := ComponentSize(ct)

			buf, view, acc, _ := buildAccessor(at, ct, 4, 0, 0, 0)
			packed, err := DecodeAccessor(0, acc, view, buf)
			require.NoError(t, err)

			buf, view, acc, _ = buildAccessor(at, ct, 4, n*size+4, 12, 0)
			padded, err := DecodeAccessor(0, acc, view, buf)
			require.NoError(t, err)

			assert.Equal(t, packed.Values, padded.Values, "type=%d component=%d", at, ct)
		}
	}
}

func TestDecodeAccessor_Normalized(t *testing.T) {
	buf := []byte{255, 0, 0x80, 0x7f}
	view := &gltf.BufferView{ByteLength: 4}

	acc := &gltf.Accessor{BufferView: gltf.Index(0), Count: 2, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentUbyte, Normalized: true}
	e, err := DecodeAccessor(0, acc, view, buf[:2])
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, e.Values)

	acc = &gltf.Accessor{BufferView: gltf.Index(0), ByteOffset: 2, Count: 2, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentByte, Normalized: true}
	e, err = DecodeAccessor(0, acc, view, buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1}, e.Values)
}

func TestDecodeAccessor_RangeError(t *testing.T) {
	buf, view, acc, _ := buildAccessor(gltf.AccessorVec3, gltf.ComponentFloat, 3, 0, 0, 0)

	t.Run("view too short", func(t *testing.T) {
		short := *view
		short.ByteLength -= 1
		_, err := DecodeAccessor(2, acc, &short, buf)
		var re *RangeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 2, re.Accessor)
		assert.Equal(t, 2, re.Element)
	})

	t.Run("count too large", func(t *testing.T) {
		big := *acc
		big.Count = 4
		_, err := DecodeAccessor(0, &big, view, buf)
		var re *RangeError
		assert.ErrorAs(t, err, &re)
	})

	t.Run("view outside buffer", func(t *testing.T) {
		moved := *view
		moved.ByteOffset = uint32(len(buf))
		_, err := DecodeAccessor(0, acc, &moved, buf)
		var re *RangeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, -1, re.Accessor)
	})
}

func TestDecodeAccessor_UnsupportedFormat(t *testing.T) {
	buf, view, acc, _ := buildAccessor(gltf.AccessorVec2, gltf.ComponentFloat, 2, 0, 0, 0)
	var ue *UnsupportedFormatError

	sparse := *acc
	sparse.Sparse = &gltf.Sparse{Count: 1}
	_, err := DecodeAccessor(0, &sparse, view, buf)
	assert.ErrorAs(t, err, &ue)

	badType := *acc
	badType.Type = gltf.AccessorType(99)
	_, err = DecodeAccessor(0, &badType, view, buf)
	assert.ErrorAs(t, err, &ue)

	badComponent := *acc
	badComponent.ComponentType = gltf.ComponentType(99)
	_, err = DecodeAccessor(0, &badComponent, view, buf)
	assert.ErrorAs(t, err, &ue)

	_, err = DecodeAccessor(0, acc, nil, buf)
	assert.ErrorAs(t, err, &ue)

	_, _, err = DecodeUints(0, acc, view, buf)
	assert.ErrorAs(t, err, &ue)
}

func TestDecodeUints(t *testing.T) {
	buf, view, acc, expected := buildAccessor(gltf.AccessorVec4, gltf.ComponentUshort, 3, 12, 0, 0)
	values, n, err := DecodeUints(0, acc, view, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, values, len(expected))
	for i := range values {
		assert.Equal(t, uint32(expected[i]), values[i])
	}

	_, err = DecodeIndices(0, acc, view, buf)
	var ue *UnsupportedFormatError
	assert.ErrorAs(t, err, &ue)

	buf, view, acc, _ = buildAccessor(gltf.AccessorScalar, gltf.ComponentUint, 6, 0, 0, 0)
	indices, err := DecodeIndices(0, acc, view, buf)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, indices)
}

func newTestDocument(t *testing.T, buf []byte, views []*gltf.BufferView, accs []*gltf.Accessor) *Document {
	t.Helper()
	doc, err := NewDocument(&gltf.Document{
		Asset:       gltf.Asset{Version: "2.0"},
		Buffers:     []*gltf.Buffer{{ByteLength: uint32(len(buf)), Data: buf}},
		BufferViews: views,
		Accessors:   accs,
	})
	require.NoError(t, err)
	return doc
}

func TestDocument_ReadFloats(t *testing.T) {
	buf, view, acc, expected := buildAccessor(gltf.AccessorVec3, gltf.ComponentFloat, 4, 16, 0, 0)
	doc := newTestDocument(t, buf, []*gltf.BufferView{view}, []*gltf.Accessor{acc})

	e, err := doc.ReadFloats(0)
	require.NoError(t, err)
	assert.Equal(t, expected, e.Values)
	assert.Equal(t, expected[3], e.Vec3(1).X)

	_, err = doc.ReadFloats(1)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "accessor", ie.Table)

	view.Buffer = 1
	_, err = doc.ReadFloats(0)
	var ue *UnsupportedFormatError
	assert.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "accessor 0")
}

func TestDocument_DecodeAll(t *testing.T) {
	buf, view, acc, expected := buildAccessor(gltf.AccessorVec4, gltf.ComponentFloat, 8, 0, 0, 0)
	accs := []*gltf.Accessor{acc, acc, acc, acc}
	doc := newTestDocument(t, buf, []*gltf.BufferView{view}, accs)

	res, err := doc.DecodeAll(context.Background(), []uint32{0, 1, 2, 3}, 2)
	require.NoError(t, err)
	require.Len(t, res, 4)
	for _, e := range res {
		assert.Equal(t, expected, e.Values)
	}

	_, err = doc.DecodeAll(context.Background(), []uint32{0, 7}, 0)
	var ie *IndexError
	assert.True(t, errors.As(err, &ie))
}
