package gltfutil

import "fmt"

// RangeError reports an accessor element or buffer view that reaches past the
// bytes it is allowed to read.
type RangeError struct {
	Accessor int // -1 when the failing range is a buffer view
	Element  int
	Offset   int
	Size     int
	Limit    int
}

func (e *RangeError) Error() string {
	if e.Accessor < 0 {
		return fmt.Sprintf("range error: bufferView [%d, %d) exceeds buffer length %d", e.Offset, e.Offset+e.Size, e.Limit)
	}
	return fmt.Sprintf("range error: accessor %d element %d [%d, %d) exceeds limit %d",
		e.Accessor, e.Element, e.Offset, e.Offset+e.Size, e.Limit)
}

// UnsupportedFormatError reports an accessor layout the decoder cannot read.
type UnsupportedFormatError struct {
	Accessor int
	Reason   string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: accessor %d: %s", e.Accessor, e.Reason)
}

// IndexError is returned by table lookups with an out of range index.
type IndexError struct {
	Table string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range (len=%d)", e.Table, e.Index, e.Len)
}
