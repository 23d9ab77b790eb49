package gltfutil

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"golang.org/x/sync/errgroup"
)

var supportedVersions = mustConstraint(">= 2.0, < 3.0")

var maxSupportedVersion = semver.MustParse("2.0")

func mustConstraint(c string) *semver.Constraints {
	cs, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return cs
}

// Document wraps a parsed glTF document with bounds-checked table lookups
// and primitive attributes parsed into VertexAttribute keys.
type Document struct {
	*gltf.Document

	// BaseDir resolves relative image URIs.
	BaseDir string

	// Attributes[mesh][primitive]
	Attributes [][]Attributes
	// UnknownAttributes lists attribute names ignored per mesh.
	UnknownAttributes map[uint32][]string

	// ChannelPaths[animation][channel] holds target paths as written in the
	// file. Empty for documents built in memory.
	ChannelPaths [][]string
}

// NewDocument validates the asset version and indexes primitive attributes.
func NewDocument(doc *gltf.Document) (*Document, error) {
	if doc == nil {
		return nil, errors.New("nil document")
	}
	if err := checkVersion(doc.Asset); err != nil {
		return nil, err
	}
	d := &Document{Document: doc, UnknownAttributes: map[uint32][]string{}}
	d.Attributes = make([][]Attributes, len(doc.Meshes))
	for mi, m := range doc.Meshes {
		if m == nil {
			continue
		}
		d.Attributes[mi] = make([]Attributes, len(m.Primitives))
		for pi, p := range m.Primitives {
			attrs, unknown := ParseAttributes(p.Attributes)
			d.Attributes[mi][pi] = attrs
			if len(unknown) > 0 {
				d.UnknownAttributes[uint32(mi)] = append(d.UnknownAttributes[uint32(mi)], unknown...)
			}
		}
	}
	return d, nil
}

func checkVersion(asset gltf.Asset) error {
	v, err := semver.NewVersion(asset.Version)
	if err != nil {
		return errors.Wrapf(err, "invalid asset version %q", asset.Version)
	}
	if !supportedVersions.Check(v) {
		return errors.Errorf("unsupported glTF version %s", asset.Version)
	}
	if asset.MinVersion != "" {
		mv, err := semver.NewVersion(asset.MinVersion)
		if err != nil {
			return errors.Wrapf(err, "invalid asset minVersion %q", asset.MinVersion)
		}
		if mv.GreaterThan(maxSupportedVersion) {
			return errors.Errorf("asset requires glTF %s", asset.MinVersion)
		}
	}
	return nil
}

// Load opens a .gltf or .glb file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := Decode(data, os.DirFS(filepath.Dir(path)))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	d.BaseDir = filepath.Dir(path)
	return d, nil
}

// Decode parses .gltf or .glb data. External buffers are read from fsys.
func Decode(data []byte, fsys fs.FS) (*Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(doc); err != nil {
		return nil, err
	}
	d, err := NewDocument(doc)
	if err != nil {
		return nil, err
	}
	if d.ChannelPaths, err = ReadChannelPaths(data); err != nil {
		return nil, err
	}
	return d, nil
}

func lookup[T any](table string, items []*T, i uint32) (*T, error) {
	if int(i) >= len(items) || items[i] == nil {
		return nil, &IndexError{Table: table, Index: int(i), Len: len(items)}
	}
	return items[i], nil
}

func (d *Document) Node(i uint32) (*gltf.Node, error)     { return lookup("node", d.Nodes, i) }
func (d *Document) Mesh(i uint32) (*gltf.Mesh, error)     { return lookup("mesh", d.Meshes, i) }
func (d *Document) Skin(i uint32) (*gltf.Skin, error)     { return lookup("skin", d.Skins, i) }
func (d *Document) Scene(i uint32) (*gltf.Scene, error)   { return lookup("scene", d.Scenes, i) }
func (d *Document) Image(i uint32) (*gltf.Image, error)   { return lookup("image", d.Images, i) }
func (d *Document) Buffer(i uint32) (*gltf.Buffer, error) { return lookup("buffer", d.Buffers, i) }

func (d *Document) Accessor(i uint32) (*gltf.Accessor, error) {
	return lookup("accessor", d.Accessors, i)
}

func (d *Document) BufferView(i uint32) (*gltf.BufferView, error) {
	return lookup("bufferView", d.BufferViews, i)
}

func (d *Document) Material(i uint32) (*gltf.Material, error) {
	return lookup("material", d.Materials, i)
}

func (d *Document) Texture(i uint32) (*gltf.Texture, error) {
	return lookup("texture", d.Textures, i)
}

func (d *Document) Sampler(i uint32) (*gltf.Sampler, error) {
	return lookup("sampler", d.Samplers, i)
}

func (d *Document) Animation(i uint32) (*gltf.Animation, error) {
	return lookup("animation", d.Animations, i)
}

// PrimitiveAttributes returns the parsed attributes of a primitive.
func (d *Document) PrimitiveAttributes(mesh uint32, prim int) Attributes {
	if int(mesh) >= len(d.Attributes) || prim >= len(d.Attributes[mesh]) {
		return Attributes{}
	}
	return d.Attributes[mesh][prim]
}

// DefaultScene returns doc.Scene, scene 0 when unset, or nil if there are no scenes.
func (d *Document) DefaultScene() (*gltf.Scene, error) {
	if d.Document.Scene != nil {
		return d.Scene(*d.Document.Scene)
	}
	if len(d.Scenes) == 0 {
		return nil, nil
	}
	return d.Scene(0)
}

// BufferBytes returns the primary buffer. Only buffer 0 is supported.
func (d *Document) BufferBytes() ([]byte, error) {
	b, err := d.Buffer(0)
	if err != nil {
		return nil, err
	}
	return b.Data, nil
}

// BufferViewBytes returns the bytes covered by a buffer view.
func (d *Document) BufferViewBytes(i uint32) ([]byte, error) {
	view, err := d.BufferView(i)
	if err != nil {
		return nil, err
	}
	if view.Buffer != 0 {
		return nil, errors.Errorf("bufferView %d: buffer %d is not supported", i, view.Buffer)
	}
	buf, err := d.BufferBytes()
	if err != nil {
		return nil, err
	}
	end := int(view.ByteOffset) + int(view.ByteLength)
	if end > len(buf) {
		return nil, &RangeError{Accessor: -1, Offset: int(view.ByteOffset), Size: int(view.ByteLength), Limit: len(buf)}
	}
	return buf[view.ByteOffset:end], nil
}

func (d *Document) resolveAccessor(i uint32) (*gltf.Accessor, *gltf.BufferView, []byte, error) {
	acc, err := d.Accessor(i)
	if err != nil {
		return nil, nil, nil, err
	}
	if acc.BufferView == nil {
		return acc, nil, nil, nil
	}
	view, err := d.BufferView(*acc.BufferView)
	if err != nil {
		return nil, nil, nil, err
	}
	if view.Buffer != 0 {
		return nil, nil, nil, &UnsupportedFormatError{Accessor: int(i), Reason: "only the primary buffer is supported"}
	}
	buf, err := d.BufferBytes()
	if err != nil {
		return nil, nil, nil, err
	}
	return acc, view, buf, nil
}

// ReadFloats decodes accessor i as float tuples.
func (d *Document) ReadFloats(i uint32) (*Elements, error) {
	acc, view, buf, err := d.resolveAccessor(i)
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	e, err := DecodeAccessor(int(i), acc, view, buf)
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	return e, nil
}

// ReadUints decodes accessor i as unsigned integers; returns the values and
// the component count of each element.
func (d *Document) ReadUints(i uint32) ([]uint32, int, error) {
	acc, view, buf, err := d.resolveAccessor(i)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "accessor %d", i)
	}
	v, n, err := DecodeUints(int(i), acc, view, buf)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "accessor %d", i)
	}
	return v, n, nil
}

func (d *Document) ReadIndices(i uint32) ([]uint32, error) {
	acc, view, buf, err := d.resolveAccessor(i)
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	v, err := DecodeIndices(int(i), acc, view, buf)
	if err != nil {
		return nil, errors.Wrapf(err, "accessor %d", i)
	}
	return v, nil
}

// DecodeAll decodes a set of accessors as floats concurrently. The buffer is
// only read, so workers share it without locking. parallelism <= 0 means no limit.
func (d *Document) DecodeAll(ctx context.Context, indices []uint32, parallelism int) (map[uint32]*Elements, error) {
	results := make([]*Elements, len(indices))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for n, i := range indices {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := d.ReadFloats(i)
			if err != nil {
				return err
			}
			results[n] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m := make(map[uint32]*Elements, len(indices))
	for n, i := range indices {
		m[i] = results[n]
	}
	return m, nil
}
