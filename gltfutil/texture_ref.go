package gltfutil

import (
	"encoding/base64"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

// TextureRef names a texture either by file path or by glTF texture index.
type TextureRef interface {
	isTextureRef()
}

// DirectTexture refers to an image file on disk.
type DirectTexture struct {
	Path string
}

// IndexedTexture refers to doc.Textures[Index].
type IndexedTexture struct {
	Index    uint32
	TexCoord uint32
}

func (DirectTexture) isTextureRef()  {}
func (IndexedTexture) isTextureRef() {}

// ResolvedTexture is the image source and sampler settings of a TextureRef.
// Either Path or Data is set.
type ResolvedTexture struct {
	Name     string
	Path     string
	Data     []byte
	MimeType string
	Sampler  *gltf.Sampler
	TexCoord uint32
}

// ResolveTexture looks up the image behind ref.
func (d *Document) ResolveTexture(ref TextureRef) (*ResolvedTexture, error) {
	switch r := ref.(type) {
	case DirectTexture:
		return &ResolvedTexture{Name: trimExt(filepath.Base(r.Path)), Path: r.Path}, nil
	case IndexedTexture:
		return d.resolveIndexedTexture(r)
	}
	return nil, errors.Errorf("unknown texture reference %T", ref)
}

func (d *Document) resolveIndexedTexture(r IndexedTexture) (*ResolvedTexture, error) {
	tex, err := d.Texture(r.Index)
	if err != nil {
		return nil, err
	}
	if tex.Source == nil {
		return nil, errors.Errorf("texture %d has no source image", r.Index)
	}
	img, err := d.Image(*tex.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %d", r.Index)
	}
	res := &ResolvedTexture{Name: img.Name, MimeType: img.MimeType, TexCoord: r.TexCoord}
	if tex.Sampler != nil {
		if res.Sampler, err = d.Sampler(*tex.Sampler); err != nil {
			return nil, errors.Wrapf(err, "texture %d", r.Index)
		}
	}
	switch {
	case img.BufferView != nil:
		if res.Data, err = d.BufferViewBytes(*img.BufferView); err != nil {
			return nil, errors.Wrapf(err, "image %d", *tex.Source)
		}
	case strings.HasPrefix(img.URI, "data:"):
		if res.Data, res.MimeType, err = decodeDataURI(img.URI); err != nil {
			return nil, errors.Wrapf(err, "image %d", *tex.Source)
		}
	case img.URI != "":
		res.Path = img.URI
		if !filepath.IsAbs(res.Path) && d.BaseDir != "" {
			res.Path = filepath.Join(d.BaseDir, filepath.FromSlash(img.URI))
		}
		if res.Name == "" {
			res.Name = trimExt(filepath.Base(img.URI))
		}
	default:
		return nil, errors.Errorf("image %d has neither uri nor bufferView", *tex.Source)
	}
	if res.Name == "" {
		res.Name = "texture_" + strconv.Itoa(int(r.Index))
	}
	return res, nil
}

func decodeDataURI(uri string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.New("unsupported data uri")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	return data, strings.TrimSuffix(header, ";base64"), nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
