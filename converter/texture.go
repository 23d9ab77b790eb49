package converter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"

	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/blezek/tga"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"

	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type channel int

const (
	channelAll channel = iota
	channelRed
	channelGreen
	channelBlue
)

var channelPrefix = map[channel]string{
	channelRed:   "Occlusion_",
	channelGreen: "Roughness_",
	channelBlue:  "Metallic_",
}

type textureCache struct {
	options *GLTFToUSDOption
	assets  map[string]string
	images  map[string]*textureInfo
	names   map[string]bool
}

type textureInfo struct {
	data []byte
	ext  string
	mime string
	img  image.Image
	err  error
}

func newTextureCache(options *GLTFToUSDOption) *textureCache {
	return &textureCache{
		options: options,
		assets:  map[string]string{},
		images:  map[string]*textureInfo{},
		names:   map[string]bool{},
	}
}

func (c *textureCache) canSplit() bool {
	return c.options.ExportTextures && c.options.SplitMetallicRoughness
}

func sourceKey(tex *gltfutil.ResolvedTexture) string {
	if tex.Path != "" {
		return "file:" + tex.Path
	}
	return fmt.Sprintf("data:%s:%p", tex.Name, tex.Data)
}

// asset returns the asset path a material should reference for tex, writing
// the image (or one channel of it) into the texture directory when exporting.
func (c *textureCache) asset(tex *gltfutil.ResolvedTexture, ch channel) (string, error) {
	if !c.options.ExportTextures {
		if tex.Path == "" {
			return "", errors.Errorf("embedded image %s needs texture export", tex.Name)
		}
		return c.relative(tex.Path), nil
	}

	key := fmt.Sprintf("%s#%d", sourceKey(tex), ch)
	if a, ok := c.assets[key]; ok {
		return a, nil
	}
	info := c.load(tex)
	if info.err != nil {
		return "", info.err
	}

	var data []byte
	ext := info.ext
	if ch == channelAll && !c.options.TextureReCompress && c.options.TextureResolutionLimit <= 0 &&
		(info.ext == "png" || info.ext == "jpg") {
		data = info.data
	} else {
		img, err := c.decode(info)
		if err != nil {
			return "", err
		}
		img = limitSize(img, c.options.TextureResolutionLimit)
		if ch != channelAll {
			img = extractChannel(img, ch)
		}
		w := new(bytes.Buffer)
		if info.ext == "jpg" && ch == channelAll {
			err = jpeg.Encode(w, img, nil)
		} else {
			ext = "png"
			err = png.Encode(w, img)
		}
		if err != nil {
			return "", err
		}
		data = w.Bytes()
	}

	name := c.uniqueName(channelPrefix[ch] + tex.Name + "." + ext)
	dir := filepath.Join(c.options.OutputDir, c.options.TextureDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", err
	}
	a := filepath.ToSlash(filepath.Join(c.options.TextureDir, name))
	c.assets[key] = a
	return a, nil
}

func (c *textureCache) relative(path string) string {
	if c.options.OutputDir != "" {
		if rel, err := filepath.Rel(c.options.OutputDir, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

func (c *textureCache) uniqueName(name string) string {
	ext := filepath.Ext(name)
	base := Identifier(strings.TrimSuffix(name, ext))
	if base == "" {
		base = "texture"
	}
	n := base + ext
	for i := 1; c.names[n]; i++ {
		n = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	c.names[n] = true
	return n
}

func (c *textureCache) load(tex *gltfutil.ResolvedTexture) *textureInfo {
	key := sourceKey(tex)
	if t, ok := c.images[key]; ok {
		return t
	}
	t := &textureInfo{data: tex.Data}
	c.images[key] = t
	if t.data == nil {
		t.data, t.err = os.ReadFile(tex.Path)
		if t.err != nil {
			return t
		}
	}
	kind, err := filetype.Match(t.data)
	if err != nil {
		t.err = err
		return t
	}
	if kind == filetype.Unknown {
		// TGA has no magic number.
		if strings.EqualFold(filepath.Ext(tex.Path), ".tga") || tex.MimeType == "image/x-tga" {
			t.ext, t.mime = "tga", "image/x-tga"
			return t
		}
		t.err = errors.Errorf("unknown image format: %s", tex.Name)
		return t
	}
	t.ext, t.mime = kind.Extension, kind.MIME.Value
	if t.ext == "jpeg" {
		t.ext = "jpg"
	}
	return t
}

func (c *textureCache) decode(t *textureInfo) (image.Image, error) {
	if t.img != nil {
		return t.img, nil
	}
	var r io.Reader = bytes.NewReader(t.data)
	var err error
	if t.ext == "tga" {
		t.img, err = tga.Decode(r)
	} else {
		t.img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s image", t.ext)
	}
	return t.img, nil
}

func limitSize(img image.Image, limit int) image.Image {
	rect := img.Bounds()
	if limit <= 0 || (rect.Dx() <= limit && rect.Dy() <= limit) {
		return img
	}
	scale := float64(limit) / float64(max(rect.Dx(), rect.Dy()))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(rect.Dx())*scale)), max(1, int(float64(rect.Dy())*scale))))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Over, nil)
	return dst
}

// extractChannel returns one color channel of img as a grayscale image.
func extractChannel(img image.Image, ch channel) *image.Gray {
	rect := img.Bounds()
	dst := image.NewGray(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			var v uint8
			switch ch {
			case channelRed:
				v = c.R
			case channelGreen:
				v = c.G
			case channelBlue:
				v = c.B
			}
			dst.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return dst
}
