package converter

import (
	"fmt"

	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

const MaterialsPath = "/Materials"

func wrapMode(m gltf.WrappingMode) WrapMode {
	switch m {
	case gltf.WrapClampToEdge:
		return WrapClamp
	case gltf.WrapMirroredRepeat:
		return WrapMirror
	}
	return WrapRepeat
}

func vec3(v [3]float32) [3]float64 {
	return [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
}

func (c *ConversionContext) convertMaterial(index uint32, m *gltf.Material) *Material {
	name := fmt.Sprintf("pbrmaterial%d", index)
	mat := &Material{
		Path:          MaterialsPath + "/" + name,
		Name:          m.Name,
		DiffuseColor:  [3]float64{1, 1, 1},
		Opacity:       1,
		Metallic:      1,
		Roughness:     1,
		EmissiveColor: vec3(m.EmissiveFactor),
	}
	if mat.Name == "" {
		mat.Name = name
	}

	pbr := m.PBRMetallicRoughness
	if pbr != nil {
		base := pbr.BaseColorFactorOrDefault()
		mat.DiffuseColor = [3]float64{float64(base[0]), float64(base[1]), float64(base[2])}
		if m.AlphaMode != gltf.AlphaOpaque {
			mat.Opacity = float64(base[3])
		}
		mat.Metallic = float64(pbr.MetallicFactorOrDefault())
		mat.Roughness = float64(pbr.RoughnessFactorOrDefault())
	}
	if m.AlphaMode == gltf.AlphaMask {
		mat.OpacityCutoff = float64(m.AlphaCutoffOrDefault())
	}

	if pbr != nil && pbr.BaseColorTexture != nil {
		outputs := []TextureOutput{{Channel: "rgb", Input: "diffuseColor"}}
		if m.AlphaMode != gltf.AlphaOpaque {
			outputs = append(outputs, TextureOutput{Channel: "a", Input: "opacity"})
		}
		base := pbr.BaseColorFactorOrDefault()
		c.addTexture(mat, "baseColorTexture", pbr.BaseColorTexture, channelAll, outputs,
			[]float64{mat.DiffuseColor[0], mat.DiffuseColor[1], mat.DiffuseColor[2]},
			[4]float64{float64(base[0]), float64(base[1]), float64(base[2]), float64(base[3])})
	}

	if pbr != nil && pbr.MetallicRoughnessTexture != nil {
		metallic := [4]float64{mat.Metallic, mat.Metallic, mat.Metallic, mat.Metallic}
		roughness := [4]float64{mat.Roughness, mat.Roughness, mat.Roughness, mat.Roughness}
		if c.textures.canSplit() {
			c.addTexture(mat, "metallicTexture", pbr.MetallicRoughnessTexture, channelBlue,
				[]TextureOutput{{Channel: "r", Input: "metallic"}}, []float64{mat.Metallic}, metallic)
			c.addTexture(mat, "roughnessTexture", pbr.MetallicRoughnessTexture, channelGreen,
				[]TextureOutput{{Channel: "r", Input: "roughness"}}, []float64{mat.Roughness}, roughness)
		} else {
			c.addTexture(mat, "metallicTexture", pbr.MetallicRoughnessTexture, channelAll,
				[]TextureOutput{{Channel: "b", Input: "metallic"}}, []float64{mat.Metallic}, metallic)
			c.addTexture(mat, "roughnessTexture", pbr.MetallicRoughnessTexture, channelAll,
				[]TextureOutput{{Channel: "g", Input: "roughness"}}, []float64{mat.Roughness}, roughness)
		}
	}

	if occ := m.OcclusionTexture; occ != nil && occ.Index != nil {
		ch := channelAll
		if c.textures.canSplit() {
			ch = channelRed
		}
		c.addTexture(mat, "occlusionTexture", &gltf.TextureInfo{Index: *occ.Index, TexCoord: occ.TexCoord}, ch,
			[]TextureOutput{{Channel: "r", Input: "occlusion"}}, []float64{1}, [4]float64{1, 1, 1, 1})
	}

	if m.EmissiveTexture != nil {
		e := mat.EmissiveColor
		c.addTexture(mat, "emissiveTexture", m.EmissiveTexture, channelAll,
			[]TextureOutput{{Channel: "rgb", Input: "emissiveColor"}},
			[]float64{e[0], e[1], e[2]}, [4]float64{e[0], e[1], e[2], 1})
	}
	return mat
}

// addTexture appends a texture reader to mat. Textures that cannot be resolved
// or exported are dropped with a warning; the factor values still apply.
func (c *ConversionContext) addTexture(mat *Material, name string, info *gltf.TextureInfo, ch channel,
	outputs []TextureOutput, fallback []float64, scale [4]float64) {
	ref := gltfutil.IndexedTexture{Index: info.Index, TexCoord: info.TexCoord}
	tex, err := c.Doc.ResolveTexture(ref)
	if err == nil {
		var file string
		file, err = c.textures.asset(tex, ch)
		if err == nil {
			in := &TextureInput{
				Name:     name,
				File:     file,
				TexCoord: tex.TexCoord,
				WrapS:    WrapRepeat,
				WrapT:    WrapRepeat,
				Outputs:  outputs,
				Fallback: fallback,
				Scale:    scale,
			}
			if tex.Sampler != nil {
				in.WrapS = wrapMode(tex.Sampler.WrapS)
				in.WrapT = wrapMode(tex.Sampler.WrapT)
			}
			mat.Textures = append(mat.Textures, in)
			return
		}
	}
	c.warn(errors.Wrapf(err, "%s %s", mat.Path, name).Error(), zap.Uint32("texture", info.Index))
}

// ConvertMaterials maps every document material to a preview surface and
// records its prim path for mesh binding.
func (c *ConversionContext) ConvertMaterials() []*Material {
	var mats []*Material
	for i, m := range c.Doc.Materials {
		if m == nil {
			continue
		}
		mat := c.convertMaterial(uint32(i), m)
		c.Materials[uint32(i)] = mat.Path
		mats = append(mats, mat)
	}
	return mats
}
