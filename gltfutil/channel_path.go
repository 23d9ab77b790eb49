package gltfutil

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	glbMagic     = 0x46546c67
	glbChunkJSON = 0x4e4f534a
	glbHeaderLen = 20
)

// jsonChunk returns the JSON part of a .gltf or .glb file.
func jsonChunk(data []byte) ([]byte, error) {
	if len(data) < 4 || binary.LittleEndian.Uint32(data) != glbMagic {
		return data, nil
	}
	if len(data) < glbHeaderLen {
		return nil, errors.New("truncated GLB header")
	}
	n := int(binary.LittleEndian.Uint32(data[12:]))
	if binary.LittleEndian.Uint32(data[16:]) != glbChunkJSON || glbHeaderLen+n > len(data) {
		return nil, errors.New("invalid GLB JSON chunk")
	}
	return data[glbHeaderLen : glbHeaderLen+n], nil
}

// ReadChannelPaths returns the target.path string of every animation channel,
// indexed [animation][channel]. gltf.TRSProperty decodes unknown paths as
// translation, so the names are kept as written.
func ReadChannelPaths(data []byte) ([][]string, error) {
	js, err := jsonChunk(data)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Animations []*struct {
			Channels []*struct {
				Target struct {
					Path string `json:"path"`
				} `json:"target"`
			} `json:"channels"`
		} `json:"animations"`
	}
	if err := json.NewDecoder(bytes.NewReader(js)).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "animation channels")
	}
	paths := make([][]string, len(raw.Animations))
	for ai, a := range raw.Animations {
		if a == nil {
			continue
		}
		paths[ai] = make([]string, len(a.Channels))
		for ci, ch := range a.Channels {
			if ch != nil {
				paths[ai][ci] = ch.Target.Path
			}
		}
	}
	return paths, nil
}

// ChannelPath returns the target path of a channel as written in the file, or
// the decoded property name for documents built in memory.
func (d *Document) ChannelPath(animation, channel int) string {
	if animation < len(d.ChannelPaths) && channel < len(d.ChannelPaths[animation]) {
		return d.ChannelPaths[animation][channel]
	}
	if animation < len(d.Animations) && d.Animations[animation] != nil &&
		channel < len(d.Animations[animation].Channels) && d.Animations[animation].Channels[channel] != nil {
		return d.Animations[animation].Channels[channel].Target.Path.String()
	}
	return ""
}
