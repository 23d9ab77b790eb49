package converter

import (
	"math"
	"sort"

	"github.com/binzume/gltf2usd/geom"
	"github.com/binzume/gltf2usd/gltfutil"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"
)

// TimeCodesPerSecond is the frame rate animation times are converted to.
const TimeCodesPerSecond = 24

type trackKey struct {
	node     uint32
	property Property
}

func channelProperty(path string) (Property, bool) {
	switch path {
	case "translation":
		return PropertyTranslation, true
	case "rotation":
		return PropertyRotation, true
	case "scale":
		return PropertyScale, true
	}
	return 0, false
}

// activeChannel resolves a channel to its sampler when its target is in the
// node map and animatable. ok is false for channels that are skipped.
func (c *ConversionContext) activeChannel(a *gltf.Animation, ai, ci int) (*gltf.AnimationSampler, Property, bool, error) {
	ch := a.Channels[ci]
	if ch == nil || ch.Target.Node == nil {
		return nil, 0, false, nil
	}
	if _, ok := c.Graph.Nodes.Get(*ch.Target.Node); !ok {
		return nil, 0, false, nil
	}
	path := c.Doc.ChannelPath(ai, ci)
	prop, ok := channelProperty(path)
	if !ok {
		c.recoverable(&UnsupportedAnimationTargetError{Animation: ai, Channel: ci, Path: path})
		return nil, 0, false, nil
	}
	if ch.Sampler == nil || int(*ch.Sampler) >= len(a.Samplers) || a.Samplers[*ch.Sampler] == nil {
		n := -1
		if ch.Sampler != nil {
			n = int(*ch.Sampler)
		}
		return nil, 0, false, &gltfutil.IndexError{Table: "sampler", Index: n, Len: len(a.Samplers)}
	}
	return a.Samplers[*ch.Sampler], prop, true, nil
}

// SampleAnimations turns every channel targeting a node of the scene graph into
// keyframe tracks, one per (node, property), and returns the playback range over
// all of them. The range always includes 0.
func (c *ConversionContext) SampleAnimations() ([]*KeyframeTrack, TimeRange, error) {
	var tracks []*KeyframeTrack
	byKey := map[trackKey]*KeyframeTrack{}
	minTime, maxTime := 0.0, 0.0

	for ai, a := range c.Doc.Animations {
		if a == nil {
			continue
		}
		for ci, ch := range a.Channels {
			sampler, prop, ok, err := c.activeChannel(a, ai, ci)
			if err != nil {
				return nil, TimeRange{}, errors.Wrapf(err, "animation %d channel %d", ai, ci)
			}
			if !ok {
				continue
			}
			keys, err := c.sampleChannel(sampler, prop)
			if err != nil {
				return nil, TimeRange{}, errors.Wrapf(err, "animation %d channel %d", ai, ci)
			}
			for _, k := range keys {
				minTime = math.Min(minTime, k.Time)
				maxTime = math.Max(maxTime, k.Time)
			}

			node, _ := c.Graph.Nodes.Get(*ch.Target.Node)
			key := trackKey{node: node.Index, property: prop}
			t, exists := byKey[key]
			if !exists {
				t = &KeyframeTrack{Node: node.Index, Path: node.Path, Property: prop}
				byKey[key] = t
				tracks = append(tracks, t)
			}
			t.Keyframes = append(t.Keyframes, keys...)
			c.Logger.Debug("animation channel",
				zap.Int("animation", ai), zap.Int("channel", ci),
				zap.Uint32("node", node.Index), zap.Stringer("property", prop), zap.Int("keys", len(keys)))
		}
	}

	for _, t := range tracks {
		t.Keyframes = mergeKeyframes(t.Keyframes)
	}
	return tracks, TimeRange{Start: minTime, End: maxTime}, nil
}

func (c *ConversionContext) sampleChannel(s *gltf.AnimationSampler, prop Property) ([]Keyframe, error) {
	if s.Input == nil || s.Output == nil {
		return nil, errors.New("sampler without input or output")
	}
	input, err := c.floats(*s.Input)
	if err != nil {
		return nil, errors.Wrap(err, "input")
	}
	output, err := c.floats(*s.Output)
	if err != nil {
		return nil, errors.Wrap(err, "output")
	}
	if input.Components != 1 {
		return nil, &gltfutil.UnsupportedFormatError{Accessor: int(*s.Input), Reason: "animation input must be SCALAR"}
	}
	want := 3
	if prop == PropertyRotation {
		want = 4
	}
	if output.Components != want {
		return nil, &gltfutil.UnsupportedFormatError{Accessor: int(*s.Output),
			Reason: prop.String() + " output has wrong element type"}
	}

	// CUBICSPLINE stores (in-tangent, value, out-tangent) per key.
	stride, offset := 1, 0
	if s.Interpolation == gltf.InterpolationCubicSpline {
		stride, offset = 3, 1
	}
	if output.Count != input.Count*stride {
		return nil, errors.Errorf("output accessor %d has %d elements for %d keys", *s.Output, output.Count, input.Count)
	}

	keys := make([]Keyframe, input.Count)
	for i := range keys {
		keys[i].Time = input.Values[i] * TimeCodesPerSecond
		j := i*stride + offset
		if prop == PropertyRotation {
			v := output.At(j)
			keys[i].Rotation = *geom.NewQuaternion(v[0], v[1], v[2], v[3])
		} else {
			keys[i].Vector = *output.Vec3(j)
		}
	}
	return keys, nil
}

// mergeKeyframes sorts keys by time; of several keys at the same time the last one wins.
func mergeKeyframes(keys []Keyframe) []Keyframe {
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Time < keys[j].Time })
	merged := keys[:0]
	for _, k := range keys {
		if n := len(merged); n > 0 && merged[n-1].Time == k.Time {
			merged[n-1] = k
			continue
		}
		merged = append(merged, k)
	}
	return merged
}
