//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"
)

// instanceStride is the size of one packed instance record:
// translation vec3<f32> followed by scale vec2<f32>.
const instanceStride = 20

// quadStride is the size of one quad vertex: position vec2<f32>, uv vec2<f32>.
const quadStride = 16

// quadVertexCount is the number of triangle-strip vertices per sprite.
const quadVertexCount = 4

// quadVertices is the unit quad in triangle-strip order, as (x, y, u, v).
// Texture v grows downward, so the top edge samples v = 0.
var quadVertices = [quadVertexCount][4]float32{
	{-1, -1, 0, 1},
	{1, -1, 1, 1},
	{-1, 1, 0, 0},
	{1, 1, 1, 0},
}

// Instance is the per-sprite transform uploaded to the GPU.
type Instance struct {
	Translation [3]float32 // x, y, depth
	Scale       [2]float32
}

// aspectScale returns the corrective scale for a texture of the given size.
// The longer side maps to 1 and the shorter side shrinks proportionally.
func aspectScale(width, height uint32) [2]float32 {
	if width == 0 || height == 0 {
		return [2]float32{1, 1}
	}
	if width < height {
		return [2]float32{float32(width) / float32(height), 1}
	}
	return [2]float32{1, float32(height) / float32(width)}
}

// packInstances appends the little-endian encoding of instances to dst.
func packInstances(dst []byte, instances []Instance) []byte {
	for _, in := range instances {
		dst = appendFloat32(dst, in.Translation[0])
		dst = appendFloat32(dst, in.Translation[1])
		dst = appendFloat32(dst, in.Translation[2])
		dst = appendFloat32(dst, in.Scale[0])
		dst = appendFloat32(dst, in.Scale[1])
	}
	return dst
}

func packQuad() []byte {
	buf := make([]byte, 0, quadVertexCount*quadStride)
	for _, v := range quadVertices {
		for _, f := range v {
			buf = appendFloat32(buf, f)
		}
	}
	return buf
}

func appendFloat32(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

// worldUnits is the half-extent of the visible area along the shorter
// window axis.
const worldUnits = 100

// projectionMatrix returns a column-major orthographic projection that maps
// ±worldUnits on the shorter window axis to clip space and stretches the
// longer axis so world units stay square. Depth passes through unchanged.
func projectionMatrix(width, height uint32) [16]float32 {
	m := [16]float32{
		1 / float32(worldUnits), 0, 0, 0,
		0, 1 / float32(worldUnits), 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	if width == 0 || height == 0 {
		return m
	}
	if width < height {
		m[5] *= float32(width) / float32(height)
	} else {
		m[0] *= float32(height) / float32(width)
	}
	return m
}

func packMatrix(m [16]float32) []byte {
	buf := make([]byte, 0, len(m)*4)
	for _, f := range m {
		buf = appendFloat32(buf, f)
	}
	return buf
}
