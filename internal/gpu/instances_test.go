//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestAspectScale(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
		want [2]float32
	}{
		{"2:1", 200, 100, [2]float32{1, 0.5}},
		{"1:2", 100, 200, [2]float32{0.5, 1}},
		{"square", 64, 64, [2]float32{1, 1}},
		{"4:1", 400, 100, [2]float32{1, 0.25}},
		{"zero", 0, 10, [2]float32{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := aspectScale(tt.w, tt.h); got != tt.want {
				t.Errorf("aspectScale(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestPackInstancesLayout(t *testing.T) {
	in := []Instance{
		{Translation: [3]float32{1, 2, 0.5}, Scale: [2]float32{3, 4}},
		{Translation: [3]float32{-1, -2, 0.25}, Scale: [2]float32{0.5, 1}},
	}
	buf := packInstances(nil, in)
	if len(buf) != 2*instanceStride {
		t.Fatalf("len = %d, want %d", len(buf), 2*instanceStride)
	}
	want := []float32{1, 2, 0.5, 3, 4, -1, -2, 0.25, 0.5, 1}
	for i, f := range want {
		got := math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		if got != f {
			t.Errorf("float %d = %v, want %v", i, got, f)
		}
	}
}

func TestQuadIsTriangleStrip(t *testing.T) {
	buf := packQuad()
	if len(buf) != quadVertexCount*quadStride {
		t.Fatalf("len = %d, want %d", len(buf), quadVertexCount*quadStride)
	}
	// The strip must cover the unit square: corners at ±1 on both axes.
	seen := map[[2]float32]bool{}
	for _, v := range quadVertices {
		seen[[2]float32{v[0], v[1]}] = true
	}
	for _, c := range [][2]float32{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}} {
		if !seen[c] {
			t.Errorf("corner %v missing", c)
		}
	}
}

func TestProjectionMatrix(t *testing.T) {
	tests := []struct {
		name   string
		w, h   uint32
		m0, m5 float32
	}{
		{"landscape", 1280, 720, 0.01 * 720 / 1280, 0.01},
		{"portrait", 720, 1280, 0.01, 0.01 * 720 / 1280},
		{"square", 500, 500, 0.01, 0.01},
		{"zero", 0, 0, 0.01, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := projectionMatrix(tt.w, tt.h)
			if math.Abs(float64(m[0]-tt.m0)) > 1e-7 || math.Abs(float64(m[5]-tt.m5)) > 1e-7 {
				t.Errorf("m[0]=%v m[5]=%v, want %v %v", m[0], m[5], tt.m0, tt.m5)
			}
			if m[10] != 1 || m[15] != 1 {
				t.Errorf("depth/w not passed through: m[10]=%v m[15]=%v", m[10], m[15])
			}
		})
	}
}
