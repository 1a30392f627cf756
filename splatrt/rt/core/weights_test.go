package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWeights_Example(t *testing.T) {
	packed := EncodeWeights([4]uint8{200, 0, 55, 0})
	assert.Equal(t, uint32(3604680), packed)
	assert.Equal(t, uint32(200|55<<16), packed)
	assert.Equal(t, uint32(0x3700C8), packed)
	assert.Equal(t, [4]uint8{200, 0, 55, 0}, DecodeWeights(3604680))
}

func TestEncodeWeights_LaneOrder(t *testing.T) {
	assert.Equal(t, uint32(0x04030201), EncodeWeights([4]uint8{1, 2, 3, 4}))
	assert.Equal(t, uint32(0xFFFFFFFF), EncodeWeights([4]uint8{255, 255, 255, 255}))
	assert.Equal(t, uint32(0), EncodeWeights([4]uint8{}))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	// Every value in every lane, with the other lanes holding distinct patterns.
	for v := 0; v < 256; v++ {
		b := uint8(v)
		cases := [][4]uint8{
			{b, 0, 0, 0},
			{0, b, 0, 0},
			{0, 0, b, 0},
			{0, 0, 0, b},
			{b, 255 - b, b / 2, b ^ 0x5A},
		}
		for _, w := range cases {
			require.Equal(t, w, DecodeWeights(EncodeWeights(w)))
		}
	}
}

func TestWeightFromSignedProjection_Endpoints(t *testing.T) {
	assert.Equal(t, uint8(0), WeightFromSignedProjection(-1, DefaultSharpness))
	assert.Equal(t, uint8(255), WeightFromSignedProjection(1, DefaultSharpness))

	mid := WeightFromSignedProjection(0, DefaultSharpness)
	assert.Contains(t, []uint8{127, 128}, mid)
}

func TestWeightFromSignedProjection_OutOfRangeClamps(t *testing.T) {
	assert.Equal(t, uint8(0), WeightFromSignedProjection(-3, DefaultSharpness))
	assert.Equal(t, uint8(255), WeightFromSignedProjection(7, DefaultSharpness))
}

func TestWeightFromSignedProjection_Monotonic(t *testing.T) {
	for _, sharpness := range []float32{0.5, 1, 4, DefaultSharpness, 40} {
		prev := WeightFromSignedProjection(-1, sharpness)
		for i := 1; i <= 2000; i++ {
			dot := -1 + float32(i)*0.001
			w := WeightFromSignedProjection(dot, sharpness)
			require.GreaterOrEqualf(t, w, prev, "sharpness %v dot %v", sharpness, dot)
			prev = w
		}
	}
}

func TestWeightFromSignedProjection_NearDegenerate(t *testing.T) {
	// Values that put u a hair away from 0 or 1 must not blow up.
	assert.Equal(t, uint8(0), WeightFromSignedProjection(-0.9999999, DefaultSharpness))
	assert.Equal(t, uint8(255), WeightFromSignedProjection(0.9999999, DefaultSharpness))
}

func TestSigmoid_Sharpens(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0.5, DefaultSharpness), 1e-6)
	assert.Less(t, Sigmoid(0.4, DefaultSharpness), float32(0.4))
	assert.Greater(t, Sigmoid(0.6, DefaultSharpness), float32(0.6))
}

func TestBlendWeights(t *testing.T) {
	assert.Equal(t, [4]uint8{200, 0, 55, 0}, DecodeWeights(BlendWeights(200)))
	assert.Equal(t, [4]uint8{0, 0, 255, 0}, DecodeWeights(BlendWeights(0)))
}

func TestGenerateSplatWeights(t *testing.T) {
	normals := []mgl32.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}}
	weights := GenerateSplatWeights(normals, mgl32.Vec3{2, 0, 0}, DefaultSharpness)
	require.Len(t, weights, 3)

	assert.Equal(t, [4]uint8{255, 0, 0, 0}, DecodeWeights(weights[0]))
	assert.Equal(t, [4]uint8{0, 0, 255, 0}, DecodeWeights(weights[1]))

	side := DecodeWeights(weights[2])
	assert.Equal(t, uint8(255), side[0]+side[2])
	assert.Contains(t, []uint8{127, 128}, side[0])
}
