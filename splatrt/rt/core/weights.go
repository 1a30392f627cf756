package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultSharpness is the blend-boundary crispness used by the demo scene.
const DefaultSharpness float32 = 10.0

// Unsigned projections are kept inside (0,1) so the odds ratio below never divides by zero.
const projectionEpsilon float32 = 1e-6

// EncodeWeights packs four 8-bit layer weights into one u32, lane 0 in the low byte.
// Lanes are not required to sum to 255.
func EncodeWeights(w [4]uint8) uint32 {
	return uint32(w[0]) | uint32(w[1])<<8 | uint32(w[2])<<16 | uint32(w[3])<<24
}

// DecodeWeights is the inverse of EncodeWeights.
func DecodeWeights(packed uint32) [4]uint8 {
	return [4]uint8{
		uint8(packed),
		uint8(packed >> 8),
		uint8(packed >> 16),
		uint8(packed >> 24),
	}
}

// SignedToUnsigned maps [-1, 1] onto [0, 1].
func SignedToUnsigned(x float32) float32 {
	return 0.5 * (x + 1.0)
}

// Sigmoid sharpens x in [0, 1] around 0.5. Larger beta gives a crisper transition.
func Sigmoid(x, beta float32) float32 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	x = mgl32.Clamp(x, projectionEpsilon, 1-projectionEpsilon)
	return 1.0 / (1.0 + math32.Pow(x/(1.0-x), -beta))
}

// WeightFromSignedProjection turns a signed dot product into a blend weight.
// dot = -1 yields 0, dot = 1 yields 255 and dot = 0 lands on the midpoint.
func WeightFromSignedProjection(dot, sharpness float32) uint8 {
	if math32.IsNaN(dot) {
		dot = 0
	}
	u := SignedToUnsigned(mgl32.Clamp(dot, -1, 1))
	s := Sigmoid(u, sharpness)
	return uint8(mgl32.Clamp(s*255.0, 0, 255))
}

// BlendWeights puts w in layer 0 and its complement in layer 2.
func BlendWeights(w uint8) uint32 {
	return EncodeWeights([4]uint8{w, 0, 255 - w, 0})
}

// GenerateSplatWeights derives a packed weight per normal from its alignment with axis.
func GenerateSplatWeights(normals []mgl32.Vec3, axis mgl32.Vec3, sharpness float32) []uint32 {
	if axis.Len() == 0 {
		axis = mgl32.Vec3{1, 0, 0}
	}
	axis = axis.Normalize()

	weights := make([]uint32, len(normals))
	for i, n := range normals {
		weights[i] = BlendWeights(WeightFromSignedProjection(n.Dot(axis), sharpness))
	}
	return weights
}
