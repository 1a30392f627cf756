package splat

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type CameraComponent struct {
	Position mgl32.Vec3
	LookAt   mgl32.Vec3
	Up       mgl32.Vec3
	Yaw      float32
	Pitch    float32
	Fov      float32
	Near     float32
	Far      float32
}

// NewCameraLookingAt places a camera at position facing target, with yaw and
// pitch derived so the flying controller continues from the same direction.
func NewCameraLookingAt(position, target mgl32.Vec3) CameraComponent {
	dir := target.Sub(position)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	} else {
		dir = mgl32.Vec3{0, 0, -1}
	}
	pitch := mgl32.RadToDeg(math32.Asin(dir.Y()))
	yaw := mgl32.RadToDeg(math32.Atan2(dir.X(), -dir.Z()))
	return CameraComponent{
		Position: position,
		LookAt:   target,
		Up:       mgl32.Vec3{0, 1, 0},
		Yaw:      yaw,
		Pitch:    pitch,
		Fov:      45,
		Near:     0.1,
		Far:      1000,
	}
}

func (c *CameraComponent) ViewMatrix() mgl32.Mat4 {
	up := c.Up
	if up.Len() == 0 {
		up = mgl32.Vec3{0, 1, 0}
	}
	return mgl32.LookAtV(c.Position, c.LookAt, up)
}

func (c *CameraComponent) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	fov, near, far := c.Fov, c.Near, c.Far
	if fov <= 0 {
		fov = 45
	}
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = near + 1000
	}
	return mgl32.Perspective(mgl32.DegToRad(fov), aspect, near, far)
}

func (c *CameraComponent) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.ProjectionMatrix(aspect).Mul4(c.ViewMatrix())
}
