package splat

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// FlyingCameraModule spawns a camera and drives it with WASD, Space/Ctrl and
// the captured mouse. Tab toggles capture.
type FlyingCameraModule struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Speed    float32
}

func (m FlyingCameraModule) Install(app *App, cmd *Commands) {
	cmd.AddEntity(
		NewCameraLookingAt(m.Position, m.Target),
		FlyingCameraComponent{Speed: m.Speed},
	)
	app.UseSystem(
		System(FlyingCameraInputSystem).
			InStage(Update),
	)
	app.UseSystem(
		System(FlyingCameraControlSystem).
			InStage(Update),
	)
}

type FlyingCameraComponent struct {
	Speed       float32
	Sensitivity float32
	Move        mgl32.Vec3
	Look        mgl32.Vec2
}

func FlyingCameraInputSystem(input *Input, cmd *Commands) {
	if input.JustPressed[KeyTab] {
		input.MouseCaptured = !input.MouseCaptured
	}
	if input.JustPressed[KeyEscape] {
		cmd.Exit()
	}

	MakeQuery1[FlyingCameraComponent](cmd).Map(func(eid EntityId, fly *FlyingCameraComponent) bool {
		fly.Move = mgl32.Vec3{0, 0, 0}
		if input.Pressed[KeyW] {
			fly.Move[2] += 1
		}
		if input.Pressed[KeyS] {
			fly.Move[2] -= 1
		}
		if input.Pressed[KeyA] {
			fly.Move[0] -= 1
		}
		if input.Pressed[KeyD] {
			fly.Move[0] += 1
		}
		if input.Pressed[KeySpace] {
			fly.Move[1] += 1
		}
		if input.Pressed[KeyControl] {
			fly.Move[1] -= 1
		}

		if input.MouseCaptured {
			fly.Look[0] = float32(input.MouseDeltaX)
			fly.Look[1] = float32(input.MouseDeltaY)
		} else {
			fly.Look[0] = 0
			fly.Look[1] = 0
		}

		return true
	})
}

func FlyingCameraControlSystem(cmd *Commands, time *Time) {
	dt := float32(time.Dt.Seconds())
	if dt <= 0 {
		return
	}

	MakeQuery2[CameraComponent, FlyingCameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent, fly *FlyingCameraComponent) bool {
		stepFlyingCamera(cam, fly, dt)
		return true
	})
}

func stepFlyingCamera(cam *CameraComponent, fly *FlyingCameraComponent, dt float32) {
	if fly.Sensitivity == 0 {
		fly.Sensitivity = 0.1
	}

	cam.Yaw += fly.Look[0] * fly.Sensitivity
	cam.Pitch -= fly.Look[1] * fly.Sensitivity
	cam.Pitch = mgl32.Clamp(cam.Pitch, -89, 89)

	yawRad := mgl32.DegToRad(cam.Yaw)
	pitchRad := mgl32.DegToRad(cam.Pitch)

	forward := mgl32.Vec3{
		math32.Sin(yawRad) * math32.Cos(pitchRad),
		math32.Sin(pitchRad),
		-math32.Cos(yawRad) * math32.Cos(pitchRad),
	}.Normalize()

	right := forward.Cross(mgl32.Vec3{0, 1, 0}).Normalize()
	up := mgl32.Vec3{0, 1, 0}

	if fly.Speed == 0 {
		fly.Speed = 8.0
	}

	moveDir := right.Mul(fly.Move[0]).
		Add(up.Mul(fly.Move[1])).
		Add(forward.Mul(fly.Move[2]))

	if moveDir.Len() > 0 {
		cam.Position = cam.Position.Add(moveDir.Normalize().Mul(fly.Speed * dt))
	}

	cam.LookAt = cam.Position.Add(forward)
	cam.Up = up
}
