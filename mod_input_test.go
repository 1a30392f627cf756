package splat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputPressEdges(t *testing.T) {
	var in Input

	in.press(KeyW, true)
	assert.True(t, in.Pressed[KeyW])
	assert.True(t, in.JustPressed[KeyW])

	in.press(KeyW, true)
	assert.True(t, in.Pressed[KeyW])
	assert.False(t, in.JustPressed[KeyW])

	in.press(KeyW, false)
	assert.False(t, in.Pressed[KeyW])
	assert.True(t, in.JustReleased[KeyW])

	in.press(KeyW, false)
	assert.False(t, in.JustReleased[KeyW])
}

func TestFlyingCameraInputSystem(t *testing.T) {
	app := newApp()
	input := &Input{}
	app.addResources(input)
	cmd := app.Commands()
	cmd.AddEntity(FlyingCameraComponent{})
	app.FlushCommands()

	input.press(KeyW, true)
	input.press(KeyA, true)
	input.press(KeyTab, true)
	FlyingCameraInputSystem(input, cmd)

	assert.True(t, input.MouseCaptured)
	MakeQuery1[FlyingCameraComponent](cmd).Map(func(eid EntityId, fly *FlyingCameraComponent) bool {
		assert.Equal(t, float32(1), fly.Move[2])
		assert.Equal(t, float32(-1), fly.Move[0])
		return true
	})

	input.press(KeyEscape, true)
	FlyingCameraInputSystem(input, cmd)
	assert.True(t, app.ExitRequested())
}
