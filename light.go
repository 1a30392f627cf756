package splat

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightComponent is a point light. Position comes from the entity's transform.
type LightComponent struct {
	Color     [3]float32
	Intensity float32
	Range     float32
}

// OrbitComponent moves an entity on a horizontal circle around the origin.
type OrbitComponent struct {
	Radius float32
	Height float32
	Speed  float32 // radians per second
}

func (o OrbitComponent) PositionAt(t float32) mgl32.Vec3 {
	a := t * o.Speed
	return mgl32.Vec3{math32.Cos(a), o.Height, math32.Sin(a)}.Mul(o.Radius)
}

// LightModule spawns one orbiting point light.
type LightModule struct {
	Radius    float32
	Height    float32
	Intensity float32
}

func (mod LightModule) Install(app *App, cmd *Commands) {
	orbit := OrbitComponent{Radius: mod.Radius, Height: mod.Height, Speed: 1}
	cmd.AddEntity(
		LightComponent{Color: [3]float32{1, 1, 1}, Intensity: mod.Intensity, Range: 100},
		orbit,
		NewTransform(orbit.PositionAt(0)),
	)
	cmd.UseSystem(System(orbitSystem).InStage(Update))
}

func orbitSystem(cmd *Commands, t *Time) {
	elapsed := t.Elapsed()
	MakeQuery2[OrbitComponent, TransformComponent](cmd).Map(func(eid EntityId, orbit *OrbitComponent, tr *TransformComponent) bool {
		tr.Position = orbit.PositionAt(elapsed)
		return true
	})
}

// FirstLight returns the first point light and its position.
func FirstLight(cmd *Commands) (LightComponent, mgl32.Vec3, bool) {
	var (
		light LightComponent
		pos   mgl32.Vec3
		found bool
	)
	MakeQuery2[LightComponent, TransformComponent](cmd).Map(func(eid EntityId, l *LightComponent, tr *TransformComponent) bool {
		light, pos, found = *l, tr.Position, true
		return false
	})
	return light, pos, found
}
