package splat

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	// Expect panic when trying to add the same type of resource again
	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")

	r, ok := Resource[MockResource2](app)
	require.True(t, ok)
	assert.Same(t, resource2, r)
}

func TestApp_addResourcesRejectsValues(t *testing.T) {
	app := newApp()
	assert.Panics(t, func() { app.addResources(MockResource1{}) })
}

func TestApp_SystemsReceiveResourcesAndCommands(t *testing.T) {
	type Counter struct{ n int }
	type Marker struct{ frame uint64 }

	app := newApp()
	counter := &Counter{}
	app.addResources(counter, NewMockResource1("r1"))

	app.UseSystem(System(func(c *Counter, r *MockResource1, cmd *Commands) {
		c.n++
		assert.Equal(t, "r1", r.name)
		cmd.AddEntity(Marker{frame: app.Frame()})
	}))

	app.Tick()
	app.Tick()

	assert.Equal(t, 2, counter.n)
	assert.Equal(t, uint64(2), app.Frame())
	assert.Equal(t, 2, MakeQuery1[Marker](app.Commands()).Count())
}

func TestApp_UnresolvedSystemPanics(t *testing.T) {
	app := newApp()
	app.UseSystem(System(func(r *MockResource2) {}))
	assert.Panics(t, app.Tick)
}

func TestApp_StagesRunInOrderWithFlushBetween(t *testing.T) {
	type Spawned struct{}

	app := newApp()
	var seen []string
	app.UseSystem(System(func(cmd *Commands) {
		seen = append(seen, "update")
		cmd.AddEntity(Spawned{})
		assert.Equal(t, 0, MakeQuery1[Spawned](cmd).Count(), "entity appears after the stage flushes")
	}).InStage(Update))
	app.UseSystem(System(func(cmd *Commands) {
		seen = append(seen, "post")
		assert.Equal(t, 1, MakeQuery1[Spawned](cmd).Count())
	}).InStage(PostUpdate))
	app.UseSystem(System(func() {
		seen = append(seen, "prelude")
	}).InStage(Prelude))

	app.Tick()
	assert.Equal(t, []string{"prelude", "update", "post"}, seen)
}

func TestApp_RunUntilExit(t *testing.T) {
	app := newApp()
	app.UseSystem(System(func(cmd *Commands) {
		if cmd.app.Frame() == 2 {
			cmd.Exit()
		}
	}))

	app.Run()
	assert.True(t, app.ExitRequested())
	assert.Equal(t, uint64(3), app.Frame())
}

type shutdownProbe struct {
	order *[]string
	name  string
}

func (m shutdownProbe) Install(app *App, cmd *Commands) {}

func (m shutdownProbe) Shutdown(app *App) {
	*m.order = append(*m.order, m.name)
}

func TestApp_ShutdownReverseOrder(t *testing.T) {
	var order []string
	app := NewAppBuilder().
		UseModule(shutdownProbe{order: &order, name: "first"}, shutdownProbe{order: &order, name: "second"}).
		Build()

	app.Shutdown()
	assert.Equal(t, []string{"second", "first"}, order)

	// Second call is a no-op.
	app.Shutdown()
	assert.Len(t, order, 2)
}

func TestCommands_RemoveEntityAndComponents(t *testing.T) {
	type A struct{ v int }
	type B struct{ v int }

	app := newApp()
	cmd := app.Commands()
	id := cmd.AddEntity(A{v: 1}, B{v: 2})
	app.FlushCommands()
	require.Equal(t, 1, MakeQuery2[A, B](cmd).Count())

	cmd.RemoveComponents(id, B{})
	app.FlushCommands()
	assert.Equal(t, 0, MakeQuery2[A, B](cmd).Count())
	assert.Equal(t, 1, MakeQuery1[A](cmd).Count())
	assert.Len(t, cmd.GetAllComponents(id), 1)

	cmd.AddComponents(id, B{v: 3})
	app.FlushCommands()
	assert.Equal(t, 1, MakeQuery2[A, B](cmd).Count())

	cmd.RemoveEntity(id)
	app.FlushCommands()
	assert.Equal(t, 0, MakeQuery1[A](cmd).Count())
	assert.Nil(t, cmd.GetAllComponents(id))
}
