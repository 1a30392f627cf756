package splat

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module installs resources and systems into an App.
type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	ecs       *Ecs

	exitRequested bool
	frame         uint64

	// Command Buffering
	pendingAdditions    []pendingAdd
	pendingRemovals     []EntityId
	pendingCompAdds     []pendingCompAdd
	pendingCompRemovals []pendingCompAdd
}

type pendingAdd struct {
	eid        EntityId
	components []any
}

type pendingCompAdd struct {
	eid        EntityId
	components []any
}

func newApp() *App {
	ecs := MakeEcs()
	app := &App{
		systems:   make(map[string][]systemFn),
		resources: make(map[reflect.Type]any),
		ecs:       &ecs,
	}
	for _, stage := range defaultStages {
		app.stages = append(app.stages, stage)
		app.systems[stage.Name] = nil
	}
	return app
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// Run ticks until a system requests exit.
func (app *App) Run() {
	app.Logger().Infof("running %d module(s) over %d stage(s)", len(app.modules), len(app.stages))
	for !app.exitRequested {
		app.Tick()
	}
	app.Logger().Infof("exit after %d frame(s)", app.frame)
	app.Shutdown()
}

type shutdownModule interface {
	Shutdown(app *App)
}

// Shutdown lets modules release what they own, last installed first.
func (app *App) Shutdown() {
	for i := len(app.modules) - 1; i >= 0; i-- {
		if m, ok := app.modules[i].(shutdownModule); ok {
			m.Shutdown(app)
		}
	}
	app.modules = nil
}

// Tick runs every stage once, flushing commands after each stage.
func (app *App) Tick() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
	app.frame++
}

func (app *App) Frame() uint64 {
	return app.frame
}

func (app *App) ExitRequested() bool {
	return app.exitRequested
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type *T if one was added.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[typeOf[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

// MustResource is Resource for module wiring, where a missing resource is a bug.
func MustResource[T any](app *App) *T {
	r, ok := Resource[T](app)
	if !ok {
		panic(fmt.Sprintf("resource %s is not installed", typeOf[T]()))
	}
	return r
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			app.panicUnresolved(systemValue, systemType, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.panicUnresolved(systemValue, systemType, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) panicUnresolved(systemValue reflect.Value, systemType, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	panic(msg)
}

func (app *App) FlushCommands() {
	if len(app.pendingAdditions) == 0 && len(app.pendingRemovals) == 0 &&
		len(app.pendingCompAdds) == 0 && len(app.pendingCompRemovals) == 0 {
		return
	}

	// Removals first so nothing is added to dead entities.
	for _, eid := range app.pendingRemovals {
		app.Logger().Debugf("removing entity %d", eid)
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]

	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, add := range app.pendingCompAdds {
		if app.ecs.hasEntity(add.eid) {
			app.ecs.addComponents(add.eid, add.components...)
		}
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, rm := range app.pendingCompRemovals {
		app.ecs.removeComponents(rm.eid, rm.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]
}
