package splat

import (
	"fmt"
)

// RendererTag marks that a window and GPU device have been claimed by a module.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer panics if a renderer other than name is already
// installed. Installing the same one twice is also rejected, since each
// install opens its own window.
func ensureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	if tag, ok := Resource[RendererTag](app); ok {
		app.Logger().Errorf("renderer %s requested but %s is already installed", name, tag.Name)
		panic(fmt.Sprintf("renderer already installed: %s (requested %s)", tag.Name, name))
	}
	app.addResources(&RendererTag{Name: name})
}
