package shaders

import (
	"embed"
)

//go:embed *.wgsl
var sources embed.FS

// Entry points of the material stages.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// Stage sources keyed by the asset path a material reports for them.
var stagePaths = map[string]string{
	"shaders/triplanar_material_vert.wgsl": "triplanar_material_vert",
	"shaders/triplanar_material_frag.wgsl": "triplanar_material_frag",
}
