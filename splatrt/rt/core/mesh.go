package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexFormat is the storage type of one vertex attribute.
type VertexFormat uint8

const (
	VertexFormatFloat32x2 VertexFormat = iota
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

func (f VertexFormat) Size() uint64 {
	switch f {
	case VertexFormatFloat32x2:
		return 8
	case VertexFormatFloat32x3:
		return 12
	case VertexFormatFloat32x4:
		return 16
	case VertexFormatUint32:
		return 4
	}
	return 0
}

func (f VertexFormat) String() string {
	switch f {
	case VertexFormatFloat32x2:
		return "Float32x2"
	case VertexFormatFloat32x3:
		return "Float32x3"
	case VertexFormatFloat32x4:
		return "Float32x4"
	case VertexFormatUint32:
		return "Uint32"
	}
	return fmt.Sprintf("VertexFormat(%d)", uint8(f))
}

// MeshVertexAttribute names a per-vertex stream. Id orders streams inside the
// interleaved vertex buffer.
type MeshVertexAttribute struct {
	Name   string
	Id     uint64
	Format VertexFormat
}

var (
	AttributePosition = MeshVertexAttribute{Name: "Vertex_Position", Id: 0, Format: VertexFormatFloat32x3}
	AttributeNormal   = MeshVertexAttribute{Name: "Vertex_Normal", Id: 1, Format: VertexFormatFloat32x3}
	AttributeUv0      = MeshVertexAttribute{Name: "Vertex_Uv", Id: 2, Format: VertexFormatFloat32x2}

	// AttributeMaterialWeights carries four packed u8 layer weights per vertex.
	AttributeMaterialWeights = MeshVertexAttribute{Name: "MaterialWeights", Id: 582540667, Format: VertexFormatUint32}
)

// LayoutAttribute is an attribute placed at a byte offset inside one vertex.
type LayoutAttribute struct {
	MeshVertexAttribute
	Offset uint64
}

// VertexLayout describes one interleaved vertex buffer.
type VertexLayout struct {
	Attributes []LayoutAttribute
	Stride     uint64
}

func (l VertexLayout) Find(id uint64) (LayoutAttribute, bool) {
	for _, a := range l.Attributes {
		if a.Id == id {
			return a, true
		}
	}
	return LayoutAttribute{}, false
}

type meshAttribute struct {
	attr MeshVertexAttribute
	vec2 []mgl32.Vec2
	vec3 []mgl32.Vec3
	vec4 []mgl32.Vec4
	u32  []uint32
}

func (a *meshAttribute) len() int {
	switch a.attr.Format {
	case VertexFormatFloat32x2:
		return len(a.vec2)
	case VertexFormatFloat32x3:
		return len(a.vec3)
	case VertexFormatFloat32x4:
		return len(a.vec4)
	default:
		return len(a.u32)
	}
}

// Mesh is an indexed triangle list with named vertex streams.
type Mesh struct {
	Indices    []uint32
	attributes map[uint64]*meshAttribute
}

func NewMesh() *Mesh {
	return &Mesh{attributes: make(map[uint64]*meshAttribute)}
}

// InsertAttribute stores data for attr, replacing any previous stream with the same id.
// data must be []mgl32.Vec2, []mgl32.Vec3, []mgl32.Vec4 or []uint32 matching attr.Format,
// and its length must match the streams already present.
func (m *Mesh) InsertAttribute(attr MeshVertexAttribute, data any) error {
	ma := &meshAttribute{attr: attr}
	switch v := data.(type) {
	case []mgl32.Vec2:
		if attr.Format != VertexFormatFloat32x2 {
			return fmt.Errorf("attribute %s: got []Vec2 for %s", attr.Name, attr.Format)
		}
		ma.vec2 = v
	case []mgl32.Vec3:
		if attr.Format != VertexFormatFloat32x3 {
			return fmt.Errorf("attribute %s: got []Vec3 for %s", attr.Name, attr.Format)
		}
		ma.vec3 = v
	case []mgl32.Vec4:
		if attr.Format != VertexFormatFloat32x4 {
			return fmt.Errorf("attribute %s: got []Vec4 for %s", attr.Name, attr.Format)
		}
		ma.vec4 = v
	case []uint32:
		if attr.Format != VertexFormatUint32 {
			return fmt.Errorf("attribute %s: got []uint32 for %s", attr.Name, attr.Format)
		}
		ma.u32 = v
	default:
		return fmt.Errorf("attribute %s: unsupported data %T", attr.Name, data)
	}

	for id, other := range m.attributes {
		if id != attr.Id && other.len() != ma.len() {
			return fmt.Errorf("attribute %s has %d vertices, %s has %d", attr.Name, ma.len(), other.attr.Name, other.len())
		}
	}
	m.attributes[attr.Id] = ma
	return nil
}

func (m *Mesh) RemoveAttribute(attr MeshVertexAttribute) {
	delete(m.attributes, attr.Id)
}

func (m *Mesh) HasAttribute(attr MeshVertexAttribute) bool {
	_, ok := m.attributes[attr.Id]
	return ok
}

func (m *Mesh) Positions() []mgl32.Vec3 {
	if a, ok := m.attributes[AttributePosition.Id]; ok {
		return a.vec3
	}
	return nil
}

func (m *Mesh) Normals() []mgl32.Vec3 {
	if a, ok := m.attributes[AttributeNormal.Id]; ok {
		return a.vec3
	}
	return nil
}

func (m *Mesh) MaterialWeights() []uint32 {
	if a, ok := m.attributes[AttributeMaterialWeights.Id]; ok {
		return a.u32
	}
	return nil
}

func (m *Mesh) VertexCount() int {
	for _, a := range m.attributes {
		return a.len()
	}
	return 0
}

func (m *Mesh) sortedAttributes() []*meshAttribute {
	res := make([]*meshAttribute, 0, len(m.attributes))
	for _, a := range m.attributes {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].attr.Id < res[j].attr.Id })
	return res
}

// Layout returns the interleaved layout, attributes ordered by id.
func (m *Mesh) Layout() VertexLayout {
	var layout VertexLayout
	for _, a := range m.sortedAttributes() {
		layout.Attributes = append(layout.Attributes, LayoutAttribute{MeshVertexAttribute: a.attr, Offset: layout.Stride})
		layout.Stride += a.attr.Format.Size()
	}
	return layout
}

// VertexBytes interleaves every stream into one little-endian buffer following Layout.
func (m *Mesh) VertexBytes() []byte {
	layout := m.Layout()
	count := m.VertexCount()
	buf := make([]byte, uint64(count)*layout.Stride)
	attrs := m.sortedAttributes()

	putF := func(off uint64, v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
	}
	for i := 0; i < count; i++ {
		base := uint64(i) * layout.Stride
		for k, a := range attrs {
			off := base + layout.Attributes[k].Offset
			switch a.attr.Format {
			case VertexFormatFloat32x2:
				for c := 0; c < 2; c++ {
					putF(off+uint64(c)*4, a.vec2[i][c])
				}
			case VertexFormatFloat32x3:
				for c := 0; c < 3; c++ {
					putF(off+uint64(c)*4, a.vec3[i][c])
				}
			case VertexFormatFloat32x4:
				for c := 0; c < 4; c++ {
					putF(off+uint64(c)*4, a.vec4[i][c])
				}
			case VertexFormatUint32:
				binary.LittleEndian.PutUint32(buf[off:off+4], a.u32[i])
			}
		}
	}
	return buf
}

// NewIcosphere builds a sphere by splitting every icosahedron edge into
// subdivisions+1 segments and projecting the grid points onto the sphere.
func NewIcosphere(radius float32, subdivisions int) *Mesh {
	if subdivisions < 0 {
		subdivisions = 0
	}
	t := float32((1.0 + math.Sqrt(5.0)) / 2.0)
	corners := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	var positions, normals []mgl32.Vec3
	var indices []uint32
	lookup := make(map[[3]int32]uint32)
	vertex := func(p mgl32.Vec3) uint32 {
		n := p.Normalize()
		key := [3]int32{int32(math.Round(float64(n[0]) * 1e5)), int32(math.Round(float64(n[1]) * 1e5)), int32(math.Round(float64(n[2]) * 1e5))}
		if idx, ok := lookup[key]; ok {
			return idx
		}
		idx := uint32(len(positions))
		positions = append(positions, n.Mul(radius))
		normals = append(normals, n)
		lookup[key] = idx
		return idx
	}

	segments := subdivisions + 1
	for _, f := range faces {
		a, b, c := corners[f[0]], corners[f[1]], corners[f[2]]
		// grid[i][j]: i steps from a towards b, j steps towards c.
		grid := make([][]uint32, segments+1)
		for i := 0; i <= segments; i++ {
			grid[i] = make([]uint32, segments+1-i)
			for j := 0; j <= segments-i; j++ {
				u := float32(i) / float32(segments)
				v := float32(j) / float32(segments)
				p := a.Mul(1 - u - v).Add(b.Mul(u)).Add(c.Mul(v))
				grid[i][j] = vertex(p)
			}
		}
		for i := 0; i < segments; i++ {
			for j := 0; j < segments-i; j++ {
				indices = append(indices, grid[i][j], grid[i+1][j], grid[i][j+1])
				if j+1 < segments-i {
					indices = append(indices, grid[i+1][j], grid[i+1][j+1], grid[i][j+1])
				}
			}
		}
	}

	mesh := NewMesh()
	mesh.Indices = indices
	// lengths always agree here
	_ = mesh.InsertAttribute(AttributePosition, positions)
	_ = mesh.InsertAttribute(AttributeNormal, normals)
	return mesh
}
