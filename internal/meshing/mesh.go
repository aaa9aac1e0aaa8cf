package meshing

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Vertex - вершина меша чанка
type Vertex struct {
	Position mgl32.Vec3 // локальная позиция внутри чанка
	UV       mgl32.Vec2 // координаты в текстурном атласе
	Light    mgl32.Vec4 // R, G, B, небо в диапазоне [0, 1]
}

// Mesh - буферы вершин и индексов одного чанка.
// Владение буфером переходит к рендереру.
type Mesh struct {
	Coord       vec.Vec3
	Origin      mgl32.Vec3 // мировая позиция вершины (0,0,0) чанка
	Vertices    []Vertex
	Opaque      []uint32
	Transparent []uint32
}

// Faces возвращает число граней в меше
func (m *Mesh) Faces() int {
	return len(m.Vertices) / 4
}

// Empty возвращает true, если в меше нет ни одной грани
func (m *Mesh) Empty() bool {
	return len(m.Vertices) == 0
}
