package liquid

import (
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
)

// Locator находит чанк и локальный индекс глобального вокселя.
// Реализуется world.Cluster и Space.
type Locator interface {
	Locate(pos vec.Vec3) (*world.Chunk, int, bool)
}

// Space - поиск по набору чанков окна
type Space struct {
	chunks map[vec.Vec3]*world.Chunk
	order  []*world.Chunk
}

// NewSpace строит индекс по чанкам. Порядок chunks сохраняется для обхода.
func NewSpace(chunks []*world.Chunk) *Space {
	s := &Space{
		chunks: make(map[vec.Vec3]*world.Chunk, len(chunks)),
		order:  chunks,
	}
	for _, ch := range chunks {
		s.chunks[ch.Coord] = ch
	}
	return s
}

// Locate реализует Locator
func (s *Space) Locate(pos vec.Vec3) (*world.Chunk, int, bool) {
	ch, ok := s.chunks[vec.Vec3{X: pos.X >> 4, Y: pos.Y >> 4, Z: pos.Z >> 4}]
	if !ok {
		return nil, 0, false
	}
	return ch, world.Index(pos.X&(world.Size-1), pos.Y&(world.Size-1), pos.Z&(world.Size-1)), true
}

// Chunks возвращает чанки в порядке обхода
func (s *Space) Chunks() []*world.Chunk {
	return s.order
}

// WakeAround активирует жидкость в вокселе и шести его соседях.
// Вызывается после правки блока рядом с жидкостью.
func WakeAround(loc Locator, pos vec.Vec3) {
	if ch, i, ok := loc.Locate(pos); ok {
		ch.Liquid.Activate(i)
	}
	for _, d := range vec.Directions {
		if ch, i, ok := loc.Locate(pos.Add(d)); ok {
			ch.Liquid.Activate(i)
		}
	}
}
