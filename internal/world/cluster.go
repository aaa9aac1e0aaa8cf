package world

import (
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Cluster - невладеющая окрестность 3x3 колонок вокруг центральной.
// Используется для запросов, пересекающих границы чанков.
// Отсутствующие соседи считаются пустыми: чтение возвращает ok=false,
// запись ничего не делает.
type Cluster struct {
	Center vec.Vec2
	Height int

	columns [3][3][]*Chunk
	held    []*Chunk // в порядке захвата блокировок
}

// Chunk возвращает чанк кластера по координате чанка или nil
func (cl *Cluster) Chunk(coord vec.Vec3) *Chunk {
	dx := coord.X - cl.Center.X + 1
	dz := coord.Z - cl.Center.Z + 1
	if dx < 0 || dx > 2 || dz < 0 || dz > 2 || coord.Y < 0 || coord.Y >= cl.Height {
		return nil
	}
	slot := cl.columns[dx][dz]
	if slot == nil {
		return nil
	}
	return slot[coord.Y]
}

// Locate находит чанк и локальный индекс глобального вокселя
func (cl *Cluster) Locate(pos vec.Vec3) (*Chunk, int, bool) {
	ch := cl.Chunk(vec.Vec3{X: pos.X >> 4, Y: pos.Y >> 4, Z: pos.Z >> 4})
	if ch == nil {
		return nil, 0, false
	}
	return ch, Index(pos.X&(Size-1), pos.Y&(Size-1), pos.Z&(Size-1)), true
}

// Contains проверяет, лежит ли воксель в загруженной части кластера
func (cl *Cluster) Contains(pos vec.Vec3) bool {
	_, _, ok := cl.Locate(pos)
	return ok
}

// Block возвращает тип блока глобального вокселя
func (cl *Cluster) Block(pos vec.Vec3) (block.BlockID, bool) {
	ch, i, ok := cl.Locate(pos)
	if !ok {
		return block.AirBlockID, false
	}
	return ch.BlockAt(i), true
}

// Light возвращает освещённость глобального вокселя
func (cl *Cluster) Light(pos vec.Vec3) (LightValue, bool) {
	ch, i, ok := cl.Locate(pos)
	if !ok {
		return 0, false
	}
	return ch.LightAt(i), true
}

// SetLight записывает освещённость, вне кластера - no-op
func (cl *Cluster) SetLight(pos vec.Vec3, l LightValue) bool {
	ch, i, ok := cl.Locate(pos)
	if !ok {
		return false
	}
	ch.SetLightAt(i, l)
	return true
}

// ColumnChunks возвращает чанки колонки со смещением (dx, dz) от центра
func (cl *Cluster) ColumnChunks(dx, dz int) []*Chunk {
	if dx < -1 || dx > 1 || dz < -1 || dz > 1 {
		return nil
	}
	return cl.columns[dx+1][dz+1]
}

// Chunks возвращает все чанки кластера в порядке захвата блокировок
func (cl *Cluster) Chunks() []*Chunk {
	return cl.held
}

// Lock захватывает все чанки на запись. Порядок (X, Z, Y) общий для
// всех кластеров, поэтому пересекающиеся кластеры не блокируют друг друга навечно.
func (cl *Cluster) Lock() {
	for _, ch := range cl.held {
		ch.Mu.Lock()
	}
}

// Unlock освобождает блокировки в обратном порядке
func (cl *Cluster) Unlock() {
	for i := len(cl.held) - 1; i >= 0; i-- {
		cl.held[i].Mu.Unlock()
	}
}

// RLock захватывает все чанки на чтение
func (cl *Cluster) RLock() {
	for _, ch := range cl.held {
		ch.Mu.RLock()
	}
}

// RUnlock освобождает блокировки чтения
func (cl *Cluster) RUnlock() {
	for i := len(cl.held) - 1; i >= 0; i-- {
		cl.held[i].Mu.RUnlock()
	}
}

// Release отпускает ссылки, взятые окном при сборке кластера
func (cl *Cluster) Release() {
	for _, ch := range cl.held {
		ch.Release()
	}
	cl.held = nil
	cl.columns = [3][3][]*Chunk{}
}
