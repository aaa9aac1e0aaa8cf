package world

import (
	"sync/atomic"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Column - вертикальная стопка из HEIGHT чанков над одной клеткой (X, Z).
// Слоты заполняются по мере генерации; доступ к слотам защищён мьютексом окна.
type Column struct {
	Coord vec.Vec2

	chunks   []*Chunk
	lit      atomic.Bool
	disposed atomic.Bool
}

func newColumn(coord vec.Vec2, height int) *Column {
	return &Column{
		Coord:  coord,
		chunks: make([]*Chunk, height),
	}
}

// Height возвращает число слотов в колонке
func (c *Column) Height() int {
	return len(c.chunks)
}

// Chunk возвращает чанк по вертикальному индексу или nil
func (c *Column) Chunk(y int) *Chunk {
	if y < 0 || y >= len(c.chunks) {
		return nil
	}
	return c.chunks[y]
}

// Complete возвращает true, когда все чанки колонки сгенерированы
func (c *Column) Complete() bool {
	for _, ch := range c.chunks {
		if ch == nil {
			return false
		}
	}
	return true
}

// Lit возвращает true, если колонка уже освещена
func (c *Column) Lit() bool {
	return c.lit.Load()
}

// SetLit отмечает колонку освещённой
func (c *Column) SetLit(v bool) {
	c.lit.Store(v)
}

// Disposed возвращает true после Dispose
func (c *Column) Disposed() bool {
	return c.disposed.Load()
}

// Dispose отпускает ссылки колонки на чанки. Повторный вызов ничего не делает.
// Хранилище чанка освобождается только когда его отпустят все задачи.
func (c *Column) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	for y, ch := range c.chunks {
		if ch != nil {
			ch.Release()
			c.chunks[y] = nil
		}
	}
	c.lit.Store(false)
}

func (c *Column) install(y int, ch *Chunk) {
	if old := c.chunks[y]; old != nil && old != ch {
		old.Release()
	}
	c.chunks[y] = ch
}
