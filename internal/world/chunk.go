package world

import (
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const (
	// Size - длина ребра чанка
	Size = vec.ChunkSize
	// Volume - количество вокселей в чанке
	Volume = Size * Size * Size
)

// storage - переиспользуемые массивы вокселей
var storage = sync.Pool{
	New: func() interface{} { return new([Volume]Voxel) },
}

// Index возвращает индекс вокселя в плоском массиве: z·SIZE² + y·SIZE + x
func Index(x, y, z int) int {
	return z*Size*Size + y*Size + x
}

// Unindex восстанавливает локальные координаты по индексу
func Unindex(i int) (x, y, z int) {
	return i % Size, (i / Size) % Size, i / (Size * Size)
}

// Chunk представляет кубический участок мира размером 16x16x16 вокселей.
//
// Методы доступа к вокселям не берут блокировку: вызывающий держит Mu
// (или весь кластер). Хранилище возвращается в пул, когда счётчик ссылок
// падает до нуля.
type Chunk struct {
	Coord  vec.Vec3     // Координаты чанка
	Liquid *LiquidField // Поле жидкости
	Mu     sync.RWMutex // Мьютекс для безопасного доступа

	voxels        *[Volume]Voxel
	refs          atomic.Int32
	dirty         atomic.Bool
	ChangeCounter int // Счетчик правок блоков
}

// NewChunk создаёт пустой чанк с одной ссылкой у создателя
func NewChunk(coord vec.Vec3) *Chunk {
	v := storage.Get().(*[Volume]Voxel)
	*v = [Volume]Voxel{}

	c := &Chunk{
		Coord:  coord,
		Liquid: NewLiquidField(),
		voxels: v,
	}
	c.refs.Store(1)
	c.dirty.Store(true)
	return c
}

// Retain добавляет ссылку на хранилище чанка
func (c *Chunk) Retain() {
	c.refs.Add(1)
}

// Release снимает ссылку. Когда ссылок не остаётся, массив вокселей
// возвращается в пул и чанк становится недоступен для чтения.
func (c *Chunk) Release() {
	if c.refs.Add(-1) != 0 {
		return
	}
	c.Mu.Lock()
	v := c.voxels
	c.voxels = nil
	c.Mu.Unlock()
	if v != nil {
		storage.Put(v)
	}
}

// Refs возвращает текущее число ссылок
func (c *Chunk) Refs() int32 {
	return c.refs.Load()
}

// Released возвращает true, если хранилище уже освобождено
func (c *Chunk) Released() bool {
	return c.voxels == nil
}

// At возвращает воксель по индексу
func (c *Chunk) At(i int) Voxel {
	return c.voxels[i]
}

// BlockAt возвращает тип блока по индексу
func (c *Chunk) BlockAt(i int) block.BlockID {
	return c.voxels[i].Block
}

// LightAt возвращает освещённость по индексу
func (c *Chunk) LightAt(i int) LightValue {
	return c.voxels[i].Light
}

// SetBlockAt устанавливает тип блока по индексу
func (c *Chunk) SetBlockAt(i int, id block.BlockID) {
	if c.voxels[i].Block == id {
		return
	}
	c.voxels[i].Block = id
	c.ChangeCounter++
	c.dirty.Store(true)
}

// SetLightAt устанавливает освещённость по индексу
func (c *Chunk) SetLightAt(i int, l LightValue) {
	if c.voxels[i].Light == l {
		return
	}
	c.voxels[i].Light = l
	c.dirty.Store(true)
}

// GetBlock возвращает ID блока по локальным координатам (с блокировкой)
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return c.voxels[Index(local.X, local.Y, local.Z)].Block
}

// SetBlock устанавливает блок по локальным координатам (с блокировкой)
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	c.SetBlockAt(Index(local.X, local.Y, local.Z), id)
}

// Fill заполняет весь чанк одним блоком
func (c *Chunk) Fill(id block.BlockID) {
	for i := range c.voxels {
		c.voxels[i].Block = id
	}
	c.dirty.Store(true)
}

// ClearLight обнуляет освещение всего чанка
func (c *Chunk) ClearLight() {
	for i := range c.voxels {
		c.voxels[i].Light = 0
	}
	c.dirty.Store(true)
}

// MarkDirty помечает чанк для перестроения меша
func (c *Chunk) MarkDirty() {
	c.dirty.Store(true)
}

// IsDirty возвращает true, если меш чанка устарел
func (c *Chunk) IsDirty() bool {
	return c.dirty.Load()
}

// TakeDirty сбрасывает флаг и возвращает его прежнее значение
func (c *Chunk) TakeDirty() bool {
	return c.dirty.Swap(false)
}

// HasChanges возвращает true, если в чанке есть правки блоков
func (c *Chunk) HasChanges() bool {
	c.Mu.RLock()
	defer c.Mu.RUnlock()

	return c.ChangeCounter > 0
}

// ClearChanges сбрасывает счётчик правок
func (c *Chunk) ClearChanges() {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	c.ChangeCounter = 0
}

// Origin возвращает глобальные координаты вокселя (0,0,0) чанка
func (c *Chunk) Origin() vec.Vec3 {
	return c.Coord.Scale(Size)
}
