package storage

import (
	"context"
	"maps"
	"sync"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// MemoryStore хранит правки в памяти.
// Используется, когда хранилище не настроено, и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске!
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[vec.Vec3]*ChunkDelta
	closed bool
}

// NewMemoryStore создает пустое хранилище
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[vec.Vec3]*ChunkDelta),
	}
}

// SaveEdit сохраняет блок
func (m *MemoryStore) SaveEdit(ctx context.Context, pos vec.Vec3, id block.BlockID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotReady
	}

	coord := vec.ToChunk(pos)
	d, ok := m.data[coord]
	if !ok {
		d = NewChunkDelta(coord)
		m.data[coord] = d
	}
	d.Set(vec.ToLocal(coord, pos), id)
	return nil
}

// LoadChunk возвращает копию дельты
func (m *MemoryStore) LoadChunk(ctx context.Context, coord vec.Vec3) (*ChunkDelta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrNotReady
	}

	out := NewChunkDelta(coord)
	if d, ok := m.data[coord]; ok {
		maps.Copy(out.Blocks, d.Blocks)
	}
	return out, nil
}

// DeleteChunk удаляет правки чанка
func (m *MemoryStore) DeleteChunk(ctx context.Context, coord vec.Vec3) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotReady
	}
	delete(m.data, coord)
	return nil
}

// Chunks перечисляет чанки с правками
func (m *MemoryStore) Chunks(ctx context.Context) ([]vec.Vec3, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrNotReady
	}

	out := make([]vec.Vec3, 0, len(m.data))
	for c := range m.data {
		out = append(out, c)
	}
	return out, nil
}

// Close помечает хранилище закрытым
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
