package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// ErrNotReady возвращается после Close
var ErrNotReady = errors.New("storage is not ready")

// EditStore хранит правки блоков поверх сгенерированного рельефа.
// Генератор детерминирован, поэтому сохраняются только отличия.
type EditStore interface {
	// SaveEdit записывает блок в мировой позиции pos
	SaveEdit(ctx context.Context, pos vec.Vec3, id block.BlockID) error
	// LoadChunk возвращает правки чанка; для чанка без правок - пустую дельту
	LoadChunk(ctx context.Context, coord vec.Vec3) (*ChunkDelta, error)
	// DeleteChunk удаляет все правки чанка
	DeleteChunk(ctx context.Context, coord vec.Vec3) error
	// Chunks перечисляет чанки, у которых есть правки
	Chunks(ctx context.Context) ([]vec.Vec3, error)
	Close() error
}

// ChunkDelta содержит правки одного чанка
type ChunkDelta struct {
	Coord  vec.Vec3                 `json:"coord"`
	Blocks map[string]block.BlockID `json:"blocks"` // Ключ - локальные координаты "x:y:z"
}

// NewChunkDelta создает пустую дельту
func NewChunkDelta(coord vec.Vec3) *ChunkDelta {
	return &ChunkDelta{
		Coord:  coord,
		Blocks: make(map[string]block.BlockID),
	}
}

// Set записывает блок по локальным координатам
func (d *ChunkDelta) Set(local vec.Vec3, id block.BlockID) {
	d.Blocks[localKey(local)] = id
}

// Len возвращает число правок
func (d *ChunkDelta) Len() int {
	return len(d.Blocks)
}

// Apply применяет дельту к чанку и возвращает локальные координаты
// изменённых вокселей. Некорректные ключи пропускаются.
func (d *ChunkDelta) Apply(ch *world.Chunk) []vec.Vec3 {
	if d == nil || len(d.Blocks) == 0 {
		return nil
	}

	applied := make([]vec.Vec3, 0, len(d.Blocks))
	for key, id := range d.Blocks {
		local, err := parseLocalKey(key)
		if err != nil {
			continue
		}
		ch.SetBlock(local, id)
		applied = append(applied, local)
	}
	// правки уже сохранены, повторно их писать не нужно
	ch.ClearChanges()
	return applied
}

func localKey(local vec.Vec3) string {
	return fmt.Sprintf("%d:%d:%d", local.X, local.Y, local.Z)
}

func parseLocalKey(key string) (vec.Vec3, error) {
	var p vec.Vec3
	if _, err := fmt.Sscanf(key, "%d:%d:%d", &p.X, &p.Y, &p.Z); err != nil {
		return p, fmt.Errorf("parse key %q: %w", key, err)
	}
	if p.X < 0 || p.X >= world.Size || p.Y < 0 || p.Y >= world.Size || p.Z < 0 || p.Z >= world.Size {
		return p, fmt.Errorf("key %q: %w", key, world.ErrOutOfRange)
	}
	return p, nil
}

func chunkKey(prefix string, coord vec.Vec3) string {
	return fmt.Sprintf("%s%d:%d:%d", prefix, coord.X, coord.Y, coord.Z)
}

func parseChunkKey(prefix, key string) (vec.Vec3, error) {
	var c vec.Vec3
	if _, err := fmt.Sscanf(key[len(prefix):], "%d:%d:%d", &c.X, &c.Y, &c.Z); err != nil {
		return c, fmt.Errorf("parse chunk key %q: %w", key, err)
	}
	return c, nil
}

// Options выбирает и настраивает хранилище
type Options struct {
	Backend string // badger, redis или memory
	Path    string // каталог BadgerDB
	Redis   RedisConfig
}

// Open открывает хранилище по настройкам
func Open(opts Options) (EditStore, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		return NewWorldStorage(opts.Path)
	case "redis":
		return NewRedisStore(&opts.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q: %w", opts.Backend, world.ErrInvalidConfiguration)
	}
}
