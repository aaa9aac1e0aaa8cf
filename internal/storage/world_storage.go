package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

const (
	editPrefix = "edit:"
	// попыток записи при конфликте транзакций
	maxConflictRetries = 5
)

// WorldStorage хранит правки мира в BadgerDB.
// Ключ - "edit:x:y:z" координат чанка, значение - дельта в JSON, сжатая zstd.
type WorldStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewWorldStorage открывает хранилище в каталоге dataPath/world
func NewWorldStorage(dataPath string) (*WorldStorage, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	return openBadger(opts, dbPath)
}

// NewInMemoryWorldStorage открывает BadgerDB без диска (для тестов и инструментов)
func NewInMemoryWorldStorage() (*WorldStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return openBadger(opts, "")
}

func openBadger(opts badger.Options, dbPath string) (*WorldStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &WorldStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (ws *WorldStorage) Close() error {
	ws.mutex.Lock()
	defer ws.mutex.Unlock()

	if !ws.isReady {
		return nil
	}

	ws.isReady = false
	return ws.db.Close()
}

// SaveEdit дописывает блок в дельту его чанка
func (ws *WorldStorage) SaveEdit(ctx context.Context, pos vec.Vec3, id block.BlockID) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}

	coord := vec.ToChunk(pos)
	local := vec.ToLocal(coord, pos)
	key := []byte(chunkKey(editPrefix, coord))

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = ws.db.Update(func(txn *badger.Txn) error {
			delta, err := readDelta(txn, key, coord)
			if err != nil {
				return err
			}
			delta.Set(local, id)
			data, err := encodeDelta(delta)
			if err != nil {
				return err
			}
			return txn.Set(key, data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// LoadChunk загружает дельту чанка
func (ws *WorldStorage) LoadChunk(ctx context.Context, coord vec.Vec3) (*ChunkDelta, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var delta *ChunkDelta
	err := ws.db.View(func(txn *badger.Txn) error {
		var err error
		delta, err = readDelta(txn, []byte(chunkKey(editPrefix, coord)), coord)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return delta, nil
}

// DeleteChunk удаляет дельту чанка
func (ws *WorldStorage) DeleteChunk(ctx context.Context, coord vec.Vec3) error {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return ws.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(chunkKey(editPrefix, coord)))
	})
}

// Chunks перечисляет чанки с правками
func (ws *WorldStorage) Chunks(ctx context.Context) ([]vec.Vec3, error) {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()

	if !ws.isReady {
		return nil, ErrNotReady
	}

	var out []vec.Vec3
	err := ws.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(editPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := parseChunkKey(editPrefix, string(it.Item().Key()))
			if err != nil {
				continue
			}
			out = append(out, c)
		}
		return nil
	})
	return out, err
}

// readDelta читает дельту в транзакции; отсутствие ключа - пустая дельта
func readDelta(txn *badger.Txn, key []byte, coord vec.Vec3) (*ChunkDelta, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return NewChunkDelta(coord), nil
	}
	if err != nil {
		return nil, err
	}

	var delta *ChunkDelta
	err = item.Value(func(val []byte) error {
		var err error
		delta, err = decodeDelta(val)
		return err
	})
	return delta, err
}
