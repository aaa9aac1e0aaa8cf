package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string `yaml:"addr"`       // Адрес Redis сервера
	Password  string `yaml:"password"`   // Пароль (пустой если не требуется)
	DB        int    `yaml:"db"`         // Номер базы данных
	KeyPrefix string `yaml:"key_prefix"` // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "voxel:edit:",
	}
}

// RedisStore хранит правки в Redis: хэш на чанк, поле - локальные
// координаты, значение - ID блока.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetStorageLogger().Info("connected to Redis at %s", config.Addr)
	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

// SaveEdit записывает поле в хэш чанка
func (r *RedisStore) SaveEdit(ctx context.Context, pos vec.Vec3, id block.BlockID) error {
	coord := vec.ToChunk(pos)
	key := chunkKey(r.keyPrefix, coord)
	field := localKey(vec.ToLocal(coord, pos))

	if err := r.client.HSet(ctx, key, field, uint16(id)).Err(); err != nil {
		return fmt.Errorf("failed to save edit: %w", err)
	}
	return nil
}

// LoadChunk читает хэш чанка
func (r *RedisStore) LoadChunk(ctx context.Context, coord vec.Vec3) (*ChunkDelta, error) {
	fields, err := r.client.HGetAll(ctx, chunkKey(r.keyPrefix, coord)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk: %w", err)
	}

	delta := NewChunkDelta(coord)
	for field, value := range fields {
		id, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			continue
		}
		delta.Blocks[field] = block.BlockID(id)
	}
	return delta, nil
}

// DeleteChunk удаляет хэш чанка
func (r *RedisStore) DeleteChunk(ctx context.Context, coord vec.Vec3) error {
	return r.client.Del(ctx, chunkKey(r.keyPrefix, coord)).Err()
}

// Chunks перебирает ключи с префиксом через SCAN
func (r *RedisStore) Chunks(ctx context.Context) ([]vec.Vec3, error) {
	var out []vec.Vec3
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		c, err := parseChunkKey(r.keyPrefix, iter.Val())
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, iter.Err()
}

// Close закрывает клиент
func (r *RedisStore) Close() error {
	return r.client.Close()
}
