package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-engine/internal/world/block"
)

// Кодеры без потока безопасны для параллельного EncodeAll/DecodeAll.
// Создаются при первом обращении.
var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("ошибка создания zstd-кодера: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
		if codecErr != nil {
			codecErr = fmt.Errorf("ошибка создания zstd-декодера: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

func encodeDelta(d *ChunkDelta) ([]byte, error) {
	enc, _, err := zstdCodec()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации дельты: %w", err)
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func decodeDelta(data []byte) (*ChunkDelta, error) {
	_, dec, err := zstdCodec()
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки дельты: %w", err)
	}
	var d ChunkDelta
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("ошибка десериализации дельты: %w", err)
	}
	if d.Blocks == nil {
		d.Blocks = make(map[string]block.BlockID)
	}
	return &d, nil
}
