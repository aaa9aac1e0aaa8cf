package world

import (
	"errors"

	"github.com/annel0/voxel-engine/internal/world/block"
)

var (
	// ErrInvalidConfiguration - некорректная конфигурация (фатально при старте)
	ErrInvalidConfiguration = block.ErrInvalidConfiguration

	// ErrOutOfRange - запрос к координате вне окна или кластера
	ErrOutOfRange = errors.New("coordinate out of range")

	// ErrStaleWork - результат работы устарел после перецентровки окна.
	// Ожидаемое следствие движения наблюдателя, наружу как ошибка не выдаётся.
	ErrStaleWork = errors.New("stale work")
)
