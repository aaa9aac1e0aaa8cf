package engine

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-engine/internal/lighting"
	"github.com/annel0/voxel-engine/internal/liquid"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// SetBlock ставит блок в мировой позиции pos.
//
// Воксель меняется сразу, колонка ставится в очередь пересчёта освещения,
// чанк и соседи по граням помечаются грязными. Правка сохраняется в
// хранилище; ошибка хранилища возвращается, но изменение в мире остаётся.
func (e *Engine) SetBlock(ctx context.Context, pos vec.Vec3, id block.BlockID) error {
	if _, ok := e.table.Lookup(id); !ok {
		return fmt.Errorf("block %d: %w", id, world.ErrInvalidConfiguration)
	}

	coord := vec.ToChunk(pos)
	cl := e.window.Cluster(coord.Column())
	defer cl.Release()

	ch := cl.Chunk(coord)
	if ch == nil {
		return fmt.Errorf("set block %v: %w", pos, world.ErrOutOfRange)
	}

	local := vec.ToLocal(coord, pos)
	idx := world.Index(local.X, local.Y, local.Z)

	cl.Lock()
	if ch.BlockAt(idx) == id {
		cl.Unlock()
		return nil
	}
	ch.SetBlockAt(idx, id)
	e.syncLiquid(ch, idx)
	liquid.WakeAround(cl, pos)
	for _, d := range vec.Directions {
		if n := cl.Chunk(vec.ToChunk(pos.Add(d))); n != nil {
			n.MarkDirty()
		}
	}
	cl.Unlock()

	e.enqueueRelight(coord.Column())
	if e.metrics != nil {
		e.metrics.Edits.Inc()
	}

	if err := e.store.SaveEdit(ctx, pos, id); err != nil {
		e.storageError("save edit %v: %v", pos, err)
		return fmt.Errorf("save edit %v: %w", pos, err)
	}
	return nil
}

// syncLiquid приводит поле жидкости к типу блока. Вызывающий держит чанк.
func (e *Engine) syncLiquid(ch *world.Chunk, idx int) {
	id := ch.BlockAt(idx)
	desc := e.table.Get(id)
	if !desc.Liquid {
		ch.Liquid.Delete(idx)
		return
	}
	ch.Liquid.Set(idx, world.LiquidCell{Type: id, Amount: block.MaxLevel, Source: desc.InfiniteSource})
	ch.Liquid.Activate(idx)
}

// Block возвращает тип блока в мировой позиции
func (e *Engine) Block(pos vec.Vec3) (block.BlockID, error) {
	coord := vec.ToChunk(pos)
	ch, err := e.window.Retain(coord)
	if err != nil {
		return block.AirBlockID, err
	}
	defer ch.Release()
	return ch.GetBlock(vec.ToLocal(coord, pos)), nil
}

// Light возвращает освещённость в мировой позиции
func (e *Engine) Light(pos vec.Vec3) (world.LightValue, error) {
	coord := vec.ToChunk(pos)
	ch, err := e.window.Retain(coord)
	if err != nil {
		return 0, err
	}
	defer ch.Release()

	local := vec.ToLocal(coord, pos)
	ch.Mu.RLock()
	defer ch.Mu.RUnlock()
	return ch.LightAt(world.Index(local.X, local.Y, local.Z)), nil
}

// enqueueRelight ставит колонку в очередь пересчёта освещения без повторов
func (e *Engine) enqueueRelight(c vec.Vec2) {
	e.relightMu.Lock()
	defer e.relightMu.Unlock()

	if _, ok := e.pending[c]; ok {
		return
	}
	e.pending[c] = struct{}{}
	e.relight = append(e.relight, lighting.Request{Column: c})
}

// processRelight выполняет до budget запросов пересчёта освещения
func (e *Engine) processRelight(budget int) int {
	e.relightMu.Lock()
	n := min(budget, len(e.relight))
	batch := make([]lighting.Request, n)
	copy(batch, e.relight[:n])
	e.relight = e.relight[n:]
	for _, r := range batch {
		delete(e.pending, r.Column)
	}
	e.relightMu.Unlock()

	done := 0
	for _, r := range batch {
		// неосвещённую колонку целиком осветит планировщик
		if !e.window.ColumnLit(r.Column) {
			continue
		}
		e.recalculate(r.Column, true)
		done++
	}
	return done
}
