package liquid

import (
	"sort"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// Horizontal - фиксированный порядок обхода горизонтальных соседей
var Horizontal = [4]vec.Vec3{
	{X: 1}, {X: -1},
	{Z: 1}, {Z: -1},
}

var below = vec.Vec3{Y: -1}

// Result - итог одного тика жидкости
type Result struct {
	Processed int        // обработанных ячеек
	Moved     int        // ячеек, передавших жидкость
	Dirty     []vec.Vec3 // чанки, чей меш устарел
	Relight   []vec.Vec2 // колонки, где сменился тип блока
}

// Simulator продвигает разреженное поле жидкости на один шаг.
//
// Обрабатываются только активные ячейки, в порядке координат чанка,
// затем локального индекса. Ячейка, получившая жидкость в этом тике,
// обрабатывается только в следующем.
type Simulator struct {
	table *block.Table

	received map[cellKey]struct{}
	dirty    map[vec.Vec3]struct{}
	relight  map[vec.Vec2]struct{}
}

type cellKey struct {
	chunk *world.Chunk
	index int
}

// NewSimulator создаёт симулятор жидкости
func NewSimulator(table *block.Table) *Simulator {
	return &Simulator{
		table:    table,
		received: make(map[cellKey]struct{}),
		dirty:    make(map[vec.Vec3]struct{}),
		relight:  make(map[vec.Vec2]struct{}),
	}
}

// Tick выполняет один шаг. Вызывающий держит все чанки space
// заблокированными на запись.
func (s *Simulator) Tick(space *Space) Result {
	clear(s.received)
	clear(s.dirty)
	clear(s.relight)

	type work struct {
		chunk *world.Chunk
		index int
	}
	var queue []work
	for _, ch := range space.Chunks() {
		for _, i := range ch.Liquid.Active() {
			queue = append(queue, work{chunk: ch, index: i})
		}
	}

	var res Result
	for _, w := range queue {
		if _, ok := s.received[cellKey{w.chunk, w.index}]; ok {
			continue
		}
		cell, ok := w.chunk.Liquid.Get(w.index)
		if !ok {
			w.chunk.Liquid.Deactivate(w.index)
			continue
		}
		res.Processed++

		x, y, z := world.Unindex(w.index)
		pos := w.chunk.Origin().Add(vec.Vec3{X: x, Y: y, Z: z})
		if s.step(space, w.chunk, w.index, pos, cell) {
			res.Moved++
			s.wake(space, pos)
		} else {
			w.chunk.Liquid.Deactivate(w.index)
		}
	}

	res.Dirty = make([]vec.Vec3, 0, len(s.dirty))
	for c := range s.dirty {
		res.Dirty = append(res.Dirty, c)
	}
	sort.Slice(res.Dirty, func(i, j int) bool { return res.Dirty[i].Less(res.Dirty[j]) })
	res.Relight = make([]vec.Vec2, 0, len(s.relight))
	for c := range s.relight {
		res.Relight = append(res.Relight, c)
	}
	sort.Slice(res.Relight, func(i, j int) bool { return res.Relight[i].Less(res.Relight[j]) })
	return res
}

// step обрабатывает одну ячейку и возвращает true, если жидкость сдвинулась
func (s *Simulator) step(space *Space, ch *world.Chunk, idx int, pos vec.Vec3, cell world.LiquidCell) bool {
	// гравитация имеет приоритет над растеканием
	if bc, bi, ok := space.Locate(pos.Add(below)); ok && s.passable(bc.BlockAt(bi), cell.Type) {
		if have := bc.Liquid.Amount(bi); have < cell.Amount {
			total := int(have) + int(cell.Amount)
			moved := min(total, block.MaxLevel)
			s.fill(bc, bi, pos.Add(below), cell.Type, uint8(moved))
			if !cell.Source {
				cell.Amount = uint8(total - moved)
				s.put(ch, idx, pos, cell)
			}
			return true
		}
	}

	moved := false
	cur := cell.Amount
	for _, d := range Horizontal {
		if cur <= 1 {
			break
		}
		npos := pos.Add(d)
		nc, ni, ok := space.Locate(npos)
		if !ok || !s.passable(nc.BlockAt(ni), cell.Type) {
			continue
		}
		if have := nc.Liquid.Amount(ni); have < cur-1 {
			s.fill(nc, ni, npos, cell.Type, cur-1)
			if !cell.Source {
				cur--
			}
			moved = true
		}
	}
	if moved && !cell.Source {
		cell.Amount = cur
		s.put(ch, idx, pos, cell)
	}
	return moved
}

// passable - можно ли жидкости type войти в блок id
func (s *Simulator) passable(id, liquid block.BlockID) bool {
	if id == liquid {
		return true
	}
	d := s.table.Get(id)
	return !d.Solid && !d.Liquid && !d.Emission.Emits()
}

// fill записывает количество в ячейку-приёмник
func (s *Simulator) fill(ch *world.Chunk, idx int, pos vec.Vec3, liquid block.BlockID, amount uint8) {
	prev, _ := ch.Liquid.Get(idx)
	ch.Liquid.Set(idx, world.LiquidCell{Type: liquid, Amount: amount, Source: prev.Source})
	ch.Liquid.Activate(idx)
	s.received[cellKey{ch, idx}] = struct{}{}
	s.setBlock(ch, idx, pos, liquid)
}

// put обновляет ячейку-источник; нулевое количество удаляет её
func (s *Simulator) put(ch *world.Chunk, idx int, pos vec.Vec3, cell world.LiquidCell) {
	ch.Liquid.Set(idx, cell)
	if cell.Amount == 0 {
		if ch.BlockAt(idx) == cell.Type {
			s.setBlock(ch, idx, pos, block.AirBlockID)
		}
		return
	}
	ch.Liquid.Activate(idx)
}

// setBlock меняет тип блока и отмечает чанки для меша и освещения
func (s *Simulator) setBlock(ch *world.Chunk, idx int, pos vec.Vec3, id block.BlockID) {
	if ch.BlockAt(idx) == id {
		return
	}
	ch.SetBlockAt(idx, id)
	s.relight[ch.Coord.Column()] = struct{}{}
	s.dirty[ch.Coord] = struct{}{}
	for _, d := range vec.Directions {
		if n := vec.ToChunk(pos.Add(d)); n != ch.Coord {
			s.dirty[n] = struct{}{}
		}
	}
}

// wake активирует соседей сдвинувшейся ячейки
func (s *Simulator) wake(space *Space, pos vec.Vec3) {
	for _, d := range vec.Directions {
		if ch, i, ok := space.Locate(pos.Add(d)); ok {
			ch.Liquid.Activate(i)
		}
	}
}
