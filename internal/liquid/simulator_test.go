package liquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/annel0/voxel-engine/internal/world/block"
)

// newSpace строит пространство из чанков 2x1x2 с каменным полом на y=0
func newSpace(t *testing.T) *Space {
	t.Helper()
	var chunks []*world.Chunk
	for x := -1; x <= 0; x++ {
		for z := -1; z <= 0; z++ {
			ch := world.NewChunk(vec.Vec3{X: x, Y: 0, Z: z})
			for lx := 0; lx < world.Size; lx++ {
				for lz := 0; lz < world.Size; lz++ {
					ch.SetBlockAt(world.Index(lx, 0, lz), block.StoneBlockID)
				}
			}
			ch.TakeDirty()
			chunks = append(chunks, ch)
		}
	}
	t.Cleanup(func() {
		for _, ch := range chunks {
			ch.Release()
		}
	})
	return NewSpace(chunks)
}

func place(t *testing.T, s *Space, pos vec.Vec3, amount uint8, source bool) {
	t.Helper()
	ch, i, ok := s.Locate(pos)
	require.True(t, ok)
	ch.SetBlockAt(i, block.WaterBlockID)
	ch.Liquid.Set(i, world.LiquidCell{Type: block.WaterBlockID, Amount: amount, Source: source})
	ch.Liquid.Activate(i)
}

func amount(t *testing.T, s *Space, pos vec.Vec3) uint8 {
	t.Helper()
	ch, i, ok := s.Locate(pos)
	require.True(t, ok)
	return ch.Liquid.Amount(i)
}

func blockAt(t *testing.T, s *Space, pos vec.Vec3) block.BlockID {
	t.Helper()
	ch, i, ok := s.Locate(pos)
	require.True(t, ok)
	return ch.BlockAt(i)
}

func TestSourceSpreadsToNeighbors(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	src := vec.Vec3{X: 4, Y: 1, Z: 4}
	place(t, s, src, 8, false)

	res := sim.Tick(s)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Moved)

	// порядок +X, -X, +Z, -Z; каждый сосед отнимает у источника единицу
	assert.Equal(t, uint8(7), amount(t, s, src.Add(vec.Vec3{X: 1})))
	assert.Equal(t, uint8(6), amount(t, s, src.Add(vec.Vec3{X: -1})))
	assert.Equal(t, uint8(5), amount(t, s, src.Add(vec.Vec3{Z: 1})))
	assert.Equal(t, uint8(4), amount(t, s, src.Add(vec.Vec3{Z: -1})))
	assert.Equal(t, uint8(4), amount(t, s, src))
	assert.Equal(t, block.WaterBlockID, blockAt(t, s, src.Add(vec.Vec3{X: 1})))
	assert.Contains(t, res.Relight, vec.Vec2{})
}

func TestInfiniteSourceKeepsAmount(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	src := vec.Vec3{X: 4, Y: 1, Z: 4}
	place(t, s, src, 8, true)

	sim.Tick(s)
	assert.Equal(t, uint8(8), amount(t, s, src))
	for _, d := range Horizontal {
		assert.Equal(t, uint8(7), amount(t, s, src.Add(d)))
	}
}

func TestGravityHasPriority(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	top := vec.Vec3{X: 4, Y: 5, Z: 4}
	place(t, s, top, 6, false)

	sim.Tick(s)
	assert.Equal(t, uint8(6), amount(t, s, top.Add(below)))
	assert.Equal(t, uint8(0), amount(t, s, top), "вся жидкость ушла вниз")
	assert.Equal(t, block.AirBlockID, blockAt(t, s, top))
	assert.Equal(t, uint8(0), amount(t, s, top.Add(vec.Vec3{X: 1})), "растекания нет")

	// приёмник не обрабатывается в том же тике
	assert.Equal(t, uint8(0), amount(t, s, top.Add(vec.Vec3{Y: -2})))
	sim.Tick(s)
	assert.Equal(t, uint8(6), amount(t, s, top.Add(vec.Vec3{Y: -2})))
}

func TestFallingIntoPartialCellCapsAtMax(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	floor := vec.Vec3{X: 2, Y: 1, Z: 2}
	place(t, s, floor, 10, false)
	ch, i, _ := s.Locate(floor)
	ch.Liquid.Deactivate(i)
	place(t, s, floor.Add(vec.Vec3{Y: 1}), 12, false)

	sim.Tick(s)
	assert.Equal(t, uint8(block.MaxLevel), amount(t, s, floor))
	assert.Equal(t, uint8(7), amount(t, s, floor.Add(vec.Vec3{Y: 1})), "остаток остаётся на месте")
}

func TestFlowCrossesChunkBoundary(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	edge := vec.Vec3{X: -1, Y: 1, Z: 3}
	place(t, s, edge, 10, true)

	res := sim.Tick(s)
	assert.Equal(t, uint8(9), amount(t, s, vec.Vec3{X: 0, Y: 1, Z: 3}))
	assert.Contains(t, res.Dirty, vec.Vec3{X: 0, Y: 0, Z: 0})
	assert.Contains(t, res.Dirty, vec.Vec3{X: -1, Y: 0, Z: 0})
}

func TestSpreadSettles(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	place(t, s, vec.Vec3{X: 0, Y: 1, Z: 0}, block.MaxLevel, true)

	var res Result
	for i := 0; i < 500; i++ {
		res = sim.Tick(s)
		if res.Moved == 0 {
			break
		}
	}
	assert.Equal(t, 0, res.Moved, "поле должно успокоиться")
	assert.Equal(t, uint8(block.MaxLevel-3), amount(t, s, vec.Vec3{X: 2, Y: 1, Z: 1}))

	for _, ch := range s.Chunks() {
		assert.Equal(t, 0, ch.Liquid.ActiveLen())
	}
}

func TestSolidBlocksStopFlow(t *testing.T) {
	s := newSpace(t)
	sim := NewSimulator(block.DefaultTable())
	src := vec.Vec3{X: 4, Y: 1, Z: 4}
	for _, d := range Horizontal {
		ch, i, _ := s.Locate(src.Add(d))
		ch.SetBlockAt(i, block.GlassBlockID)
	}
	place(t, s, src, 8, false)

	res := sim.Tick(s)
	assert.Equal(t, 0, res.Moved)
	assert.Equal(t, uint8(8), amount(t, s, src))
	ch, _, _ := s.Locate(src)
	assert.Equal(t, 0, ch.Liquid.ActiveLen(), "неподвижная ячейка снимается с обработки")
}

func TestWakeAroundActivatesLiquid(t *testing.T) {
	s := newSpace(t)
	pos := vec.Vec3{X: 3, Y: 1, Z: 3}
	place(t, s, pos, 5, false)
	ch, i, _ := s.Locate(pos)
	ch.Liquid.Deactivate(i)

	WakeAround(s, pos.Add(vec.Vec3{X: 1}))
	assert.Equal(t, []int{i}, ch.Liquid.Active())
}
